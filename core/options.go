package coordination

import (
	"time"

	"github.com/allybot/ally-core/core/audio"
	"github.com/allybot/ally-core/core/inference"
	"github.com/allybot/ally-core/core/synthesis"
)

type CoordinatorOption func(*Coordinator)

// WithInferenceClient sets the streaming inference client used for chat
// requests.
func WithInferenceClient(client inference.Streamer) CoordinatorOption {
	return func(c *Coordinator) { c.inference = client }
}

// WithSynthesizer enables voice output. Completed answer sentences are
// submitted to the client as they stream in, each as its own synthesis
// request.
func WithSynthesizer(client synthesis.Synthesizer) CoordinatorOption {
	return func(c *Coordinator) {
		c.synthesizer = client
		if canceller, ok := client.(synthesis.Canceller); ok && c.canceller == nil {
			c.canceller = canceller
		}
	}
}

// WithSynthesisCancellation sets the client used to drop server-side
// synthesis queues on interruption. Clients that implement
// [synthesis.Canceller] are picked up by [WithSynthesizer] automatically.
func WithSynthesisCancellation(canceller synthesis.Canceller) CoordinatorOption {
	return func(c *Coordinator) { c.canceller = canceller }
}

// WithAudioSink sets the output device synthesized audio is rendered to.
func WithAudioSink(sink audio.Sink) CoordinatorOption {
	return func(c *Coordinator) { c.sink = sink }
}

// WithPhasePolicy overrides the heuristic used to separate reasoning from
// answer text.
func WithPhasePolicy(policy PhasePolicy) CoordinatorOption {
	return func(c *Coordinator) { c.policy = policy }
}

// WithSystemPrompt prepends a system message to every chat request.
func WithSystemPrompt(prompt string) CoordinatorOption {
	return func(c *Coordinator) { c.systemPrompt = prompt }
}

// WithPlaybackGap overrides the pause between consecutive audio chunks.
func WithPlaybackGap(gap time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.playbackGap = &gap }
}

type CoordinateOptions struct {
	onThinking             func(reasoningText string)
	onResponse             func(answerText string)
	onResponseEnd          func(answerText string)
	onAborted              func(answerText string, err error)
	onSpeakingStateChanged func(isSpeaking bool)
	onSpokenSentence       func(sentence string)
	onError                func(err error)
}

type CoordinateOption func(*CoordinateOptions)

// WithThinkingCallback registers a callback for reasoning-phase snapshots.
//
// The callback receives the full accumulated reasoning text on every
// fragment, never deltas, so rendering can be idempotent.
func WithThinkingCallback(callback func(reasoningText string)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onThinking = callback
	}
}

// WithResponseCallback registers a callback for answer-phase snapshots.
//
// The callback receives the full accumulated answer text on every fragment,
// never deltas.
func WithResponseCallback(callback func(answerText string)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onResponse = callback
	}
}

// WithResponseEndCallback registers a callback for session completion. The
// answer text is never empty when any text streamed at all.
func WithResponseEndCallback(callback func(answerText string)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onResponseEnd = callback
	}
}

// WithAbortedCallback registers a callback for sessions that were cancelled
// or whose transport failed. It receives whatever text accumulated before
// the abort; err is nil for cooperative cancellation.
func WithAbortedCallback(callback func(answerText string, err error)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onAborted = callback
	}
}

// WithSpeakingStateChangedCallback registers a callback for playback
// speaking-state updates. Repeated calls with the same value are possible.
func WithSpeakingStateChangedCallback(callback func(isSpeaking bool)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onSpeakingStateChanged = callback
	}
}

// WithSpokenSentenceCallback registers a callback for each sentence handed
// to the synthesis service.
func WithSpokenSentenceCallback(callback func(sentence string)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onSpokenSentence = callback
	}
}

// WithErrorCallback registers a callback for non-fatal failures, like a
// synthesis stream erroring out. The coordinator self-heals after these.
func WithErrorCallback(callback func(err error)) CoordinateOption {
	return func(o *CoordinateOptions) {
		o.onError = callback
	}
}
