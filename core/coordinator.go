package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/allybot/ally-core/core/audio"
	"github.com/allybot/ally-core/core/events"
	"github.com/allybot/ally-core/core/inference"
	"github.com/allybot/ally-core/core/synthesis"
)

// Coordinator wires the stream classifier and the playback scheduler into
// one conversational surface: user messages go in, phase-tagged text
// callbacks and sequenced speech come out.
type Coordinator struct {
	classifier *StreamClassifier
	scheduler  *PlaybackScheduler

	inference    inference.Streamer
	synthesizer  synthesis.Synthesizer
	canceller    synthesis.Canceller
	sink         audio.Sink
	policy       PhasePolicy
	systemPrompt string
	playbackGap  *time.Duration

	closeOnce   sync.Once
	cancelHook  chan struct{}
	baseContext context.Context

	coordinateOptions CoordinateOptions
	emitEvent         eventEmitter

	mu                 sync.Mutex
	history            []inference.Message
	activeSubscription *Subscription
}

func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		policy:      DefaultPhasePolicy(),
		baseContext: context.Background(),
		emitEvent:   noopEventEmitter,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.classifier = NewStreamClassifier(c.inference, c.policy)

	schedulerOpts := []PlaybackSchedulerOption{
		WithPlaybackEventCallback(c.emit),
	}
	if c.canceller != nil {
		schedulerOpts = append(schedulerOpts, WithSynthesisCanceller(c.canceller))
	}
	if c.playbackGap != nil {
		schedulerOpts = append(schedulerOpts, WithInterChunkGap(*c.playbackGap))
	}
	c.scheduler = NewPlaybackScheduler(c.sink, schedulerOpts...)

	return c
}

// Coordinate configures the callbacks used for all subsequent messages.
//
// ctx is the base context for inference and synthesis calls; cancelling it
// closes the coordinator.
//
// Contract: call Coordinate at most once per coordinator instance, before
// the first SendMessage.
func (c *Coordinator) Coordinate(ctx context.Context, opts ...CoordinateOption) {
	c.coordinateOptions = CoordinateOptions{}
	for _, opt := range opts {
		opt(&c.coordinateOptions)
	}

	c.baseContext = ctx
	c.emitEvent = newCallbackEventEmitter(c.coordinateOptions)

	c.cancelHook = withContextCancelHook(ctx, c.Close)
}

// SendMessage submits one user message for inference. Classification events
// flow through the configured callbacks; when voice output is configured,
// completed answer sentences are synthesized and scheduled as they arrive.
func (c *Coordinator) SendMessage(text string) error {
	requestID := uuid.NewString()

	c.mu.Lock()
	priorMessages := make([]inference.Message, 0, len(c.history)+1)
	if c.systemPrompt != "" {
		priorMessages = append(priorMessages, inference.Message{Role: inference.RoleSystem, Content: c.systemPrompt})
	}
	priorMessages = append(priorMessages, c.history...)
	c.mu.Unlock()

	subscription, err := c.classifier.Submit(c.baseContext, requestID, priorMessages, text)
	if err != nil {
		return fmt.Errorf("failed to submit message: %w", err)
	}

	c.mu.Lock()
	c.history = append(c.history, inference.Message{Role: inference.RoleUser, Content: text})
	c.activeSubscription = subscription
	c.mu.Unlock()

	go c.consumeSession(c.baseContext, subscription)

	return nil
}

func (c *Coordinator) consumeSession(ctx context.Context, subscription *Subscription) {
	speaker := &responseSpeaker{}

	for event := range subscription.Events() {
		c.emit(event)

		switch typedEvent := event.(type) {
		case events.InferenceAnswerUpdated:
			c.speakNewSentences(ctx, speaker, typedEvent.AnswerText, false)
		case events.InferenceDone:
			c.speakNewSentences(ctx, speaker, typedEvent.AnswerText, true)
			c.recordAssistantMessage(subscription, typedEvent.AnswerText)
		case events.InferenceAborted:
			c.recordAssistantMessage(subscription, typedEvent.AnswerText)
		}
	}
}

func (c *Coordinator) recordAssistantMessage(subscription *Subscription, answerText string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if answerText != "" {
		c.history = append(c.history, inference.Message{Role: inference.RoleAssistant, Content: answerText})
	}
	if c.activeSubscription == subscription {
		c.activeSubscription = nil
	}
}

// responseSpeaker tracks how much of an answer snapshot has already been
// handed to synthesis. Snapshots are append-only, so a byte offset is
// enough.
type responseSpeaker struct {
	submitted int
}

func (c *Coordinator) speakNewSentences(ctx context.Context, speaker *responseSpeaker, answerText string, flush bool) {
	if c.synthesizer == nil || speaker.submitted >= len(answerText) {
		return
	}

	unsubmitted := answerText[speaker.submitted:]
	var sentences []string
	if flush {
		sentences = splitSentences(unsubmitted)
		speaker.submitted = len(answerText)
	} else {
		var remainder string
		sentences, remainder = completedSentences(unsubmitted)
		speaker.submitted = len(answerText) - len(remainder)
	}

	for _, sentence := range sentences {
		if c.coordinateOptions.onSpokenSentence != nil {
			c.coordinateOptions.onSpokenSentence(sentence)
		}

		if err := c.synthesizer.Synthesize(ctx, sentence, uuid.NewString()); err != nil {
			err = fmt.Errorf("failed to submit sentence for synthesis: %w", err)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if c.coordinateOptions.onError != nil {
				c.coordinateOptions.onError(err)
			}
		}
	}
}

// HandleSynthesisEvent routes one synthesis lifecycle event into playback.
// Wire it as the synthesis client's event callback.
func (c *Coordinator) HandleSynthesisEvent(event synthesis.Event) {
	c.scheduler.HandleEvent(event)
}

// Interrupt cancels the in-flight inference session, halts playback, and
// drops everything queued for speech, client- and server-side.
func (c *Coordinator) Interrupt(ctx context.Context) error {
	c.mu.Lock()
	subscription := c.activeSubscription
	c.mu.Unlock()

	subscription.Cancel()
	return c.scheduler.Stop(ctx)
}

// Reset interrupts like [Coordinator.Interrupt] and additionally clears the
// conversation history, for starting an unrelated conversation.
func (c *Coordinator) Reset(ctx context.Context) error {
	c.mu.Lock()
	subscription := c.activeSubscription
	c.activeSubscription = nil
	c.history = nil
	c.mu.Unlock()

	subscription.Cancel()
	return c.scheduler.Reset(ctx)
}

// IsSpeaking reports whether synthesized audio is currently sounding.
func (c *Coordinator) IsSpeaking() bool {
	return c.scheduler.IsSpeaking()
}

// PendingSpeechStreams reports how many synthesis streams are queued behind
// the one currently playing.
func (c *Coordinator) PendingSpeechStreams() int {
	return c.scheduler.PendingStreams()
}

// History returns a point-in-time snapshot of the conversation.
func (c *Coordinator) History() []inference.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]inference.Message, len(c.history))
	copy(snapshot, c.history)
	return snapshot
}

func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		if c.cancelHook != nil {
			close(c.cancelHook)
		}

		c.mu.Lock()
		subscription := c.activeSubscription
		c.activeSubscription = nil
		c.mu.Unlock()

		subscription.Cancel()

		if err := c.scheduler.Stop(c.baseContext); err != nil {
			recordedErr := fmt.Errorf("failed to stop playback: %w", err)
			span := trace.SpanFromContext(c.baseContext)
			span.RecordError(recordedErr)
			span.SetStatus(codes.Error, recordedErr.Error())
		}

		if closer, ok := c.sink.(interface{ Close() }); ok {
			closer.Close()
		}
	})
}

func (c *Coordinator) emit(event events.Event) {
	if c.emitEvent == nil {
		return
	}

	c.emitEvent(event)
}
