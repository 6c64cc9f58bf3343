package coordination

import (
	"sync"

	"github.com/allybot/ally-core/core/events"
)

// Phase is the classification state of an inference session. Transitions are
// monotonic along Idle, Reasoning, Answering, Done; Aborted is reachable from
// any non-terminal state. Once Answering is entered the session never returns
// to Reasoning.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseReasoning
	PhaseAnswering
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseReasoning:
		return "reasoning"
	case PhaseAnswering:
		return "answering"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}

// InferenceStreamSession tracks one outstanding chat request. Its text fields
// are append-only; all mutation happens on the goroutine consuming the
// transport, so only cancellation needs synchronization.
type InferenceStreamSession struct {
	requestID string
	policy    PhasePolicy

	phase         Phase
	buffer        string
	reasoningText string
	answerText    string

	cancelled  chan struct{}
	cancelOnce sync.Once
}

func newInferenceStreamSession(requestID string, policy PhasePolicy) *InferenceStreamSession {
	return &InferenceStreamSession{
		requestID: requestID,
		policy:    policy,
		cancelled: make(chan struct{}),
	}
}

// Cancel requests cooperative cancellation. The session stops consuming
// transport data at the next fragment boundary and terminates with an
// aborted event.
func (s *InferenceStreamSession) Cancel() {
	if s == nil {
		return
	}

	s.cancelOnce.Do(func() { close(s.cancelled) })
}

func (s *InferenceStreamSession) Cancelled() bool {
	if s == nil {
		return false
	}

	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

// classify folds one transport fragment into the session and returns the
// snapshot event to deliver for it. Empty fragments are a no-op.
func (s *InferenceStreamSession) classify(fragment string) events.Event {
	if fragment == "" {
		return nil
	}

	switch s.phase {
	case PhaseIdle:
		s.buffer += fragment
		if s.policy.MatchesReasoningMarker(s.buffer) {
			s.phase = PhaseReasoning
			s.reasoningText = s.buffer
			s.buffer = ""
			return events.NewInferenceReasoningUpdated(s.requestID, s.reasoningText)
		}
		if s.policy.DirectAnswerThreshold > 0 && len(s.buffer) > s.policy.DirectAnswerThreshold {
			s.phase = PhaseAnswering
			s.answerText = s.buffer
			s.buffer = ""
			return events.NewInferenceAnswerUpdated(s.requestID, s.reasoningText, s.answerText)
		}
		// Provisional: the undecided buffer is surfaced as reasoning so the
		// consumer always has the full text to render.
		return events.NewInferenceReasoningUpdated(s.requestID, s.buffer)

	case PhaseReasoning:
		if s.policy.MatchesConclusionMarker(fragment) {
			s.phase = PhaseAnswering
			s.answerText += fragment
			return events.NewInferenceAnswerUpdated(s.requestID, s.reasoningText, s.answerText)
		}

		s.reasoningText += fragment
		if s.policy.DeliberationExhausted(s.reasoningText) {
			s.phase = PhaseAnswering
			return events.NewInferenceAnswerUpdated(s.requestID, s.reasoningText, s.answerText)
		}
		return events.NewInferenceReasoningUpdated(s.requestID, s.reasoningText)

	case PhaseAnswering:
		s.answerText += fragment
		return events.NewInferenceAnswerUpdated(s.requestID, s.reasoningText, s.answerText)
	}

	return nil
}

// finish moves the session to Done, applying the terminal fallbacks: a
// session that never left Idle yields its buffer as the answer, and a session
// that produced only reasoning text yields that text as the answer.
func (s *InferenceStreamSession) finish() events.InferenceDone {
	if s.phase == PhaseIdle && s.buffer != "" {
		s.answerText = s.buffer
		s.buffer = ""
	}
	if s.answerText == "" && s.reasoningText != "" {
		s.answerText = s.reasoningText
	}

	s.phase = PhaseDone
	return events.NewInferenceDone(s.requestID, s.reasoningText, s.answerText)
}

// abort moves the session to Aborted, carrying whatever text accumulated
// before the abort.
func (s *InferenceStreamSession) abort(err error) events.InferenceAborted {
	if s.phase == PhaseIdle && s.answerText == "" && s.reasoningText == "" {
		s.answerText = s.buffer
		s.buffer = ""
	}

	s.phase = PhaseAborted
	return events.NewInferenceAborted(s.requestID, s.reasoningText, s.answerText, err)
}
