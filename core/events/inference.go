package events

const (
	// KindInferenceReasoningUpdated identifies an updated reasoning-phase
	// snapshot for an inference session.
	KindInferenceReasoningUpdated Kind = "inference.reasoning_updated"
	// KindInferenceAnswerUpdated identifies an updated answer-phase snapshot.
	KindInferenceAnswerUpdated Kind = "inference.answer_updated"
	// KindInferenceDone identifies inference session completion.
	KindInferenceDone Kind = "inference.done"
	// KindInferenceAborted identifies inference session abortion.
	KindInferenceAborted Kind = "inference.aborted"
)

// InferenceReasoningUpdated carries the full accumulated reasoning text for a
// session still in its deliberative phase. Snapshots are cumulative, never
// deltas, so consumers can render idempotently.
type InferenceReasoningUpdated struct {
	Base
	RequestID     string
	ReasoningText string
}

// NewInferenceReasoningUpdated creates a reasoning snapshot event.
func NewInferenceReasoningUpdated(requestID, reasoningText string) InferenceReasoningUpdated {
	return InferenceReasoningUpdated{Base: NewBase(KindInferenceReasoningUpdated), RequestID: requestID, ReasoningText: reasoningText}
}

// InferenceAnswerUpdated carries the full accumulated answer text together
// with whatever reasoning text preceded it.
type InferenceAnswerUpdated struct {
	Base
	RequestID     string
	ReasoningText string
	AnswerText    string
}

// NewInferenceAnswerUpdated creates an answer snapshot event.
func NewInferenceAnswerUpdated(requestID, reasoningText, answerText string) InferenceAnswerUpdated {
	return InferenceAnswerUpdated{Base: NewBase(KindInferenceAnswerUpdated), RequestID: requestID, ReasoningText: reasoningText, AnswerText: answerText}
}

// InferenceDone marks the terminal state of a completed session. AnswerText is
// always non-empty when any text was streamed at all: sessions that never left
// the reasoning phase fall back to their reasoning text.
type InferenceDone struct {
	Base
	RequestID     string
	ReasoningText string
	AnswerText    string
}

// NewInferenceDone creates a session completion event.
func NewInferenceDone(requestID, reasoningText, answerText string) InferenceDone {
	return InferenceDone{Base: NewBase(KindInferenceDone), RequestID: requestID, ReasoningText: reasoningText, AnswerText: answerText}
}

// InferenceAborted marks a session that was cancelled or whose transport
// failed. The texts carry whatever was accumulated before the abort.
type InferenceAborted struct {
	Base
	RequestID     string
	ReasoningText string
	AnswerText    string
	Err           error
}

// NewInferenceAborted creates a session abortion event.
func NewInferenceAborted(requestID, reasoningText, answerText string, err error) InferenceAborted {
	return InferenceAborted{Base: NewBase(KindInferenceAborted), RequestID: requestID, ReasoningText: reasoningText, AnswerText: answerText, Err: err}
}
