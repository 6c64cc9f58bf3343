package synthesis

// DefaultStreamID correlates events from services that omit a stream
// identifier. Every lifecycle event for such a service collapses onto one
// logical stream.
const DefaultStreamID = "default"

// Event is one synthesis lifecycle notification. All events are keyed by the
// identifier of the stream they belong to.
type Event interface {
	StreamID() string
}

// StreamStarted announces that the service accepted a synthesis request and
// will follow up with chunks for this stream.
type StreamStarted struct {
	ID             string
	Text           string
	TotalSentences int
}

func (e StreamStarted) StreamID() string { return e.ID }

// StreamChunk carries one transport-encoded audio payload. Index counts from
// zero in synthesis order; AudioData is a base64 WAV container.
type StreamChunk struct {
	ID          string
	Index       int
	TotalChunks int
	AudioData   string
	Text        string
	IsFinal     bool
}

func (e StreamChunk) StreamID() string { return e.ID }

// StreamCompleted announces that no more chunks will arrive for this stream.
type StreamCompleted struct {
	ID          string
	TotalChunks int
}

func (e StreamCompleted) StreamID() string { return e.ID }

// StreamFailed announces that synthesis for this stream failed. No more
// chunks will arrive for it.
type StreamFailed struct {
	ID  string
	Err error
}

func (e StreamFailed) StreamID() string { return e.ID }
