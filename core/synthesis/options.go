package synthesis

import "context"

type SynthesisOptions struct {
	// EventCallback is called for every lifecycle event, in the order the
	// service delivered them. A single callback rather than one per event
	// type keeps cross-stream ordering observable by the consumer.
	EventCallback func(Event)
	// ErrorCallback is called for transport-level failures that are not tied
	// to any one stream, this usually means the connection dropped.
	ErrorCallback func(error)
}

type SynthesisOption func(*SynthesisOptions)

func WithEventCallback(callback func(Event)) SynthesisOption {
	return func(o *SynthesisOptions) {
		if callback != nil {
			o.EventCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) SynthesisOption {
	return func(o *SynthesisOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

// Synthesizer submits text for synthesis. Each submission opens a new logical
// stream identified by streamID; lifecycle events for it arrive through the
// configured event callback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, streamID string) error
}

// Canceller asks the service to drop any synthesis still queued on its side.
// Streams already announced may still deliver trailing events afterwards.
type Canceller interface {
	CancelAll(ctx context.Context) error
}
