package inference

import "context"

// Stream is one in-flight streamed model response. Chunks yields fragments in
// the order the transport produced them and terminates after the first chunk
// whose Done flag is set, or after yielding a non-nil error.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

// StreamChunk is one increment of a streamed response. A terminal chunk may
// or may not carry trailing content.
type StreamChunk struct {
	Content string
	Done    bool
}

// Streamer opens streaming chat completions against an inference service.
type Streamer interface {
	ChatStream(ctx context.Context, messages []Message) Stream
}
