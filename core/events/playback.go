package events

const (
	// KindPlaybackStarted identifies the start of audible output for a
	// synthesis stream.
	KindPlaybackStarted Kind = "playback.started"
	// KindPlaybackChunkPlayed identifies completion of one audio chunk.
	KindPlaybackChunkPlayed Kind = "playback.chunk_played"
	// KindPlaybackStreamFinished identifies that a stream fully drained.
	KindPlaybackStreamFinished Kind = "playback.stream_finished"
	// KindPlaybackIdle identifies transition to the no-active-stream state.
	KindPlaybackIdle Kind = "playback.idle"
	// KindPlaybackStopped identifies a hard stop (interruption or reset).
	KindPlaybackStopped Kind = "playback.stopped"
	// KindPlaybackStreamFailed identifies a synthesis failure surfaced for a
	// stream. The stream is treated as finished so the queue keeps moving.
	KindPlaybackStreamFailed Kind = "playback.stream_failed"
)

// PlaybackStarted marks the first chunk of a stream reaching the audio sink.
type PlaybackStarted struct {
	Base
	StreamID string
}

// NewPlaybackStarted creates a playback start event.
func NewPlaybackStarted(streamID string) PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted), StreamID: streamID}
}

// PlaybackChunkPlayed marks one chunk having finished rendering.
type PlaybackChunkPlayed struct {
	Base
	StreamID string
}

// NewPlaybackChunkPlayed creates a chunk completion event.
func NewPlaybackChunkPlayed(streamID string) PlaybackChunkPlayed {
	return PlaybackChunkPlayed{Base: NewBase(KindPlaybackChunkPlayed), StreamID: streamID}
}

// PlaybackStreamFinished marks a stream that drained all of its chunks.
type PlaybackStreamFinished struct {
	Base
	StreamID string
}

// NewPlaybackStreamFinished creates a stream drain event.
func NewPlaybackStreamFinished(streamID string) PlaybackStreamFinished {
	return PlaybackStreamFinished{Base: NewBase(KindPlaybackStreamFinished), StreamID: streamID}
}

// PlaybackIdle marks the scheduler going quiet with nothing pending.
type PlaybackIdle struct{ Base }

// NewPlaybackIdle creates an idle event.
func NewPlaybackIdle() PlaybackIdle {
	return PlaybackIdle{Base: NewBase(KindPlaybackIdle)}
}

// PlaybackStopped marks a destructive stop. Queued audio was discarded, not
// paused.
type PlaybackStopped struct{ Base }

// NewPlaybackStopped creates a stop event.
func NewPlaybackStopped() PlaybackStopped {
	return PlaybackStopped{Base: NewBase(KindPlaybackStopped)}
}

// PlaybackStreamFailed carries a synthesis error for one stream.
type PlaybackStreamFailed struct {
	Base
	StreamID string
	Err      error
}

// NewPlaybackStreamFailed creates a stream failure event.
func NewPlaybackStreamFailed(streamID string, err error) PlaybackStreamFailed {
	return PlaybackStreamFailed{Base: NewBase(KindPlaybackStreamFailed), StreamID: streamID, Err: err}
}
