package audio

// Sink is an exclusive-ownership audio output device.
//
// Play enqueues one decoded PCM sample for rendering and arranges for
// onPlayed to be invoked exactly once, after the final byte of the sample has
// left the device buffer. Play never blocks on rendering; sequencing across
// samples is the caller's job.
//
// Halt discards everything queued immediately, including a sample that is
// mid-render. Callbacks for discarded samples are never invoked.
type Sink interface {
	Play(pcm []byte, onPlayed func()) error
	Halt()
	EncodingInfo() EncodingInfo
}
