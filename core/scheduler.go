package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/allybot/ally-core/core/audio"
	"github.com/allybot/ally-core/core/events"
	"github.com/allybot/ally-core/core/synthesis"
)

const defaultInterChunkGap = 80 * time.Millisecond

type streamState int

const (
	streamPending streamState = iota
	streamActive
	streamDraining
	streamFinished
)

// synthesisStream buffers the transport-encoded payloads of one synthesis
// request. Chunk order is arrival order.
type synthesisStream struct {
	id        string
	state     streamState
	chunks    []string
	completed bool
	failed    bool
	started   bool
}

// PlaybackScheduler serializes the audio of overlapping synthesis streams.
// At most one stream is active at a time; streams that start while another
// is still sounding queue behind it in arrival order and are never
// interleaved. Within a stream, chunks play strictly sequentially.
//
// All state is owned by one scheduler instance. The audio sink is written to
// only through the scheduler; two chunks are never in flight at once.
type PlaybackScheduler struct {
	sink      audio.Sink
	canceller synthesis.Canceller
	emitEvent eventEmitter
	gap       time.Duration

	mu           sync.Mutex
	current      *synthesisStream
	pending      map[string]*synthesisStream
	pendingOrder []string
	playing      bool
	speaking     bool
	generation   uint64
}

type PlaybackSchedulerOption func(*PlaybackScheduler)

// WithSynthesisCanceller registers a client used to cancel server-side
// synthesis queues when playback is stopped.
func WithSynthesisCanceller(canceller synthesis.Canceller) PlaybackSchedulerOption {
	return func(s *PlaybackScheduler) { s.canceller = canceller }
}

// WithInterChunkGap overrides the pause inserted between consecutive chunks.
// The gap is a cadence tunable, not a correctness requirement.
func WithInterChunkGap(gap time.Duration) PlaybackSchedulerOption {
	return func(s *PlaybackScheduler) {
		if gap >= 0 {
			s.gap = gap
		}
	}
}

func WithPlaybackEventCallback(callback func(events.Event)) PlaybackSchedulerOption {
	return func(s *PlaybackScheduler) {
		if callback != nil {
			s.emitEvent = callback
		}
	}
}

func NewPlaybackScheduler(sink audio.Sink, opts ...PlaybackSchedulerOption) *PlaybackScheduler {
	s := &PlaybackScheduler{
		sink:      sink,
		emitEvent: noopEventEmitter,
		gap:       defaultInterChunkGap,
		pending:   map[string]*synthesisStream{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent routes one synthesis lifecycle event to the matching scheduler
// operation, so the scheduler can be wired directly as a synthesis event
// callback.
func (s *PlaybackScheduler) HandleEvent(event synthesis.Event) {
	if s == nil {
		return
	}

	switch typedEvent := event.(type) {
	case synthesis.StreamStarted:
		s.OnStreamStart(typedEvent.StreamID())
	case synthesis.StreamChunk:
		s.OnChunk(typedEvent.StreamID(), typedEvent.AudioData)
	case synthesis.StreamCompleted:
		s.OnComplete(typedEvent.StreamID())
	case synthesis.StreamFailed:
		s.OnError(typedEvent.StreamID(), typedEvent.Err)
	}
}

// OnStreamStart registers a new synthesis stream. The stream becomes active
// immediately when nothing is sounding and nothing is queued ahead of it,
// otherwise it waits its turn.
func (s *PlaybackScheduler) OnStreamStart(streamID string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	var emitted []events.Event
	s.registerLocked(streamID, &emitted)
	s.mu.Unlock()
	s.emitAll(emitted)
}

// OnChunk buffers one transport-encoded audio payload for its stream and
// starts playback when the stream is active and the sink is idle. Chunks for
// a stream that was never announced adopt the stream implicitly so the audio
// is not dropped.
func (s *PlaybackScheduler) OnChunk(streamID string, payload string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	var emitted []events.Event
	if s.current == nil || s.current.id != streamID {
		if _, known := s.pending[streamID]; !known {
			s.registerLocked(streamID, &emitted)
		}
	}

	switch {
	case s.current != nil && s.current.id == streamID:
		s.current.chunks = append(s.current.chunks, payload)
		if !s.playing {
			s.advanceLocked(&emitted)
		}
	default:
		if stream, known := s.pending[streamID]; known {
			stream.chunks = append(stream.chunks, payload)
		}
	}
	s.mu.Unlock()
	s.emitAll(emitted)
}

// OnComplete marks a stream as fully delivered. An active stream drains its
// remaining chunks before the next pending stream is promoted.
func (s *PlaybackScheduler) OnComplete(streamID string) {
	s.finishDelivery(streamID, nil)
}

// OnError surfaces a synthesis failure for one stream and otherwise treats
// the stream as delivered, so the queue keeps moving.
func (s *PlaybackScheduler) OnError(streamID string, err error) {
	s.finishDelivery(streamID, err)
}

func (s *PlaybackScheduler) finishDelivery(streamID string, deliveryErr error) {
	if s == nil {
		return
	}

	s.mu.Lock()
	var emitted []events.Event
	if deliveryErr != nil {
		emitted = append(emitted, events.NewPlaybackStreamFailed(streamID, deliveryErr))
	}

	switch {
	case s.current != nil && s.current.id == streamID:
		s.current.completed = true
		s.current.failed = s.current.failed || deliveryErr != nil
		s.current.state = streamDraining
		if !s.playing {
			s.advanceLocked(&emitted)
		}
	default:
		if stream, known := s.pending[streamID]; known {
			stream.completed = true
			stream.failed = stream.failed || deliveryErr != nil
		}
	}
	s.mu.Unlock()
	s.emitAll(emitted)
}

// Stop halts audio output immediately, discards everything queued on every
// stream, and asks the synthesis service to drop its server-side queue.
// Callbacks from chunks already handed to the sink are ignored afterwards.
func (s *PlaybackScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	s.generation++
	s.playing = false
	s.current = nil
	s.pending = map[string]*synthesisStream{}
	s.pendingOrder = nil
	s.speaking = false
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Halt()
	}
	s.emitEvent(events.NewPlaybackStopped())

	if s.canceller != nil {
		if err := s.canceller.CancelAll(ctx); err != nil {
			return fmt.Errorf("failed to cancel queued synthesis: %w", err)
		}
	}

	return nil
}

// Reset is Stop for conversation boundaries: it guarantees no stream
// identifier from a previous conversation can be mistaken for still active.
func (s *PlaybackScheduler) Reset(ctx context.Context) error {
	return s.Stop(ctx)
}

// PendingStreams reports how many streams are queued behind the active one.
func (s *PlaybackScheduler) PendingStreams() int {
	if s == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingOrder)
}

// IsSpeaking reports whether any stream currently has audio at the sink.
func (s *PlaybackScheduler) IsSpeaking() bool {
	if s == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

func (s *PlaybackScheduler) registerLocked(streamID string, emitted *[]events.Event) {
	if s.current != nil && s.current.id == streamID {
		return
	}
	if _, known := s.pending[streamID]; known {
		return
	}

	// A current stream that is silent, has nothing queued, and is not
	// draining is a dead reference. New streams must not queue behind it.
	if s.current != nil && !s.playing && len(s.current.chunks) == 0 && !s.current.completed {
		s.current = nil
	}

	if s.current == nil && len(s.pendingOrder) == 0 {
		s.current = &synthesisStream{id: streamID, state: streamActive}
		return
	}

	s.pending[streamID] = &synthesisStream{id: streamID, state: streamPending}
	s.pendingOrder = append(s.pendingOrder, streamID)
	if s.current == nil && !s.playing {
		s.advanceLocked(emitted)
	}
}

// advanceLocked drives the drain-and-promote loop: play the active stream's
// oldest chunk, finish the stream once it is drained and delivered, then
// promote the oldest pending stream. Must be called with the mutex held and
// playing false.
func (s *PlaybackScheduler) advanceLocked(emitted *[]events.Event) {
	for {
		if s.playing {
			return
		}

		if s.current == nil {
			if len(s.pendingOrder) == 0 {
				if s.speaking {
					s.speaking = false
					*emitted = append(*emitted, events.NewPlaybackIdle())
				}
				return
			}

			next := s.pendingOrder[0]
			s.pendingOrder = s.pendingOrder[1:]
			s.current = s.pending[next]
			delete(s.pending, next)
			s.current.state = streamActive
		}

		if len(s.current.chunks) > 0 {
			if s.playChunkLocked(emitted) {
				return
			}
			continue
		}

		if s.current.completed {
			s.current.state = streamFinished
			if !s.current.failed {
				*emitted = append(*emitted, events.NewPlaybackStreamFinished(s.current.id))
			}
			s.current = nil
			continue
		}

		// Active stream is still being delivered; wait for more chunks.
		return
	}
}

// playChunkLocked consumes queued payloads until one reaches the sink.
// Payloads that fail to decode or enqueue are logged and skipped; they never
// abort the stream.
func (s *PlaybackScheduler) playChunkLocked(emitted *[]events.Event) bool {
	for len(s.current.chunks) > 0 {
		payload := s.current.chunks[0]
		s.current.chunks = s.current.chunks[1:]

		if s.sink == nil {
			continue
		}

		pcm, _, err := audio.DecodeBase64WAV(payload)
		if err != nil {
			logger.Warn("Skipping undecodable audio chunk", "streamID", s.current.id, "error", err)
			continue
		}

		generation := s.generation
		streamID := s.current.id
		if err := s.sink.Play(pcm, func() { s.chunkPlayed(generation, streamID) }); err != nil {
			logger.Warn("Failed to enqueue audio chunk", "streamID", s.current.id, "error", err)
			continue
		}

		s.playing = true
		if !s.current.started {
			s.current.started = true
			*emitted = append(*emitted, events.NewPlaybackStarted(streamID))
		}
		s.speaking = true
		return true
	}

	return false
}

// chunkPlayed runs after a chunk finished rendering. The generation check
// drops callbacks from chunks that were discarded by a stop or reset.
func (s *PlaybackScheduler) chunkPlayed(generation uint64, streamID string) {
	resume := func() {
		s.mu.Lock()
		if generation != s.generation {
			s.mu.Unlock()
			return
		}

		emitted := []events.Event{events.NewPlaybackChunkPlayed(streamID)}
		s.playing = false
		s.advanceLocked(&emitted)
		s.mu.Unlock()
		s.emitAll(emitted)
	}

	if s.gap > 0 {
		time.AfterFunc(s.gap, resume)
	} else {
		go resume()
	}
}

func (s *PlaybackScheduler) emitAll(emitted []events.Event) {
	for _, event := range emitted {
		s.emitEvent(event)
	}
}
