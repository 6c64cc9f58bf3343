package coordination

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/allybot/ally-core/core/events"
	"github.com/allybot/ally-core/core/inference"
)

// ErrAlreadyActive is returned by [StreamClassifier.Submit] when the given
// request identifier already belongs to a session that has not yet
// terminated.
var ErrAlreadyActive = errors.New("request already active")

// StreamClassifier turns raw incremental model responses into phase-tagged
// snapshot events. It does not serialize requests: callers may run several
// sessions concurrently as long as request identifiers stay unique among
// live sessions.
type StreamClassifier struct {
	streamer inference.Streamer
	policy   PhasePolicy

	mu       sync.Mutex
	sessions map[string]*InferenceStreamSession
}

func NewStreamClassifier(streamer inference.Streamer, policy PhasePolicy) *StreamClassifier {
	return &StreamClassifier{
		streamer: streamer,
		policy:   policy,
		sessions: map[string]*InferenceStreamSession{},
	}
}

// Submit opens a session for one chat request and starts consuming its
// response stream. The returned subscription delivers snapshot events in
// fragment order and is closed after exactly one terminal event.
func (c *StreamClassifier) Submit(ctx context.Context, requestID string, priorMessages []inference.Message, newMessageText string) (*Subscription, error) {
	if c == nil || c.streamer == nil {
		return nil, errors.New("no inference client configured")
	}

	c.mu.Lock()
	if _, active := c.sessions[requestID]; active {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyActive, requestID)
	}
	session := newInferenceStreamSession(requestID, c.policy)
	c.sessions[requestID] = session
	c.mu.Unlock()

	messages := make([]inference.Message, 0, len(priorMessages)+1)
	messages = append(messages, priorMessages...)
	messages = append(messages, inference.Message{Role: inference.RoleUser, Content: newMessageText})

	subscription := &Subscription{
		session: session,
		events:  make(chan events.Event, 16),
	}

	stream := c.streamer.ChatStream(ctx, messages)
	worker := panicSafeNamedWorker("stream classifier", func(ctx context.Context) error {
		c.consume(ctx, session, subscription, stream)
		return nil
	})
	go func() {
		if err := worker(ctx); err != nil {
			logger.Error("Stream classification failed", "requestID", session.requestID, "error", err)
		}
	}()

	return subscription, nil
}

func (c *StreamClassifier) consume(ctx context.Context, session *InferenceStreamSession, subscription *Subscription, stream inference.Stream) {
	// The identifier must be released before the channel closes, so a caller
	// observing the close can immediately reuse it.
	defer close(subscription.events)
	defer c.release(session.requestID)

	ctx, span := tracer.Start(ctx, "classify inference stream")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", session.requestID))

	var transportErr error
	completed := false
	for chunk, err := range stream.Chunks(ctx) {
		if session.Cancelled() {
			break
		}
		if err != nil {
			transportErr = err
			break
		}

		if event := session.classify(chunk.Content); event != nil {
			if !subscription.send(event) {
				break
			}
		}

		if chunk.Done {
			completed = true
			break
		}
	}

	span.SetAttributes(attribute.String("session.phase", session.phase.String()))

	switch {
	case session.Cancelled():
		subscription.sendTerminal(session.abort(nil))
	case transportErr != nil:
		span.RecordError(transportErr)
		span.SetStatus(codes.Error, "inference stream failed")
		subscription.sendTerminal(session.abort(transportErr))
	case completed:
		subscription.sendTerminal(session.finish())
	default:
		// Transport ended without a terminal marker.
		subscription.sendTerminal(session.finish())
	}
}

func (c *StreamClassifier) release(requestID string) {
	c.mu.Lock()
	delete(c.sessions, requestID)
	c.mu.Unlock()
}

// Subscription delivers the snapshot events of one session. Events arrive in
// the order their fragments did; the channel is closed after the terminal
// done or aborted event.
type Subscription struct {
	session *InferenceStreamSession
	events  chan events.Event
}

// Events returns the session's event channel.
func (s *Subscription) Events() <-chan events.Event {
	if s == nil {
		return nil
	}

	return s.events
}

// Cancel requests cooperative cancellation of the session. A single aborted
// event follows, after which the channel closes.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}

	s.session.Cancel()
}

func (s *Subscription) send(event events.Event) bool {
	select {
	case s.events <- event:
		return true
	case <-s.session.cancelled:
		return false
	}
}

// sendTerminal delivers the terminal event. Delivery after cancellation is
// best-effort: a consumer that cancelled and walked away must not block
// session teardown.
func (s *Subscription) sendTerminal(event events.Event) {
	select {
	case s.events <- event:
	case <-s.session.cancelled:
		select {
		case s.events <- event:
		default:
		}
	}
}
