package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/allybot/ally-core/core/inference"
	"github.com/allybot/ally-core/core/synthesis"
)

type fakeSynthesizer struct {
	mu          sync.Mutex
	submissions []string
	streamIDs   []string
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text string, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, text)
	s.streamIDs = append(s.streamIDs, streamID)
	return nil
}

func (s *fakeSynthesizer) submitted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	submissions := make([]string, len(s.submissions))
	copy(submissions, s.submissions)
	return submissions
}

func (s *fakeSynthesizer) uniqueStreamIDs() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, id := range s.streamIDs {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	return true
}

func TestCoordinatorSynthesizesAnswerSentences(t *testing.T) {
	streamer := &scriptedStreamer{stream: scriptedStream{chunks: []inference.StreamChunk{
		{Content: "The sky is blue because of Rayleigh scattering."},
		{Content: " Short wavelengths scatter much more strongly."},
		{Done: true},
	}}}
	synthesizer := &fakeSynthesizer{}
	coordinator := NewCoordinator(
		WithInferenceClient(streamer),
		WithSynthesizer(synthesizer),
	)

	responseEnd := make(chan string, 1)
	coordinator.Coordinate(context.Background(),
		WithResponseEndCallback(func(answerText string) { responseEnd <- answerText }),
	)

	if err := coordinator.SendMessage("Why is the sky blue?"); err != nil {
		t.Fatalf("expected the message to be accepted, got %v", err)
	}

	var answer string
	select {
	case answer = <-responseEnd:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the response to complete")
	}
	if answer == "" {
		t.Fatalf("expected a non-empty answer")
	}

	waitForCondition(t, time.Second, func() bool { return len(synthesizer.submitted()) == 2 },
		"timed out waiting for answer sentences to be submitted for synthesis")
	submissions := synthesizer.submitted()
	if submissions[0] != "The sky is blue because of Rayleigh scattering." {
		t.Fatalf("unexpected first synthesis submission %q", submissions[0])
	}
	if !synthesizer.uniqueStreamIDs() {
		t.Fatalf("expected every submission to open its own stream")
	}

	waitForCondition(t, time.Second, func() bool { return len(coordinator.History()) == 2 },
		"timed out waiting for the exchange to be recorded")
	history := coordinator.History()
	if history[0].Role != inference.RoleUser || history[1].Role != inference.RoleAssistant {
		t.Fatalf("unexpected history roles %v, %v", history[0].Role, history[1].Role)
	}
	if history[1].Content != answer {
		t.Fatalf("expected the assistant message to carry the answer")
	}
}

func TestCoordinatorEmitsThinkingSnapshots(t *testing.T) {
	streamer := &scriptedStreamer{stream: scriptedStream{chunks: []inference.StreamChunk{
		{Content: "Let me think about scattering"},
		{Content: " Therefore, blue light dominates the sky."},
		{Done: true},
	}}}
	coordinator := NewCoordinator(WithInferenceClient(streamer))

	thinking := make(chan string, 8)
	responses := make(chan string, 8)
	done := make(chan string, 1)
	coordinator.Coordinate(context.Background(),
		WithThinkingCallback(func(reasoningText string) { thinking <- reasoningText }),
		WithResponseCallback(func(answerText string) { responses <- answerText }),
		WithResponseEndCallback(func(answerText string) { done <- answerText }),
	)

	if err := coordinator.SendMessage("Why is the sky blue?"); err != nil {
		t.Fatalf("expected the message to be accepted, got %v", err)
	}

	select {
	case reasoningText := <-thinking:
		if reasoningText != "Let me think about scattering" {
			t.Fatalf("unexpected reasoning snapshot %q", reasoningText)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a thinking snapshot")
	}

	select {
	case answerText := <-done:
		if answerText != " Therefore, blue light dominates the sky." {
			t.Fatalf("unexpected final answer %q", answerText)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
	}
}

func TestCoordinatorInterruptAbortsAndCancelsSynthesis(t *testing.T) {
	release := make(chan struct{})
	streamer := &scriptedStreamer{stream: gatedStream{release: release}}
	synthesizer := &fakeSynthesizer{}
	canceller := &fakeCanceller{}
	coordinator := NewCoordinator(
		WithInferenceClient(streamer),
		WithSynthesizer(synthesizer),
		WithSynthesisCancellation(canceller),
	)

	thinking := make(chan string, 8)
	aborted := make(chan error, 1)
	coordinator.Coordinate(context.Background(),
		WithThinkingCallback(func(reasoningText string) { thinking <- reasoningText }),
		WithAbortedCallback(func(_ string, err error) { aborted <- err }),
	)

	if err := coordinator.SendMessage("question"); err != nil {
		t.Fatalf("expected the message to be accepted, got %v", err)
	}

	select {
	case <-thinking:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the first snapshot")
	}

	if err := coordinator.Interrupt(context.Background()); err != nil {
		t.Fatalf("expected the interrupt to succeed, got %v", err)
	}
	close(release)

	select {
	case err := <-aborted:
		if err != nil {
			t.Fatalf("expected a clean cooperative abort, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the abort")
	}

	if canceller.cancelCount() != 1 {
		t.Fatalf("expected the server-side synthesis queue to be cancelled, got %d calls", canceller.cancelCount())
	}
}

func TestCoordinatorResetClearsHistory(t *testing.T) {
	streamer := &scriptedStreamer{stream: scriptedStream{chunks: []inference.StreamChunk{
		{Content: "Paris."},
		{Done: true},
	}}}
	coordinator := NewCoordinator(WithInferenceClient(streamer))

	done := make(chan string, 1)
	coordinator.Coordinate(context.Background(),
		WithResponseEndCallback(func(answerText string) { done <- answerText }),
	)

	if err := coordinator.SendMessage("Capital of France?"); err != nil {
		t.Fatalf("expected the message to be accepted, got %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for completion")
	}
	waitForCondition(t, time.Second, func() bool { return len(coordinator.History()) == 2 },
		"timed out waiting for history to record the exchange")

	if err := coordinator.Reset(context.Background()); err != nil {
		t.Fatalf("expected the reset to succeed, got %v", err)
	}
	if history := coordinator.History(); len(history) != 0 {
		t.Fatalf("expected an empty history after reset, got %d messages", len(history))
	}
}

func TestCoordinatorRoutesSynthesisEventsToPlayback(t *testing.T) {
	sink := &fakeSink{}
	coordinator := NewCoordinator(WithAudioSink(sink), WithPlaybackGap(0))

	speaking := make(chan bool, 8)
	coordinator.Coordinate(context.Background(),
		WithSpeakingStateChangedCallback(func(isSpeaking bool) { speaking <- isSpeaking }),
	)

	coordinator.HandleSynthesisEvent(synthesis.StreamStarted{ID: "s1", Text: "hello", TotalSentences: 1})
	coordinator.HandleSynthesisEvent(synthesis.StreamChunk{ID: "s1", AudioData: makeChunkPayload(t, 6), IsFinal: true})

	waitForCondition(t, time.Second, func() bool { return sink.playCount() == 1 },
		"timed out waiting for the chunk to reach the sink")
	if !coordinator.IsSpeaking() {
		t.Fatalf("expected the coordinator to report speaking")
	}

	select {
	case isSpeaking := <-speaking:
		if !isSpeaking {
			t.Fatalf("expected the first speaking-state update to be true")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the speaking-state update")
	}

	coordinator.HandleSynthesisEvent(synthesis.StreamCompleted{ID: "s1", TotalChunks: 1})
	sink.finishOldest(t)
	waitForCondition(t, time.Second, func() bool { return !coordinator.IsSpeaking() },
		"timed out waiting for playback to go idle")
}
