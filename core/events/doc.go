// Package events defines the typed coordination event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - inference.*
//   - playback.*
//
// Semantics used across the package:
//
//   - Updated: cumulative point-in-time snapshot, safe to re-render.
//   - Done / Finished: terminal state for the session or stream.
//   - Aborted / Failed: terminal state reached through cancellation or error,
//     carrying whatever partial data was accumulated.
//
// inference events
//
//   - InferenceReasoningUpdated (inference.reasoning_updated): full reasoning
//     text so far, while the session is still deliberating.
//   - InferenceAnswerUpdated (inference.answer_updated): full answer text so
//     far, once the session entered its answering phase.
//   - InferenceDone (inference.done): session completed normally.
//   - InferenceAborted (inference.aborted): session cancelled or transport
//     failed.
//
// playback events
//
//   - PlaybackStarted (playback.started): first chunk of a stream reached the
//     sink.
//   - PlaybackChunkPlayed (playback.chunk_played): one chunk finished
//     rendering.
//   - PlaybackStreamFinished (playback.stream_finished): a stream drained.
//   - PlaybackIdle (playback.idle): no active stream and nothing pending.
//   - PlaybackStopped (playback.stopped): hard stop, queued audio discarded.
//   - PlaybackStreamFailed (playback.stream_failed): synthesis error for one
//     stream; the queue still advances.
package events
