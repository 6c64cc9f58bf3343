package coordination

import events "github.com/allybot/ally-core/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts CoordinateOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.InferenceReasoningUpdated:
			if opts.onThinking != nil {
				opts.onThinking(typedEvent.ReasoningText)
			}
		case events.InferenceAnswerUpdated:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.AnswerText)
			}
		case events.InferenceDone:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.AnswerText)
			}
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.AnswerText)
			}
		case events.InferenceAborted:
			if opts.onAborted != nil {
				opts.onAborted(typedEvent.AnswerText, typedEvent.Err)
			}
		case events.PlaybackStarted:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(true)
			}
		case events.PlaybackIdle:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.PlaybackStopped:
			if opts.onSpeakingStateChanged != nil {
				opts.onSpeakingStateChanged(false)
			}
		case events.PlaybackStreamFailed:
			if opts.onError != nil {
				opts.onError(typedEvent.Err)
			}
		}
	}
}
