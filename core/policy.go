package coordination

import "strings"

// PhasePolicy is the ordered heuristic used to classify an incremental model
// response into a deliberative phase and an answering phase. The rules are
// evaluated in a fixed order:
//
//  1. Before any phase is entered, the accumulated text is scanned for a
//     reasoning marker; text that grows past DirectAnswerThreshold without
//     one is treated as a direct answer.
//  2. During the deliberative phase, each new fragment is scanned for a
//     conclusion marker; completed-sentence count and total length act as
//     fallback transitions so the phase always ends.
//
// The marker lists are configuration, not a correctness contract. They are
// lexical cues and will occasionally misread conversational filler.
type PhasePolicy struct {
	// ReasoningMarkers are matched case-insensitively against the text
	// accumulated before any phase is known.
	ReasoningMarkers []string
	// ConclusionMarkers are matched case-insensitively against each fragment
	// that arrives during the deliberative phase. A matching fragment belongs
	// to the answer, not to the reasoning that preceded it.
	ConclusionMarkers []string

	// DirectAnswerThreshold is the number of buffered characters after which
	// a markerless response is treated as a direct answer.
	DirectAnswerThreshold int
	// CompletedSentenceLimit ends the deliberative phase once the reasoning
	// text contains this many completed sentences. Zero disables the rule.
	CompletedSentenceLimit int
	// ReasoningLengthCap force-ends the deliberative phase once the reasoning
	// text exceeds this many characters. Zero disables the rule.
	ReasoningLengthCap int
}

func DefaultPhasePolicy() PhasePolicy {
	return PhasePolicy{
		ReasoningMarkers: []string{
			"let me think",
			"let's think",
			"let me consider",
			"let me work through",
			"thinking about",
		},
		ConclusionMarkers: []string{
			"therefore",
			"in conclusion",
			"to summarize",
			"so the answer",
			"the answer is",
		},
		DirectAnswerThreshold:  120,
		CompletedSentenceLimit: 3,
		ReasoningLengthCap:     600,
	}
}

func (p PhasePolicy) MatchesReasoningMarker(text string) bool {
	return containsAnyFold(text, p.ReasoningMarkers)
}

func (p PhasePolicy) MatchesConclusionMarker(text string) bool {
	return containsAnyFold(text, p.ConclusionMarkers)
}

// DeliberationExhausted reports whether the reasoning text has run its
// course without an explicit conclusion marker.
func (p PhasePolicy) DeliberationExhausted(reasoningText string) bool {
	if p.CompletedSentenceLimit > 0 && countCompletedSentences(reasoningText) >= p.CompletedSentenceLimit {
		return true
	}

	return p.ReasoningLengthCap > 0 && len(reasoningText) > p.ReasoningLengthCap
}

func containsAnyFold(text string, markers []string) bool {
	folded := strings.ToLower(text)
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		if strings.Contains(folded, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func countCompletedSentences(text string) int {
	count := 0
	terminated := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !terminated {
				count++
				terminated = true
			}
		default:
			terminated = false
		}
	}
	return count
}
