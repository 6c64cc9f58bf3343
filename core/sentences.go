package coordination

import (
	"regexp"
	"strings"
)

const (
	minSentenceLength   = 3
	shortSentenceLength = 20
)

var (
	markdownHeadingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	markdownBulletPattern  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	markdownEmphasisChars  = strings.NewReplacer("**", "", "*", "", "__", "", "_", "", "`", "")
	sentenceBreakPattern   = regexp.MustCompile(`[.!?]+\s+`)
)

// splitSentences cuts prose into speakable sentences. Markdown decoration is
// stripped first so it is never read aloud. Fragments shorter than three
// characters are dropped; short sentences are merged forward so synthesis
// requests are not dominated by interjections.
func splitSentences(text string) []string {
	cleaned := strings.TrimSpace(stripMarkdown(text))
	if cleaned == "" {
		return nil
	}

	raw := []string{}
	start := 0
	for _, match := range sentenceBreakPattern.FindAllStringIndex(cleaned, -1) {
		breakAt := match[0]
		for breakAt < match[1] && strings.ContainsRune(".!?", rune(cleaned[breakAt])) {
			breakAt++
		}
		raw = append(raw, cleaned[start:breakAt])
		start = match[1]
	}
	if start < len(cleaned) {
		raw = append(raw, cleaned[start:])
	}

	sentences := []string{}
	carry := ""
	for _, sentence := range raw {
		sentence = strings.TrimSpace(carry + " " + sentence)
		carry = ""
		if len(sentence) < minSentenceLength {
			continue
		}
		if len(sentence) < shortSentenceLength {
			carry = sentence
			continue
		}
		sentences = append(sentences, sentence)
	}
	if len(carry) >= minSentenceLength {
		sentences = append(sentences, carry)
	}

	return sentences
}

func stripMarkdown(text string) string {
	text = markdownHeadingPattern.ReplaceAllString(text, "")
	text = markdownBulletPattern.ReplaceAllString(text, "")
	return markdownEmphasisChars.Replace(text)
}

// completedSentences returns the sentences of text whose terminators have
// already streamed in, plus the trailing remainder that is still being
// produced. It lets a consumer speak sentence-by-sentence while text is
// still arriving.
func completedSentences(text string) (sentences []string, remainder string) {
	lastBreak := 0
	for _, match := range sentenceBreakPattern.FindAllStringIndex(text, -1) {
		lastBreak = match[1]
	}
	if lastBreak == 0 {
		return nil, text
	}

	return splitSentences(text[:lastBreak]), text[lastBreak:]
}
