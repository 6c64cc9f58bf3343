package coordination

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "empty text",
			text:     "",
			expected: nil,
		},
		{
			name: "plain prose",
			text: "Plants absorb light energy. The energy splits water molecules. Sugar is produced as a result.",
			expected: []string{
				"Plants absorb light energy.",
				"The energy splits water molecules.",
				"Sugar is produced as a result.",
			},
		},
		{
			name:     "short sentence merges forward",
			text:     "Yes. That is the whole explanation.",
			expected: []string{"Yes. That is the whole explanation."},
		},
		{
			name:     "tiny fragment is dropped",
			text:     "A. Light scattering explains the color of the sky.",
			expected: []string{"Light scattering explains the color of the sky."},
		},
		{
			name:     "markdown decoration is stripped",
			text:     "**Photosynthesis** happens in `chloroplasts` inside the leaf.",
			expected: []string{"Photosynthesis happens in chloroplasts inside the leaf."},
		},
		{
			name:     "trailing short text survives",
			text:     "It works like a pump. Mostly.",
			expected: []string{"It works like a pump.", "Mostly."},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := splitSentences(testCase.text)
			if len(got) == 0 && len(testCase.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, testCase.expected) {
				t.Fatalf("expected sentences %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestCompletedSentencesSplitsOffRemainder(t *testing.T) {
	sentences, remainder := completedSentences("The first point stands alone. The second is still strea")

	if !reflect.DeepEqual(sentences, []string{"The first point stands alone."}) {
		t.Fatalf("expected the completed sentence, got %q", sentences)
	}
	if remainder != "The second is still strea" {
		t.Fatalf("expected the in-flight text as remainder, got %q", remainder)
	}
}

func TestCompletedSentencesWithoutBreak(t *testing.T) {
	sentences, remainder := completedSentences("no terminator yet")

	if len(sentences) != 0 {
		t.Fatalf("expected no completed sentences, got %q", sentences)
	}
	if remainder != "no terminator yet" {
		t.Fatalf("expected the whole text as remainder, got %q", remainder)
	}
}
