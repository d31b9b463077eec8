package voicesignal

import (
	"math"
	"slices"
	"testing"
)

func TestAnalyzeText_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "..."} {
		got := AnalyzeText(in)
		if got.Speaking || got.Confidence != 0 || got.Nervousness != 0 || len(got.Patterns) != 0 {
			t.Errorf("AnalyzeText(%q) = %+v, want neutral", in, got)
		}
	}
}

func TestAnalyzeText_Confidence(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{
			name: "short hedged answer",
			text: "Maybe. I think so.",
			want: 0.1, // 0.5 - 0.1 (maybe) - 0.1 (i think) - 0.2 (short)
		},
		{
			name: "plain medium sentence",
			text: "I would use a hash map to store the counts here",
			want: 0.5,
		},
		{
			name: "certain and detailed",
			text: "I am definitely certain that the best approach here is to build a balanced tree and then walk it in order to produce the sorted output",
			want: 0.9, // 0.5 + 0.1 + 0.1 + 0.2 (long)
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeText(tc.text)
			if !got.Speaking {
				t.Fatal("Speaking = false")
			}
			if math.Abs(got.Confidence-tc.want) > 1e-9 {
				t.Errorf("Confidence = %.3f, want %.3f", got.Confidence, tc.want)
			}
		})
	}
}

func TestAnalyzeText_NervousnessCapped(t *testing.T) {
	text := "Um um um uh uh like like like like you know. I mean basically. Um. Like. Dunno dunno actually literally."
	got := AnalyzeText(text)
	if got.Nervousness != 1 {
		t.Errorf("Nervousness = %v, want capped at 1", got.Nervousness)
	}
}

func TestAnalyzeText_WholeWordMatching(t *testing.T) {
	// "umbrella", "there" and "likely" must not count as fillers.
	got := AnalyzeText("There is likely an umbrella somewhere in the hallway by the door today")
	if got.Nervousness != 0 {
		t.Errorf("Nervousness = %v, want 0", got.Nervousness)
	}
}

func TestAnalyzeText_Patterns(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "hesitations",
			text: "um so um the answer um is a queue because it preserves order for us",
			want: []string{PatternHesitations},
		},
		{
			name: "fillers",
			text: "it was like like really like slow and like we fixed it by caching results",
			want: []string{PatternFillers},
		},
		{
			name: "short",
			text: "Yes it works",
			want: []string{PatternShort},
		},
		{
			name: "hedging and uncertainty",
			text: "i think it is fine and i think maybe we could add an index to the table",
			want: []string{PatternHedging, PatternUncertainty},
		},
		{
			name: "technical",
			text: "the algorithm uses a data structure with low complexity and a simple framework",
			want: []string{PatternTechVocabular},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AnalyzeText(tc.text).Patterns
			if !slices.Equal(got, tc.want) {
				t.Errorf("Patterns = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalyzeText_ScoresInRange(t *testing.T) {
	inputs := []string{
		"definitely certainly absolutely clearly obviously confident certain i know",
		"maybe perhaps possibly might doubt uncertain. not sure. sort of. kind of.",
	}
	for _, in := range inputs {
		got := AnalyzeText(in)
		if got.Confidence < 0 || got.Confidence > 1 || got.Nervousness < 0 || got.Nervousness > 1 {
			t.Errorf("AnalyzeText(%q) out of range: %+v", in, got)
		}
	}
}
