package voicesignal

import (
	"strings"
	"unicode"
)

// Speech pattern labels
const (
	PatternHesitations   = "Frequent hesitations"
	PatternFillers       = "Overuse of filler words"
	PatternShort         = "Short responses"
	PatternHedging       = "Hedging language"
	PatternUncertainty   = "Uncertainty markers"
	PatternTechVocabular = "Good technical vocabulary"
)

var (
	certaintyMarkers = []string{
		"definitely", "certainly", "absolutely", "clearly", "obviously",
		"without a doubt", "i'm sure", "i know", "confident", "certain",
	}
	uncertaintyMarkers = []string{
		"maybe", "perhaps", "possibly", "i think", "i guess", "not sure",
		"uncertain", "doubt", "might", "could be", "sort of", "kind of",
	}
	nervousMarkers = []string{
		"um", "uh", "er", "like", "you know", "i mean", "basically",
		"actually", "literally", "sort of", "kind of", "i guess",
		"i think", "maybe", "perhaps", "not sure", "dunno",
	}
	technicalTerms = []string{
		"algorithm", "data structure", "optimization", "complexity", "framework",
	}
)

// AnalyzeText scores one utterance transcript. An empty transcript is the
// not-speaking snapshot.
func AnalyzeText(text string) Snapshot {
	u := parseUtterance(text)
	if len(u.words) == 0 {
		return Neutral()
	}
	return Snapshot{
		Speaking:    true,
		Confidence:  u.confidence(),
		Nervousness: u.nervousness(),
		Patterns:    u.patterns(),
	}
}

type utterance struct {
	words     []string
	sentences [][]string
}

func parseUtterance(text string) utterance {
	var u utterance
	for _, s := range strings.Split(text, ".") {
		if w := tokenize(s); len(w) > 0 {
			u.sentences = append(u.sentences, w)
			u.words = append(u.words, w...)
		}
	}
	return u
}

// tokenize lowercases and splits on anything that is not a letter, digit or
// apostrophe.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "’", "'")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// count returns how many times phrase occurs as a run of whole words.
func (u utterance) count(phrase string) int {
	p := strings.Fields(phrase)
	if len(p) == 0 {
		return 0
	}
	n := 0
	for i := 0; i+len(p) <= len(u.words); i++ {
		match := true
		for j := range p {
			if u.words[i+j] != p[j] {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func (u utterance) avgSentenceLen() float64 {
	if len(u.sentences) == 0 {
		return 0
	}
	return float64(len(u.words)) / float64(len(u.sentences))
}

func (u utterance) confidence() float64 {
	score := 0.5
	for _, m := range certaintyMarkers {
		if u.count(m) > 0 {
			score += 0.1
		}
	}
	for _, m := range uncertaintyMarkers {
		if u.count(m) > 0 {
			score -= 0.1
		}
	}
	switch avg := u.avgSentenceLen(); {
	case avg > 15:
		score += 0.2
	case avg < 5:
		score -= 0.2
	}
	return clamp01(score)
}

func (u utterance) nervousness() float64 {
	var score float64
	for _, m := range nervousMarkers {
		score += float64(u.count(m)) * 0.05
	}

	freq := make(map[string]int)
	for _, w := range u.words {
		freq[w]++
	}
	for w, n := range freq {
		if n > 3 && len(w) > 2 {
			score += 0.1
		}
	}

	short := 0
	for _, s := range u.sentences {
		if len(s) < 5 {
			short++
		}
	}
	if float64(short) > float64(len(u.sentences))*0.5 {
		score += 0.2
	}
	return min(1, score)
}

func (u utterance) patterns() []string {
	out := []string{}
	if u.count("um") > 2 {
		out = append(out, PatternHesitations)
	}
	if u.count("like") > 3 {
		out = append(out, PatternFillers)
	}
	if len(u.words) < 10 {
		out = append(out, PatternShort)
	}
	if u.count("i think") > 1 {
		out = append(out, PatternHedging)
	}
	if u.count("maybe") > 0 {
		out = append(out, PatternUncertainty)
	}
	tech := 0
	for _, t := range technicalTerms {
		if u.count(t) > 0 {
			tech++
		}
	}
	if tech > 2 {
		out = append(out, PatternTechVocabular)
	}
	return out
}
