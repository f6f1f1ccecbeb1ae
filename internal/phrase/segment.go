// Package phrase groups diarized words into speaker turns.
package phrase

import (
	"strings"

	"github.com/samber/lo"

	"github.com/lexiqai/scripter/internal/stt"
)

// noSpeaker marks that no phrase is open yet. Real speaker labels are >= 0.
const noSpeaker = -1

// Phrase is a maximal run of consecutive words from one speaker
type Phrase struct {
	Speaker int

	// Text is the punctuated words joined by single spaces
	Text string

	// Start of the first word and end of the last word, in seconds
	Start float64
	End   float64

	// FirstWord and LastWord are the inclusive word indices the phrase covers
	FirstWord int
	LastWord  int
}

// Duration of the phrase in seconds
func (p Phrase) Duration() float64 {
	return p.End - p.Start
}

// Segment splits words into phrases in a single pass. A phrase ends where the
// speaker label changes and at the end of the input. Labels are compared
// exactly; nothing is merged across a change.
func Segment(words []stt.Word) []Phrase {
	var (
		phrases []Phrase
		text    strings.Builder
		current = Phrase{Speaker: noSpeaker}
	)

	flush := func() {
		current.Text = text.String()
		phrases = append(phrases, current)
		text.Reset()
	}

	for i, w := range words {
		if w.Speaker != current.Speaker {
			if current.Speaker != noSpeaker {
				flush()
			}
			current = Phrase{Speaker: w.Speaker, Start: w.Start, FirstWord: i}
		}

		if text.Len() > 0 {
			text.WriteByte(' ')
		}
		text.WriteString(w.PunctuatedText)
		current.End = w.End
		current.LastWord = i
	}

	if current.Speaker != noSpeaker {
		flush()
	}
	return phrases
}

// Speakers returns the distinct speaker labels in order of first appearance
func Speakers(phrases []Phrase) []int {
	return lo.Uniq(lo.Map(phrases, func(p Phrase, _ int) int {
		return p.Speaker
	}))
}
