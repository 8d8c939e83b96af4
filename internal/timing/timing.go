package timing

import (
	"fmt"
	"strings"
)

// single transcript word and the half-open interval [Start, End) it occupies, in seconds
type WordTimestamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`
}

// word with timing reported by an external source (ASR provider, subtitle cue)
type TimedWord struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// describes the first entry that breaks the table invariants
type InvariantError struct {
	Index  int
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("word %d: %s", e.Index, e.Reason)
}

// checks index == position, start < end and end[i] <= start[i+1]
func Validate(words []WordTimestamp) error {
	for i, w := range words {
		if w.Index != i {
			return &InvariantError{
				Index:  i,
				Reason: fmt.Sprintf("index field is %d", w.Index),
			}
		}
		if w.Start < 0 {
			return &InvariantError{
				Index:  i,
				Reason: fmt.Sprintf("negative start %.3f", w.Start),
			}
		}
		if w.Start >= w.End {
			return &InvariantError{
				Index: i,
				Reason: fmt.Sprintf(
					"start %.3f is not before end %.3f",
					w.Start,
					w.End,
				),
			}
		}
		if i > 0 && words[i-1].End > w.Start {
			return &InvariantError{
				Index: i,
				Reason: fmt.Sprintf(
					"overlaps previous word (previous end %.3f, start %.3f)",
					words[i-1].End,
					w.Start,
				),
			}
		}
	}
	return nil
}

// divides total evenly across all words
func EvenSplit(words []string, total float64) ([]WordTimestamp, error) {
	if len(words) == 0 {
		return []WordTimestamp{}, nil
	}
	if total <= 0 {
		return nil, fmt.Errorf("total duration must be positive, got %.3f", total)
	}

	perWord := total / float64(len(words))
	out := make([]WordTimestamp, len(words))
	for i, w := range words {
		end := float64(i+1) * perWord
		if i == len(words)-1 {
			end = total
		}
		out[i] = WordTimestamp{
			Word:  w,
			Start: float64(i) * perWord,
			End:   end,
			Index: i,
		}
	}

	return out, nil
}

// Spread splits text on whitespace and shares [start, end) evenly between
// the words. Used for sources that only time whole phrases.
func Spread(text string, start, end float64) []TimedWord {
	words := strings.Fields(text)
	if len(words) == 0 || end <= start {
		return nil
	}

	step := (end - start) / float64(len(words))
	out := make([]TimedWord, len(words))
	for i, w := range words {
		out[i] = TimedWord{
			Text:  w,
			Start: start + float64(i)*step,
			End:   start + float64(i+1)*step,
		}
	}
	out[len(out)-1].End = end

	return out
}
