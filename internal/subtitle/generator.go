package subtitle

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mgpai22/wordsync/internal/timing"
)

// Generator groups consecutive words of a timing table into caption cues.
type Generator struct {
	MaxCharsPerLine int
	MaxLinesPerCue  int
	MaxDuration     time.Duration
	// silence longer than this always starts a new cue
	MaxGap time.Duration
}

func NewGenerator() *Generator {
	return &Generator{
		MaxCharsPerLine: 42, // Standard subtitle line length
		MaxLinesPerCue:  2,  // Most players support 2 lines
		MaxDuration:     7 * time.Second,
		MaxGap:          1500 * time.Millisecond,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

// Generate builds cues that never split a word and end early at sentence
// punctuation once the cue is half full.
func (g *Generator) Generate(words []timing.WordTimestamp) *Subtitle {
	sub := &Subtitle{Entries: []Entry{}, Format: FormatSRT}
	maxChars := g.MaxCharsPerLine * g.MaxLinesPerCue

	var cue []timing.WordTimestamp
	chars := 0

	flush := func() {
		if len(cue) == 0 {
			return
		}
		texts := make([]string, len(cue))
		for i, w := range cue {
			texts[i] = w.Word
		}
		sub.Entries = append(sub.Entries, Entry{
			Index:     len(sub.Entries) + 1,
			StartTime: seconds(cue[0].Start),
			EndTime:   seconds(cue[len(cue)-1].End),
			Text:      g.formatText(strings.Join(texts, " ")),
			Words:     append([]timing.WordTimestamp(nil), cue...),
		})
		cue = cue[:0]
		chars = 0
	}

	for _, w := range words {
		n := utf8.RuneCountInString(w.Word)
		if len(cue) > 0 {
			last := cue[len(cue)-1]
			switch {
			case chars+1+n > maxChars:
				flush()
			case seconds(w.End-cue[0].Start) > g.MaxDuration:
				flush()
			case seconds(w.Start-last.End) > g.MaxGap:
				flush()
			case endsSentence(last.Word) && chars >= maxChars/2:
				flush()
			}
		}
		if len(cue) > 0 {
			chars++
		}
		cue = append(cue, w)
		chars += n
	}
	flush()

	return sub
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]`)
	return strings.HasSuffix(word, ".") ||
		strings.HasSuffix(word, "?") ||
		strings.HasSuffix(word, "!")
}

// formatText wraps text onto two lines at the space closest to the middle
func (g *Generator) formatText(text string) string {
	runeCount := utf8.RuneCountInString(text)
	if runeCount <= g.MaxCharsPerLine {
		return text
	}

	words := strings.Fields(text)
	if len(words) < 2 {
		return text
	}

	middle := runeCount / 2
	bestSplit, bestDiff := 0, runeCount
	length := 0
	for i, word := range words[:len(words)-1] {
		length += utf8.RuneCountInString(word)
		if i > 0 {
			length++
		}
		diff := length - middle
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			bestSplit = i + 1
		}
	}

	return strings.Join(words[:bestSplit], " ") + "\n" + strings.Join(words[bestSplit:], " ")
}
