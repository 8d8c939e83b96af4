package subtitle

import (
	"regexp"
	"strings"
	"time"

	"github.com/mgpai22/wordsync/internal/timing"
)

// represents single subtitle entry
type Entry struct {
	Index     int
	StartTime time.Duration
	EndTime   time.Duration
	Text      string
	// per-word timings when the entry was generated from a word table
	Words []timing.WordTimestamp
}

// represents complete subtitle track
type Subtitle struct {
	Entries []Entry
	Format  Format
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatASS Format = "ass"
)

func ParseFormat(s string) (Format, bool) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatSRT, FormatVTT, FormatASS:
		return f, true
	case "ssa":
		return FormatASS, true
	default:
		return "", false
	}
}

// interface for writing subtitles to files
type Writer interface {
	Write(subtitle *Subtitle, path string) error
}

var (
	// <i>, </b>, <c.yellow>, <00:00:01.000> voice and timing tags
	markupTag = regexp.MustCompile(`<[^>]*>`)
	// {\an8}, {\k20} override blocks
	assOverride = regexp.MustCompile(`\{\\[^}]*\}`)
)

// plain cue text with markup removed and line breaks flattened
func stripMarkup(text string) string {
	text = assOverride.ReplaceAllString(text, "")
	text = markupTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, `\N`, " ")
	text = strings.ReplaceAll(text, `\n`, " ")
	return strings.Join(strings.Fields(text), " ")
}

// TimedWords spreads every cue's words evenly across the cue. Cue timing is
// the only timing subtitles carry, so this is as precise as the file allows.
func (s *Subtitle) TimedWords() []timing.TimedWord {
	var words []timing.TimedWord
	for _, e := range s.Entries {
		words = append(words, timing.Spread(
			stripMarkup(e.Text),
			e.StartTime.Seconds(),
			e.EndTime.Seconds(),
		)...)
	}
	return words
}
