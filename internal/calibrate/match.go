package calibrate

import (
	"github.com/mgpai22/wordsync/internal/timing"
	"github.com/mgpai22/wordsync/internal/transcript"
)

// DefaultMatchWindow is how far MatchAnchors looks ahead on either side
// when the two word streams disagree.
const DefaultMatchWindow = 8

// MatchAnchors pairs transcript words with externally timed words (ASR output,
// subtitle cues) and returns a manual sync point for every confident match.
// Words are compared after normalization; on a mismatch the closest match
// within window words ahead on either stream resynchronizes the walk. Matches
// whose timestamp does not advance past the previous anchor are dropped.
func MatchAnchors(words []string, timed []timing.TimedWord, window int) []SyncPoint {
	if window <= 0 {
		window = DefaultMatchWindow
	}

	normWords := make([]string, len(words))
	for i, w := range words {
		normWords[i] = transcript.Normalize(w)
	}
	normTimed := make([]string, len(timed))
	for i, w := range timed {
		normTimed[i] = transcript.Normalize(w.Text)
	}

	var out []SyncPoint
	accept := func(i, j int) {
		ts := timed[j].Start
		if ts < 0 {
			return
		}
		if len(out) > 0 && ts <= out[len(out)-1].Timestamp {
			return
		}
		out = append(out, SyncPoint{
			WordIndex:  i,
			Word:       words[i],
			Timestamp:  ts,
			Confidence: ConfidenceManual,
		})
	}

	i, j := 0, 0
	for i < len(words) && j < len(timed) {
		if normWords[i] == "" {
			i++
			continue
		}
		if normTimed[j] == "" {
			j++
			continue
		}
		if normWords[i] == normTimed[j] {
			accept(i, j)
			i++
			j++
			continue
		}

		di, dj, found := resync(normWords, normTimed, i, j, window)
		if !found {
			i++
			j++
			continue
		}
		i += di
		j += dj
	}

	return out
}

// finds the nearest (smallest combined skip) position where both streams agree again
func resync(a, b []string, i, j, window int) (int, int, bool) {
	for total := 1; total <= 2*window; total++ {
		for di := 0; di <= total; di++ {
			dj := total - di
			if di > window || dj > window {
				continue
			}
			if i+di >= len(a) || j+dj >= len(b) {
				continue
			}
			if a[i+di] != "" && a[i+di] == b[j+dj] {
				return di, dj, true
			}
		}
	}
	return 0, 0, false
}
