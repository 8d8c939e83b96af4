package calibrate

import (
	"fmt"

	"github.com/mgpai22/wordsync/internal/timing"
)

type Options struct {
	// rate used for extrapolation when it cannot be estimated from anchors
	DefaultWordsPerSecond float64
}

func DefaultOptions() Options {
	return Options{DefaultWordsPerSecond: DefaultWordsPerSecond}
}

func (o Options) defaultRate() float64 {
	if o.DefaultWordsPerSecond > 0 {
		return o.DefaultWordsPerSecond
	}
	return DefaultWordsPerSecond
}

// anchors returns the manual points among points, sorted and validated.
func anchors(points []SyncPoint, totalWords int) ([]SyncPoint, error) {
	var manual []SyncPoint
	for _, p := range points {
		if p.Confidence == ConfidenceManual {
			manual = append(manual, p)
		}
	}
	manual = sortPoints(manual)

	if len(manual) == 0 {
		return nil, ErrNoAnchors
	}
	if err := validateAnchors(manual, totalWords); err != nil {
		return nil, err
	}

	return manual, nil
}

// Interpolate returns one sync point per transcript word. Manual points are
// copied through untouched; every other word is synthesized linearly between
// its neighbouring anchors, or extrapolated outward from the first and last
// anchor using the local speech rate. Non-manual input points are ignored.
func Interpolate(points []SyncPoint, words []string, opts Options) ([]SyncPoint, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("transcript has no words")
	}

	manual, err := anchors(points, len(words))
	if err != nil {
		return nil, err
	}

	out := make([]SyncPoint, len(words))
	synth := func(j int, ts float64) {
		out[j] = SyncPoint{
			WordIndex:  j,
			Word:       words[j],
			Timestamp:  ts,
			Confidence: ConfidenceInterpolated,
		}
	}

	for _, p := range manual {
		out[p.WordIndex] = p
	}

	// interior gaps
	for k := 1; k < len(manual); k++ {
		a, b := manual[k-1], manual[k]
		if b.WordIndex-a.WordIndex <= 1 {
			continue
		}
		timePerWord := (b.Timestamp - a.Timestamp) / float64(b.WordIndex-a.WordIndex)
		for j := a.WordIndex + 1; j < b.WordIndex; j++ {
			synth(j, a.Timestamp+float64(j-a.WordIndex)*timePerWord)
		}
	}

	// leading extrapolation
	first := manual[0]
	if first.WordIndex > 0 {
		rate := opts.defaultRate()
		if len(manual) >= 2 {
			if r, ok := localRate(manual[0], manual[1]); ok {
				rate = r
			}
		}

		back := func(j int) float64 {
			return first.Timestamp - float64(first.WordIndex-j)/rate
		}

		// words that extrapolate above zero keep their rate-based time
		k := first.WordIndex
		for k > 0 && back(k-1) > 0 {
			k--
			synth(k, back(k))
		}

		// the rest would clamp to zero and collide, so they share [0, t_k)
		end := first.Timestamp
		if k < first.WordIndex {
			end = out[k].Timestamp
		}
		for j := 0; j < k; j++ {
			synth(j, end*float64(j)/float64(k))
		}
	}

	// trailing extrapolation
	last := manual[len(manual)-1]
	if last.WordIndex < len(words)-1 {
		rate := trailingRate(manual, opts)
		for j := last.WordIndex + 1; j < len(words); j++ {
			synth(j, last.Timestamp+float64(j-last.WordIndex)/rate)
		}
	}

	return out, nil
}

func trailingRate(manual []SyncPoint, opts Options) float64 {
	if len(manual) >= 2 {
		if r, ok := localRate(manual[len(manual)-2], manual[len(manual)-1]); ok {
			return r
		}
	}
	return opts.defaultRate()
}

// BuildTable turns a complete per-word point list into a word timestamp table.
// Each word ends where the next begins; the last word lasts one word at the
// trailing speech rate. The result is validated, never repaired.
func BuildTable(points []SyncPoint, words []string, opts Options) ([]timing.WordTimestamp, error) {
	if len(points) != len(words) {
		return nil, fmt.Errorf(
			"have %d sync points for %d words",
			len(points),
			len(words),
		)
	}

	lastDuration := 1 / opts.defaultRate()
	if manual, err := anchors(points, len(words)); err == nil {
		lastDuration = 1 / trailingRate(manual, opts)
	}

	table := make([]timing.WordTimestamp, len(points))
	for i, p := range points {
		if p.WordIndex != i {
			return nil, &timing.InvariantError{
				Index:  i,
				Reason: fmt.Sprintf("sync point carries word index %d", p.WordIndex),
			}
		}

		end := p.Timestamp + lastDuration
		if i+1 < len(points) {
			end = points[i+1].Timestamp
		}

		table[i] = timing.WordTimestamp{
			Word:  words[i],
			Start: p.Timestamp,
			End:   end,
			Index: i,
		}
	}

	if err := timing.Validate(table); err != nil {
		return nil, fmt.Errorf("derived word table is invalid: %w", err)
	}

	return table, nil
}

// Derive runs interpolation and builds the validated table in one step.
func Derive(points []SyncPoint, words []string, opts Options) ([]SyncPoint, []timing.WordTimestamp, error) {
	full, err := Interpolate(points, words, opts)
	if err != nil {
		return nil, nil, err
	}

	table, err := BuildTable(full, words, opts)
	if err != nil {
		return nil, nil, err
	}

	return full, table, nil
}
