package timing

import (
	"fmt"
	"sort"
)

// NoWord is returned by ActiveWordAt when no word is active.
const NoWord = -1

// GapPolicy decides what ActiveWordAt reports for a time that falls
// between two words (or after the last one).
type GapPolicy int

const (
	// keep the most recent word highlighted through silence
	GapPreceding GapPolicy = iota
	// report NoWord during silence
	GapNone
)

func ParseGapPolicy(s string) (GapPolicy, error) {
	switch s {
	case "", "preceding":
		return GapPreceding, nil
	case "none":
		return GapNone, nil
	default:
		return GapPreceding, fmt.Errorf("unknown gap policy %q: use preceding or none", s)
	}
}

func (p GapPolicy) String() string {
	if p == GapNone {
		return "none"
	}
	return "preceding"
}

// Index is a read-only lookup table over a validated word list. It is never
// mutated after NewIndex returns, so concurrent readers need no locking.
type Index struct {
	words  []WordTimestamp
	policy GapPolicy
}

func NewIndex(words []WordTimestamp, policy GapPolicy) (*Index, error) {
	if err := Validate(words); err != nil {
		return nil, fmt.Errorf("invalid word table: %w", err)
	}

	owned := make([]WordTimestamp, len(words))
	copy(owned, words)

	return &Index{words: owned, policy: policy}, nil
}

// returns the index of the word active at t, or NoWord
func (x *Index) ActiveWordAt(t float64) int {
	// first word starting after t
	k := sort.Search(len(x.words), func(i int) bool {
		return x.words[i].Start > t
	})
	if k == 0 {
		return NoWord
	}

	candidate := k - 1
	if t < x.words[candidate].End {
		return candidate
	}
	if x.policy == GapNone {
		return NoWord
	}
	return candidate
}

// start time of word i; i must be in range
func (x *Index) TimeForWord(i int) float64 {
	if i < 0 || i >= len(x.words) {
		panic(fmt.Sprintf("timing: word index %d out of range [0, %d)", i, len(x.words)))
	}
	return x.words[i].Start
}

func (x *Index) Len() int {
	return len(x.words)
}

func (x *Index) Policy() GapPolicy {
	return x.policy
}

// entry i; i must be in range
func (x *Index) At(i int) WordTimestamp {
	return x.words[i]
}

// copy of the underlying table
func (x *Index) Words() []WordTimestamp {
	out := make([]WordTimestamp, len(x.words))
	copy(out, x.words)
	return out
}

// end of the last word, zero for an empty index
func (x *Index) Duration() float64 {
	if len(x.words) == 0 {
		return 0
	}
	return x.words[len(x.words)-1].End
}
