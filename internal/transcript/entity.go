package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// named span produced by entity extraction, offsets are bytes into the transcript
type EntitySpan struct {
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Category string `json:"category"`
}

// entity mapped onto the word range it covers (inclusive)
type Overlay struct {
	Span      EntitySpan
	FirstWord int
	LastWord  int
}

// maps spans to word ranges; spans that are out of bounds or touch no word are skipped
func MapEntities(tokens []Token, spans []EntitySpan) (overlays []Overlay, skipped int) {
	for _, span := range spans {
		if span.Start < 0 || span.End <= span.Start {
			skipped++
			continue
		}

		// first token ending after span start
		first := sort.Search(len(tokens), func(i int) bool {
			return tokens[i].End > span.Start
		})
		if first == len(tokens) || tokens[first].Start >= span.End {
			skipped++
			continue
		}

		last := first
		for last+1 < len(tokens) && tokens[last+1].Start < span.End {
			last++
		}

		overlays = append(overlays, Overlay{Span: span, FirstWord: first, LastWord: last})
	}

	sort.SliceStable(overlays, func(i, j int) bool {
		return overlays[i].FirstWord < overlays[j].FirstWord
	})

	return overlays, skipped
}

// word index -> category for every word covered by an overlay
func CategoryByWord(overlays []Overlay) map[int]string {
	out := make(map[int]string)
	for _, o := range overlays {
		for i := o.FirstWord; i <= o.LastWord; i++ {
			if _, taken := out[i]; !taken {
				out[i] = o.Span.Category
			}
		}
	}
	return out
}

// reads a JSON array of entity spans
func LoadEntities(path string) ([]EntitySpan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entities file: %w", err)
	}

	var spans []EntitySpan
	if err := json.Unmarshal(data, &spans); err != nil {
		return nil, fmt.Errorf("failed to parse entities file: %w", err)
	}

	return spans, nil
}
