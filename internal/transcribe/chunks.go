package transcribe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mgpai22/wordsync/internal/audio"
	"github.com/mgpai22/wordsync/internal/timing"
)

type chunkResult struct {
	Index int
	Words []timing.TimedWord
	Error error
}

// TranscribeChunks runs t over chunks with a bounded worker pool, shifts
// every word by its chunk offset and merges the results in chunk order.
// The first failing chunk cancels the rest.
func TranscribeChunks(
	ctx context.Context,
	t Transcriber,
	chunks []audio.Chunk,
	concurrency int,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}
	if concurrency <= 0 {
		concurrency = 3
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan audio.Chunk)
	results := make(chan chunkResult, len(chunks))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range work {
				if ctx.Err() != nil {
					return
				}
				res, err := t.Transcribe(ctx, chunk.Path)
				if err != nil {
					cancel()
					results <- chunkResult{Index: chunk.Index, Error: err}
					continue
				}
				results <- chunkResult{
					Index: chunk.Index,
					Words: offsetWords(res.Words, chunk.Start),
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case work <- chunk:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]chunkResult, 0, len(chunks))
	var firstErr error
	for r := range results {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("chunk %d failed: %w", r.Index, r.Error)
			}
			continue
		}
		collected = append(collected, r)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if len(collected) != len(chunks) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("transcribed %d of %d chunks", len(collected), len(chunks))
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Index < collected[j].Index
	})

	var words []timing.TimedWord
	for _, r := range collected {
		words = append(words, r.Words...)
	}

	return &Result{
		Words:    words,
		Duration: chunks[len(chunks)-1].End,
	}, nil
}

func offsetWords(words []timing.TimedWord, by time.Duration) []timing.TimedWord {
	shift := by.Seconds()
	out := make([]timing.TimedWord, len(words))
	for i, w := range words {
		out[i] = timing.TimedWord{Text: w.Text, Start: w.Start + shift, End: w.End + shift}
	}
	return out
}
