package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/wordsync/internal/tools"
)

// one slice of a longer recording
type Chunk struct {
	Path  string
	Index int
	Start time.Duration
	End   time.Duration
}

// plan cuts [0, total) into consecutive windows of at most size
func plan(total, size time.Duration, dir, base, ext string) []Chunk {
	var chunks []Chunk
	for i := 0; time.Duration(i)*size < total; i++ {
		start := time.Duration(i) * size
		end := min(start+size, total)
		chunks = append(chunks, Chunk{
			Path:  filepath.Join(dir, fmt.Sprintf("%s_chunk_%03d%s", base, i, ext)),
			Index: i,
			Start: start,
			End:   end,
		})
	}
	return chunks
}

// Split cuts path into chunks of at most size using up to concurrency ffmpeg
// processes. A recording shorter than size yields a single chunk that is the
// input itself.
func Split(
	ctx context.Context,
	path string,
	size time.Duration,
	outputDir string,
	concurrency int,
) ([]Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", size)
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	total, err := GetDuration(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio duration: %w", err)
	}
	if total <= size {
		return []Chunk{{Path: path, Index: 0, Start: 0, End: total}}, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}
	ffmpegPath, err := tools.FFmpegPath()
	if err != nil {
		return nil, err
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	jobs := plan(total, size, outputDir, base, ext)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan Chunk)
	var (
		mu       sync.Mutex
		done     []Chunk
		firstErr error
		wg       sync.WaitGroup
	)

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				err := ffmpeg.Input(path).
					Output(c.Path, ffmpeg.KwArgs{
						"ss": c.Start.Seconds(),
						"t":  (c.End - c.Start).Seconds(),
						"c":  "copy",
					}).
					OverWriteOutput().
					SetFfmpegPath(ffmpegPath).
					Run()

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("failed to create chunk %d: %w", c.Index, err)
					cancel()
				}
				if err == nil {
					done = append(done, c)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, c := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case work <- c:
		}
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		_ = Cleanup(done)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil && len(done) != len(jobs) {
		_ = Cleanup(done)
		return nil, err
	}

	sort.Slice(done, func(i, j int) bool {
		return done[i].Index < done[j].Index
	})

	return done, nil
}

// Cleanup removes chunk files; the original input is never a chunk file
// because Split only writes into its output directory.
func Cleanup(chunks []Chunk) error {
	var lastErr error
	for _, c := range chunks {
		if !strings.Contains(filepath.Base(c.Path), "_chunk_") {
			continue
		}
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}
