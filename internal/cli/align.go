package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/audio"
	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/timing"
	"github.com/mgpai22/wordsync/internal/transcribe"
	"github.com/mgpai22/wordsync/internal/transcript"
)

var alignCmd = &cobra.Command{
	Use:   "align [media_file] [transcript]",
	Short: "Calibrate a transcript from provider word timings",
	Long: `Calibrate a transcript automatically using word timings from a
speech-to-text provider.

The recording is re-encoded, split into chunks and sent to the provider in
parallel. Recognized words that match the transcript become sync points and
the words in between are interpolated, so recognition mistakes only cost
precision locally.

Examples:
  wordsync align book.mp3 book.txt
  wordsync align lecture.mp4 lecture.txt --provider gemini -o lecture.sync.json
  wordsync align podcast.mp3 podcast.txt --chunk-duration 5m --concurrency 5`,
	Args: cobra.ExactArgs(2),
	RunE: runAlign,
}

func init() {
	rootCmd.AddCommand(alignCmd)

	alignCmd.Flags().StringP("provider", "p", "", "Word timing provider (openai, gemini)")
	alignCmd.Flags().StringP("api-key", "k", "", "Provider API key (or set OPENAI_API_KEY / GEMINI_API_KEY)")
	alignCmd.Flags().String("model", "", "Provider model, the provider default when empty")
	alignCmd.Flags().StringP("language", "l", "", "Spoken language code (e.g., en, es, fr)")
	alignCmd.Flags().DurationP("chunk-duration", "d", 0, "Length of the audio chunks sent to the provider")
	alignCmd.Flags().Int("concurrency", 0, "Number of parallel transcription workers")
}

func runAlign(cmd *cobra.Command, args []string) error {
	mediaPath, transcriptPath := args[0], args[1]
	ctx := context.Background()

	if err := checkMedia(mediaPath); err != nil {
		return err
	}
	text, tokens, err := readTranscript(transcriptPath)
	if err != nil {
		return err
	}
	words := transcript.Words(tokens)

	settings := cfg.Transcribe
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		settings.Provider = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		settings.Model = v
	}
	if v, _ := cmd.Flags().GetString("language"); v != "" {
		settings.Language = v
	}
	if v, _ := cmd.Flags().GetDuration("chunk-duration"); v > 0 {
		settings.ChunkDuration = v
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		settings.Concurrency = v
	}

	provider, err := transcribe.ParseProvider(settings.Provider)
	if err != nil {
		return err
	}
	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv(provider.APIKeyEnv())
	}
	if apiKey == "" {
		return fmt.Errorf(
			"%s API key is required: use --api-key flag or set %s environment variable",
			provider,
			provider.APIKeyEnv(),
		)
	}

	outPath := outputPath(cmd, transcriptPath, documentExt)

	logger.Infow("Starting alignment",
		"media", mediaPath,
		"transcript", transcriptPath,
		"words", len(words),
		"provider", provider,
		"chunk_duration", settings.ChunkDuration.String(),
		"concurrency", settings.Concurrency,
	)

	tempDir, err := os.MkdirTemp("", "wordsync-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	prepOpts := audio.DefaultPrepareOptions()
	audioPath := filepath.Join(tempDir, "audio."+prepOpts.Format)
	logger.Infow("Preparing audio for transcription")
	if err := audio.Prepare(ctx, mediaPath, audioPath, prepOpts); err != nil {
		return fmt.Errorf("failed to prepare audio: %w", err)
	}

	chunks, err := audio.Split(ctx, audioPath, settings.ChunkDuration, filepath.Join(tempDir, "chunks"), settings.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to split audio: %w", err)
	}
	logger.Infow("Created audio chunks", "count", len(chunks))

	transcriber, err := transcribe.Factory(ctx, provider, apiKey, transcribe.Options{
		Language: settings.Language,
		Model:    settings.Model,
	})
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	result, err := transcribe.TranscribeChunks(ctx, transcriber, chunks, settings.Concurrency)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	logger.Infow("Transcription complete",
		"recognized_words", len(result.Words),
		"language", result.Language,
	)

	doc, err := documentFromTimings(text, words, result.Words)
	if err != nil {
		return err
	}
	if err := doc.WriteFile(outPath); err != nil {
		return err
	}

	logger.Infow("Calibration written", "path", outPath)
	return nil
}

// documentFromTimings turns externally timed words into anchors and derives
// a complete calibration document from them.
func documentFromTimings(
	text string,
	words []string,
	timed []timing.TimedWord,
) (*calibrate.Document, error) {
	anchors := calibrate.MatchAnchors(words, timed, cfg.Calibration.MatchWindow)
	if len(anchors) == 0 {
		return nil, fmt.Errorf("none of the %d timed words matched the transcript", len(timed))
	}

	points, table, err := calibrate.Derive(anchors, words, cfg.CalibrationOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to derive word timings: %w", err)
	}

	logger.Infow("Matched transcript words",
		"anchors", len(anchors),
		"words", len(words),
		"coverage", fmt.Sprintf("%.1f%%", 100*float64(len(anchors))/float64(len(words))),
	)

	return calibrate.Export(text, points, table, "")
}
