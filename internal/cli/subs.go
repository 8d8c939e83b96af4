package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/subtitle"
	"github.com/mgpai22/wordsync/internal/transcript"
)

var importSubsCmd = &cobra.Command{
	Use:   "import-subs [subtitle_file] [transcript]",
	Short: "Calibrate a transcript from an existing subtitle file",
	Long: `Calibrate a transcript using the cue timings of an SRT, VTT or ASS file.

Cue words are spread across their cue, matched against the transcript and
used as sync points.

Examples:
  wordsync import-subs book.srt book.txt
  wordsync import-subs episode.vtt episode.txt -o episode.sync.json`,
	Args: cobra.ExactArgs(2),
	RunE: runImportSubs,
}

var exportCmd = &cobra.Command{
	Use:   "export [document]",
	Short: "Write captions from a calibration document",
	Long: `Write a calibration document's word timings as SRT, VTT or ASS captions.

ASS output carries karaoke tags so players sweep each word as it is spoken.

Examples:
  wordsync export book.sync.json
  wordsync export book.sync.json --format ass -o book.ass`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(importSubsCmd)
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "srt", "Output subtitle format (srt, vtt, ass)")
	exportCmd.Flags().Int("max-chars", 42, "Maximum characters per caption line")
	exportCmd.Flags().Duration("max-duration", 0, "Maximum caption duration, the default when zero")
}

func runImportSubs(cmd *cobra.Command, args []string) error {
	subsPath, transcriptPath := args[0], args[1]

	text, tokens, err := readTranscript(transcriptPath)
	if err != nil {
		return err
	}
	words := transcript.Words(tokens)

	sub, err := subtitle.Open(subsPath)
	if err != nil {
		return err
	}
	timed := sub.TimedWords()
	logger.Infow("Subtitles loaded",
		"path", subsPath,
		"format", sub.Format,
		"cues", len(sub.Entries),
		"words", len(timed),
	)

	doc, err := documentFromTimings(text, words, timed)
	if err != nil {
		return err
	}

	outPath := outputPath(cmd, transcriptPath, documentExt)
	if err := doc.WriteFile(outPath); err != nil {
		return err
	}

	logger.Infow("Calibration written", "path", outPath)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	formatStr, _ := cmd.Flags().GetString("format")
	maxChars, _ := cmd.Flags().GetInt("max-chars")
	maxDuration, _ := cmd.Flags().GetDuration("max-duration")

	format, ok := subtitle.ParseFormat(formatStr)
	if !ok {
		return fmt.Errorf("unsupported format %q: use srt, vtt, or ass", formatStr)
	}

	doc, err := calibrate.ReadFile(args[0])
	if err != nil {
		return err
	}
	_, table, err := doc.Restore(cfg.CalibrationOptions())
	if err != nil {
		return fmt.Errorf("failed to restore calibration: %w", err)
	}

	generator := subtitle.NewGenerator()
	if maxChars > 0 {
		generator.MaxCharsPerLine = maxChars
	}
	if maxDuration > 0 {
		generator.MaxDuration = maxDuration
	}
	subs := generator.Generate(table)
	subs.Format = format

	writer, err := subtitle.NewWriter(format)
	if err != nil {
		return err
	}

	outPath := outputPath(cmd, args[0], subtitle.ExtensionForFormat(format))
	if err := writer.Write(subs, outPath); err != nil {
		return fmt.Errorf("failed to write subtitles: %w", err)
	}

	logger.Infow("Captions written",
		"path", outPath,
		"format", format,
		"cues", len(subs.Entries),
	)
	return nil
}
