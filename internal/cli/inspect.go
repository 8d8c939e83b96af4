package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/timing"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [document]",
	Short: "Summarize a calibration document and query its word timings",
	Long: `Summarize a calibration document, optionally looking up the word active
at a time or the time of a word.

Examples:
  wordsync inspect book.sync.json
  wordsync inspect book.sync.json --at 93.5
  wordsync inspect book.sync.json --word 120`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().Float64("at", -1, "Show the word active at this many seconds")
	inspectCmd.Flags().Int("word", -1, "Show the timing of this word")
}

func runInspect(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetFloat64("at")
	word, _ := cmd.Flags().GetInt("word")
	out := cmd.OutOrStdout()

	doc, err := calibrate.ReadFile(args[0])
	if err != nil {
		return err
	}
	points, table, err := doc.Restore(cfg.CalibrationOptions())
	if err != nil {
		return fmt.Errorf("failed to restore calibration: %w", err)
	}
	index, err := timing.NewIndex(table, cfg.GapPolicy())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "words:            %d\n", index.Len())
	fmt.Fprintf(out, "manual points:    %d\n", doc.Metadata.ManualCount)
	fmt.Fprintf(out, "words per second: %.2f\n", doc.Metadata.AverageWordsPerSecond)
	fmt.Fprintf(out, "duration:         %.3fs\n", index.Duration())
	fmt.Fprintf(out, "created:          %s\n", doc.Metadata.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if doc.Metadata.SessionID != "" {
		fmt.Fprintf(out, "session:          %s\n", doc.Metadata.SessionID)
	}

	if cmd.Flags().Changed("at") {
		i := index.ActiveWordAt(at)
		if i == timing.NoWord {
			fmt.Fprintf(out, "\nat %.3fs: no word (gap policy %s)\n", at, index.Policy())
		} else {
			fmt.Fprintf(out, "\nat %.3fs:\n", at)
			printWord(out, index.At(i), points[i].Confidence)
		}
	}

	if cmd.Flags().Changed("word") {
		if word < 0 || word >= index.Len() {
			return fmt.Errorf("word %d out of range [0, %d)", word, index.Len())
		}
		fmt.Fprintln(out)
		printWord(out, index.At(word), points[word].Confidence)
	}

	return nil
}

func printWord(out io.Writer, w timing.WordTimestamp, c calibrate.Confidence) {
	fmt.Fprintf(out, "  word %d %q  %.3fs - %.3fs  (%s)\n", w.Index, w.Word, w.Start, w.End, c)
}
