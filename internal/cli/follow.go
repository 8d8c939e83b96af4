package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/coordinator"
	"github.com/mgpai22/wordsync/internal/player"
	"github.com/mgpai22/wordsync/internal/timing"
	"github.com/mgpai22/wordsync/internal/transcript"
)

var followCmd = &cobra.Command{
	Use:   "follow [transcript]",
	Short: "Play a recording and highlight the transcript word being spoken",
	Long: `Play a recording and print each transcript word as playback reaches it.

Word timings come from a calibration document (--sync). Without one the
words are spread evenly over the recording, which is only a rough guide.

Commands (type and press Enter):
  p        play / pause
  g N      jump to word N
  s SEC    jump to SEC seconds
  r        reload the player after it gave up recovering
  q        quit

Examples:
  wordsync follow book.txt --media book.mp3 --sync book.sync.json
  wordsync follow book.txt --media book.mp3 --entities book.entities.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFollow,
}

func init() {
	rootCmd.AddCommand(followCmd)

	followCmd.Flags().StringP("media", "m", "", "Audio or video file to play")
	followCmd.Flags().StringP("sync", "s", "", "Calibration document with word timings")
	followCmd.Flags().String("entities", "", "JSON file of entity spans to mark in the output")
	followCmd.Flags().Float64("start", 0, "Start playback at this many seconds")
	followCmd.Flags().Bool("paused", false, "Wait for p before starting playback")
	_ = followCmd.MarkFlagRequired("media")
}

// wordPrinter writes highlighted words, tagging entity words with their category
type wordPrinter struct {
	mu         sync.Mutex
	out        io.Writer
	words      []string
	categories map[int]string
}

func (p *wordPrinter) highlight(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i == timing.NoWord {
		fmt.Fprintln(p.out, "   ...")
		return
	}
	if category, ok := p.categories[i]; ok {
		fmt.Fprintf(p.out, "%5d  %s [%s]\n", i, p.words[i], category)
		return
	}
	fmt.Fprintf(p.out, "%5d  %s\n", i, p.words[i])
}

func runFollow(cmd *cobra.Command, args []string) error {
	mediaPath, _ := cmd.Flags().GetString("media")
	syncPath, _ := cmd.Flags().GetString("sync")
	entitiesPath, _ := cmd.Flags().GetString("entities")
	start, _ := cmd.Flags().GetFloat64("start")
	paused, _ := cmd.Flags().GetBool("paused")

	if err := checkMedia(mediaPath); err != nil {
		return err
	}
	_, tokens, err := readTranscript(args[0])
	if err != nil {
		return err
	}
	words := transcript.Words(tokens)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	table, _, err := loadTable(ctx, words, syncPath, mediaPath)
	if err != nil {
		return err
	}
	index, err := timing.NewIndex(table, cfg.GapPolicy())
	if err != nil {
		return err
	}

	printer := &wordPrinter{out: cmd.OutOrStdout(), words: words}
	if entitiesPath != "" {
		spans, err := transcript.LoadEntities(entitiesPath)
		if err != nil {
			return err
		}
		overlays, skipped := transcript.MapEntities(tokens, spans)
		if skipped > 0 {
			logger.Warnw("Skipped entities outside the transcript", "count", skipped)
		}
		printer.categories = transcript.CategoryByWord(overlays)
	}

	logger.Infow("Following transcript",
		"transcript", args[0],
		"media", mediaPath,
		"words", index.Len(),
		"calibrated", syncPath != "",
	)

	adapter := newPlayer(ctx)
	defer adapter.Close()

	coord := coordinator.New(adapter, index, coordinator.Events{
		OnWordHighlight: printer.highlight,
		OnReady: func() {
			logger.Infow("Player ready", "duration", adapter.Duration())
			if !paused {
				adapter.Play()
			}
		},
		OnError: func(code player.ErrorCode) {
			logger.Warnw("Playback error, recovering", "code", code.String())
		},
		OnUnavailable: func(err error) {
			logger.Errorw("Player unavailable, r to reload", "error", err)
		},
	}, cfg.CoordinatorOptions(), logger.Named("coordinator"))

	coord.Start(ctx)
	defer coord.Stop()
	adapter.Initialize(mediaPath, start)

	return runCommands(ctx, cmd.InOrStdin(), followHandler(coord, adapter))
}

// what the follow commands drive, satisfied by the coordinator
type transport interface {
	TogglePlay()
	ClickWord(i int) error
	ScrubTo(seconds float64)
}

type reloader interface {
	Retry()
}

func followHandler(coord transport, p reloader) func(command) (bool, error) {
	return func(c command) (bool, error) {
		switch c.name {
		case "":
		case "p":
			coord.TogglePlay()
		case "g":
			if !c.hasArg {
				logger.Warnw("g needs a word number")
				break
			}
			if err := coord.ClickWord(int(c.arg)); err != nil {
				logger.Warnw("Cannot jump to word", "error", err)
			}
		case "s":
			if !c.hasArg {
				logger.Warnw("s needs a time in seconds")
				break
			}
			coord.ScrubTo(c.arg)
		case "r":
			p.Retry()
		case "q":
			return true, nil
		default:
			logger.Warnw("Unknown command", "command", c.name)
		}
		return false, nil
	}
}
