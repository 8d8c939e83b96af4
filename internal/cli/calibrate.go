package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/player"
	"github.com/mgpai22/wordsync/internal/transcript"
)

// how far before a marked word playback rewinds when stepping back to it
const rewindLead = 2.0

var calibrateCmd = &cobra.Command{
	Use:   "calibrate [transcript]",
	Short: "Mark word timings by ear while the recording plays",
	Long: `Play a recording and mark the moment each word is spoken.

The word you are listening for is shown after every command. Press Enter
the moment you hear it. Words you skip are filled in by interpolation
between the words you marked, so marking every sentence or two is enough.

Commands (type and press Enter):
  (empty)  mark the word in focus at the current playback time
  n        skip to the next unmarked word
  b        step back one word, rewinding playback when it was marked
  u        remove the mark on the word in focus
  p        play / pause
  w        write the calibration document
  r        reload the player after it gave up recovering
  q        write and quit

Examples:
  wordsync calibrate book.txt --media book.mp3
  wordsync calibrate book.txt --media book.mp3 --resume book.sync.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().StringP("media", "m", "", "Audio or video file to play")
	calibrateCmd.Flags().StringP("resume", "r", "", "Continue from an existing calibration document")
	_ = calibrateCmd.MarkFlagRequired("media")
}

func printFocus(out io.Writer, s *calibrate.Session) {
	words := s.Words()
	focus := s.Focus()
	if focus >= len(words) {
		fmt.Fprintln(out, "all words reached; w to write, q to quit")
		return
	}
	mark := " "
	if s.IsMarked(focus) {
		mark = "*"
	}
	fmt.Fprintf(out, "%s[%d/%d] %s\n", mark, focus, len(words), words[focus])
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	mediaPath, _ := cmd.Flags().GetString("media")
	resumePath, _ := cmd.Flags().GetString("resume")
	out := cmd.OutOrStdout()

	if err := checkMedia(mediaPath); err != nil {
		return err
	}
	text, tokens, err := readTranscript(args[0])
	if err != nil {
		return err
	}
	words := transcript.Words(tokens)

	docPath := outputPath(cmd, args[0], documentExt)
	if resumePath != "" {
		docPath = resumePath
		if o, _ := cmd.Flags().GetString("output"); o != "" {
			docPath = o
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	adapter := newPlayer(ctx)
	defer adapter.Close()

	session := calibrate.NewSession(words, adapter, cfg.CalibrationOptions())

	start := 0.0
	if resumePath != "" {
		doc, err := calibrate.ReadFile(resumePath)
		if err != nil {
			return err
		}
		if doc.TotalWords != len(words) {
			return fmt.Errorf(
				"calibration document covers %d words but the transcript has %d",
				doc.TotalWords,
				len(words),
			)
		}
		if err := session.Load(doc.Anchors()); err != nil {
			return err
		}
		session.SetID(doc.Metadata.SessionID)
		start = resumeOffset(session.Points(), session.Focus())
		logger.Infow("Resuming calibration",
			"document", resumePath,
			"manual_points", session.ManualCount(),
			"focus", session.Focus(),
		)
	}

	unobserve := adapter.Observe(player.Observer{
		OnReady: func() {
			logger.Infow("Player ready", "duration", adapter.Duration())
			adapter.Play()
		},
		OnError: func(code player.ErrorCode) {
			logger.Warnw("Playback error, recovering", "code", code.String())
		},
		OnUnavailable: func(err error) {
			logger.Errorw("Player unavailable, r to reload", "error", err)
		},
	})
	defer unobserve()
	adapter.Initialize(mediaPath, start)

	save := func() error {
		doc, err := session.Export(text)
		if errors.Is(err, calibrate.ErrNoAnchors) {
			logger.Warnw("Nothing to write yet, mark at least one word")
			return nil
		}
		if err != nil {
			return err
		}
		if err := doc.WriteFile(docPath); err != nil {
			return err
		}
		logger.Infow("Calibration written",
			"path", docPath,
			"manual_points", doc.Metadata.ManualCount,
			"words_per_second", doc.Metadata.AverageWordsPerSecond,
		)
		return nil
	}

	printFocus(out, session)
	if err := runCommands(ctx, cmd.InOrStdin(), calibrateHandler(session, adapter, out, save)); err != nil {
		return err
	}

	return save()
}

// the playback controls calibration commands drive, satisfied by the adapter
type playerControls interface {
	reloader
	IsReady() bool
	State() player.State
	Play()
	Pause()
	Seek(seconds float64, allowAhead bool)
}

func calibrateHandler(
	session *calibrate.Session,
	p playerControls,
	out io.Writer,
	save func() error,
) func(command) (bool, error) {
	return func(c command) (bool, error) {
		switch c.name {
		case "":
			if !p.IsReady() {
				logger.Warnw("Player not ready, mark ignored")
				break
			}
			mark, err := session.MarkCurrentWord()
			if err != nil {
				logger.Warnw("Cannot mark", "error", err)
				break
			}
			logger.Debugw("Marked", "word", mark.WordIndex, "time", mark.Timestamp)
		case "n":
			if session.SkipToNextUnmarked() < 0 {
				logger.Infow("Every remaining word is marked")
			}
		case "b":
			if err := session.SetFocus(session.Focus() - 1); err != nil {
				break
			}
			if mark, ok := pointFor(session.Points(), session.Focus()); ok {
				p.Seek(max(0, mark.Timestamp-rewindLead), true)
			}
		case "u":
			if !session.Unmark(session.Focus()) {
				logger.Infow("Word in focus is not marked")
			}
		case "p":
			if p.State() == player.StatePlaying {
				p.Pause()
			} else {
				p.Play()
			}
		case "w":
			if err := save(); err != nil {
				logger.Warnw("Failed to write calibration", "error", err)
			}
		case "r":
			p.Retry()
		case "q":
			return true, nil
		default:
			logger.Warnw("Unknown command", "command", c.name)
			return false, nil
		}
		printFocus(out, session)
		return false, nil
	}
}

func pointFor(points []calibrate.SyncPoint, word int) (calibrate.SyncPoint, bool) {
	for _, p := range points {
		if p.WordIndex == word {
			return p, true
		}
	}
	return calibrate.SyncPoint{}, false
}

// playback resumes a little before the last mark preceding focus
func resumeOffset(points []calibrate.SyncPoint, focus int) float64 {
	start := 0.0
	for _, p := range points {
		if p.WordIndex < focus {
			start = p.Timestamp
		}
	}
	return max(0, start-rewindLead)
}
