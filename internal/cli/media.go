package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mgpai22/wordsync/internal/audio"
	"github.com/mgpai22/wordsync/internal/calibrate"
	"github.com/mgpai22/wordsync/internal/config"
	"github.com/mgpai22/wordsync/internal/player"
	"github.com/mgpai22/wordsync/internal/timing"
	"github.com/mgpai22/wordsync/internal/transcript"
)

// transcript text plus its tokens; a transcript must contain at least one word
func readTranscript(path string) (string, []transcript.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	text := string(data)
	tokens := transcript.Tokenize(text)
	if len(tokens) == 0 {
		return "", nil, fmt.Errorf("transcript %s contains no words", path)
	}
	return text, tokens, nil
}

func checkMedia(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", path)
	}
	if !audio.IsMediaFile(path) {
		return fmt.Errorf("unsupported file type: %s (expected audio or video file)", filepath.Ext(path))
	}
	return nil
}

// newPlayer wires the configured backend into the process-wide adapter.
func newPlayer(ctx context.Context) *player.Adapter {
	var factory player.EmbedFactory
	switch cfg.Player.Backend {
	case config.BackendMPV:
		factory = &player.MPVFactory{
			Path:      cfg.Player.MPVPath,
			ExtraArgs: cfg.Player.MPVArgs,
			Logger:    logger.Named("mpv"),
		}
	default:
		factory = &player.VirtualFactory{
			Duration: func(mediaID string) (float64, error) {
				return audio.DurationSeconds(ctx, mediaID)
			},
		}
	}

	a := player.SetupShared(factory, cfg.PlayerOptions(), logger.Named("player"))
	a.SetVolume(cfg.Player.Volume)
	return a
}

// loadTable restores a calibration document for words, or spreads the words
// evenly over the media when there is no document yet.
func loadTable(
	ctx context.Context,
	words []string,
	syncPath, mediaPath string,
) ([]timing.WordTimestamp, *calibrate.Document, error) {
	if syncPath != "" {
		doc, err := calibrate.ReadFile(syncPath)
		if err != nil {
			return nil, nil, err
		}
		if doc.TotalWords != len(words) {
			return nil, nil, fmt.Errorf(
				"calibration document covers %d words but the transcript has %d",
				doc.TotalWords,
				len(words),
			)
		}
		_, table, err := calibrate.Derive(doc.Anchors(), words, cfg.CalibrationOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to restore calibration: %w", err)
		}
		return table, doc, nil
	}

	duration, err := audio.DurationSeconds(ctx, mediaPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get media duration: %w", err)
	}
	table, err := timing.EvenSplit(words, duration)
	if err != nil {
		return nil, nil, err
	}
	return table, nil, nil
}

// output path from the --output flag, or input with its extension replaced
func outputPath(cmd *cobra.Command, input, ext string) string {
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		return out
	}
	if base, ok := strings.CutSuffix(input, documentExt); ok {
		return base + ext
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ext
}

const documentExt = ".sync.json"

// one line typed on stdin; an empty line has an empty name
type command struct {
	name   string
	arg    float64
	hasArg bool
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return command{}, nil
	case 1:
		return command{name: strings.ToLower(fields[0])}, nil
	case 2:
		arg, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return command{}, fmt.Errorf("invalid argument %q", fields[1])
		}
		return command{name: strings.ToLower(fields[0]), arg: arg, hasArg: true}, nil
	default:
		return command{}, fmt.Errorf("too many arguments in %q", line)
	}
}

// lines read from r until EOF; the channel closes at EOF
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// runCommands feeds parsed stdin commands to handle until it reports done,
// stdin closes or ctx is cancelled.
func runCommands(
	ctx context.Context,
	in io.Reader,
	handle func(command) (done bool, err error),
) error {
	lines := readLines(in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c, err := parseCommand(line)
			if err != nil {
				logger.Warnw("Ignoring command", "error", err)
				continue
			}
			done, err := handle(c)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
