package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/mgpai22/wordsync/internal/tools"
)

// settings for the audio sent to word-timing providers
type PrepareOptions struct {
	Format     string // mp3 or aac
	SampleRate int    // Hz
	Channels   int    // 1 = mono
	Bitrate    string // e.g. "64k"
}

// small mono speech audio, well under provider upload limits
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		Format:     "mp3",
		SampleRate: 16000,
		Channels:   1,
		Bitrate:    "64k",
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetDuration asks ffprobe for the length of an audio or video file.
func GetDuration(ctx context.Context, path string) (time.Duration, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("media file not found: %s", path)
	}

	ffprobePath, err := tools.FFprobePath()
	if err != nil {
		return 0, err
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed on %s: %w", path, err)
	}

	return parseProbeDuration(out.Bytes())
}

func parseProbeDuration(data []byte) (time.Duration, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("media reports non-positive duration %.3f", seconds)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// DurationSeconds is GetDuration in float seconds, the unit the player uses.
func DurationSeconds(ctx context.Context, path string) (float64, error) {
	d, err := GetDuration(ctx, path)
	if err != nil {
		return 0, err
	}
	return d.Seconds(), nil
}

func encoderArgs(opts PrepareOptions) ffmpeg.KwArgs {
	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"ar": opts.SampleRate,
		"ac": opts.Channels,
	}

	codec := "libmp3lame"
	if opts.Format == "aac" {
		codec = "aac"
	}
	kwargs["acodec"] = codec
	if opts.Bitrate != "" {
		kwargs["b:a"] = opts.Bitrate
	}

	return kwargs
}

// Prepare re-encodes the audio track of an audio or video file into a
// compact speech file suitable for upload.
func Prepare(ctx context.Context, inputPath, outputPath string, opts PrepareOptions) error {
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ffmpegPath, err := tools.FFmpegPath()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- ffmpeg.Input(inputPath).
			Output(outputPath, encoderArgs(opts)).
			OverWriteOutput().
			SetFfmpegPath(ffmpegPath).
			Run()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to prepare audio from %s: %w", inputPath, err)
		}
	}

	return nil
}

// checks if the file is a video based on extension
func IsVideoFile(path string) bool {
	return mediaKinds[strings.ToLower(filepath.Ext(path))] == kindVideo
}

// checks if the file is an audio file based on extension
func IsAudioFile(path string) bool {
	return mediaKinds[strings.ToLower(filepath.Ext(path))] == kindAudio
}

func IsMediaFile(path string) bool {
	_, ok := mediaKinds[strings.ToLower(filepath.Ext(path))]
	return ok
}

type mediaKind int

const (
	kindAudio mediaKind = iota + 1
	kindVideo
)

var mediaKinds = map[string]mediaKind{
	".mp3":  kindAudio,
	".wav":  kindAudio,
	".aac":  kindAudio,
	".flac": kindAudio,
	".ogg":  kindAudio,
	".opus": kindAudio,
	".m4a":  kindAudio,
	".wma":  kindAudio,
	".aiff": kindAudio,
	".mp4":  kindVideo,
	".mkv":  kindVideo,
	".avi":  kindVideo,
	".mov":  kindVideo,
	".webm": kindVideo,
	".m4v":  kindVideo,
	".mpeg": kindVideo,
	".mpg":  kindVideo,
}
