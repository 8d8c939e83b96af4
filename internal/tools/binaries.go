// Package tools locates the external programs wordsync shells out to.
package tools

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

// an external program and the environment variable that overrides its path
type Binary struct {
	Name   string
	EnvVar string
}

var (
	FFmpeg  = Binary{Name: "ffmpeg", EnvVar: "WORDSYNC_FFMPEG_PATH"}
	FFprobe = Binary{Name: "ffprobe", EnvVar: "WORDSYNC_FFPROBE_PATH"}
	MPV     = Binary{Name: "mpv", EnvVar: "WORDSYNC_MPV_PATH"}
)

type resolved struct {
	once sync.Once
	path string
	err  error
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*resolved{}
)

// Locate resolves b once per process: the override variable wins, then PATH.
func Locate(b Binary) (string, error) {
	cacheMu.Lock()
	r, ok := cache[b.Name]
	if !ok {
		r = &resolved{}
		cache[b.Name] = r
	}
	cacheMu.Unlock()

	r.once.Do(func() {
		r.path, r.err = lookup(b, os.Getenv, exec.LookPath)
	})
	return r.path, r.err
}

func lookup(
	b Binary,
	getenv func(string) string,
	lookPath func(string) (string, error),
) (string, error) {
	if p := strings.TrimSpace(getenv(b.EnvVar)); p != "" {
		if !fileExists(p) {
			return "", fmt.Errorf("%s=%s: file not found", b.EnvVar, p)
		}
		return p, nil
	}

	found, err := lookPath(b.Name + executableSuffix())
	if err != nil {
		return "", fmt.Errorf(
			"%s not found in PATH (install it or set %s): %w",
			b.Name,
			b.EnvVar,
			err,
		)
	}
	return found, nil
}

func FFmpegPath() (string, error) {
	return Locate(FFmpeg)
}

func FFprobePath() (string, error) {
	return Locate(FFprobe)
}

func MPVPath() (string, error) {
	return Locate(MPV)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
