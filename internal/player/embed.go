package player

import (
	"errors"
	"fmt"
)

var (
	// returned by an EmbedFactory while the hosting player cannot be reached yet
	ErrHostNotReady = errors.New("player host is not ready")
	// surfaced once recovery attempts are exhausted
	ErrPlayerUnavailable = errors.New("player unavailable")
)

// coarse playback notification raised by an embed
type EmbedState int

const (
	EmbedPlaying EmbedState = iota
	EmbedPaused
	EmbedEnded
	EmbedBuffering
)

// error code reported by an embed or raised by the adapter itself
type ErrorCode int

const (
	CodeInvalidMedia  ErrorCode = 2
	CodeDecode        ErrorCode = 5
	CodeNotFound      ErrorCode = 100
	CodeNotEmbeddable ErrorCode = 101
	CodeReadyTimeout  ErrorCode = 1000
	CodeLoadFailed    ErrorCode = 1001
	CodeHostLost      ErrorCode = 1002
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidMedia:
		return "invalid media"
	case CodeDecode:
		return "decode error"
	case CodeNotFound:
		return "media not found"
	case CodeNotEmbeddable:
		return "media not embeddable"
	case CodeReadyTimeout:
		return "ready timeout"
	case CodeLoadFailed:
		return "load failed"
	case CodeHostLost:
		return "host lost"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// Recoverable codes reload the same media at the last known position.
func (c ErrorCode) Recoverable() bool {
	return c == CodeDecode || c == CodeReadyTimeout || c == CodeHostLost
}

// receives the asynchronous signals of one embed instance
type EmbedListener interface {
	EmbedReady()
	EmbedStateChanged(state EmbedState)
	EmbedError(code ErrorCode)
}

// Embed is one live instance of an externally hosted media player.
// Control calls are fire-and-forget; their effects arrive later through the
// EmbedListener it was created with.
type Embed interface {
	Load(mediaID string, startOffset float64) error
	Play() error
	Pause() error
	Seek(seconds float64, allowAhead bool) error
	CurrentTime() (float64, error)
	Duration() (float64, error)
	Destroy() error
}

// optional embed capability
type VolumeSetter interface {
	SetVolume(percent int) error
}

// creates embed instances; returns ErrHostNotReady while the host is still booting
type EmbedFactory interface {
	NewEmbed(listener EmbedListener) (Embed, error)
}
