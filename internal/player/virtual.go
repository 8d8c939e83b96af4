package player

import (
	"fmt"
	"sync"
	"time"
)

// VirtualFactory builds embeds that play nothing and keep time with the wall
// clock. They stand in for a real host when only the transcript is followed.
type VirtualFactory struct {
	// Duration resolves the length of a media id
	Duration func(mediaID string) (float64, error)
	// delay before a loaded embed reports ready
	LoadDelay time.Duration
}

func (f *VirtualFactory) NewEmbed(listener EmbedListener) (Embed, error) {
	if f.Duration == nil {
		return nil, fmt.Errorf("virtual player: no duration source")
	}
	return &virtualEmbed{factory: f, listener: listener, volume: defaultVolume}, nil
}

type virtualEmbed struct {
	factory  *VirtualFactory
	listener EmbedListener

	mu        sync.Mutex
	duration  float64
	offset    float64
	startedAt time.Time
	playing   bool
	loaded    bool
	volume    int
	timer     *time.Timer
	destroyed bool
}

func (e *virtualEmbed) Load(mediaID string, startOffset float64) error {
	d, err := e.factory.Duration(mediaID)
	if err != nil {
		return fmt.Errorf("failed to resolve duration of %s: %w", mediaID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		return fmt.Errorf("virtual player destroyed")
	}
	e.stopTimerLocked()
	e.duration = d
	e.offset = clampTime(startOffset, d)
	e.playing = false
	e.loaded = false

	e.timer = time.AfterFunc(e.factory.LoadDelay, func() {
		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			return
		}
		e.loaded = true
		e.mu.Unlock()
		e.listener.EmbedReady()
	})

	return nil
}

func (e *virtualEmbed) positionLocked() float64 {
	if !e.playing {
		return e.offset
	}
	return clampTime(e.offset+time.Since(e.startedAt).Seconds(), e.duration)
}

func (e *virtualEmbed) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// armEndLocked schedules the ended notification for the current position
func (e *virtualEmbed) armEndLocked() {
	e.stopTimerLocked()
	remaining := e.duration - e.offset
	if remaining < 0 {
		remaining = 0
	}
	e.timer = time.AfterFunc(time.Duration(remaining*float64(time.Second)), func() {
		e.mu.Lock()
		if e.destroyed || !e.playing {
			e.mu.Unlock()
			return
		}
		e.offset = e.duration
		e.playing = false
		e.mu.Unlock()
		e.listener.EmbedStateChanged(EmbedEnded)
	})
}

func (e *virtualEmbed) Play() error {
	e.mu.Lock()
	if !e.loaded || e.destroyed {
		e.mu.Unlock()
		return fmt.Errorf("virtual player not loaded")
	}
	if e.offset >= e.duration {
		e.offset = 0
	}
	if !e.playing {
		e.playing = true
		e.startedAt = time.Now()
		e.armEndLocked()
	}
	e.mu.Unlock()

	e.listener.EmbedStateChanged(EmbedPlaying)
	return nil
}

func (e *virtualEmbed) Pause() error {
	e.mu.Lock()
	if !e.loaded || e.destroyed {
		e.mu.Unlock()
		return fmt.Errorf("virtual player not loaded")
	}
	if e.playing {
		e.offset = e.positionLocked()
		e.playing = false
		e.stopTimerLocked()
	}
	e.mu.Unlock()

	e.listener.EmbedStateChanged(EmbedPaused)
	return nil
}

func (e *virtualEmbed) Seek(seconds float64, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded || e.destroyed {
		return fmt.Errorf("virtual player not loaded")
	}
	e.offset = clampTime(seconds, e.duration)
	if e.playing {
		e.startedAt = time.Now()
		e.armEndLocked()
	}
	return nil
}

func (e *virtualEmbed) CurrentTime() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return 0, fmt.Errorf("virtual player not loaded")
	}
	return e.positionLocked(), nil
}

func (e *virtualEmbed) Duration() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded {
		return 0, fmt.Errorf("virtual player not loaded")
	}
	return e.duration, nil
}

func (e *virtualEmbed) SetVolume(percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = percent
	return nil
}

func (e *virtualEmbed) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopTimerLocked()
	e.destroyed = true
	e.playing = false
	return nil
}
