// Package coordinator keeps transcript highlighting in step with playback.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mgpai22/wordsync/internal/logging"
	"github.com/mgpai22/wordsync/internal/player"
	"github.com/mgpai22/wordsync/internal/timing"
)

const DefaultPollInterval = 100 * time.Millisecond

// the slice of the player adapter the coordinator drives
type Player interface {
	CurrentTime() float64
	Duration() float64
	Seek(seconds float64, allowAhead bool)
	Play()
	Pause()
	State() player.State
	IsReady() bool
	Observe(o player.Observer) func()
}

// upward notifications; nil fields are skipped
type Events struct {
	OnWordHighlight func(index int)
	OnTimeUpdate    func(seconds float64)
	OnReady         func()
	OnError         func(code player.ErrorCode)
	OnUnavailable   func(err error)
}

type Options struct {
	PollInterval time.Duration
}

// Coordinator polls the player, resolves the active word and raises a
// highlight only when it changes. Clicks and scrubs seek and highlight
// immediately instead of waiting for the next tick.
type Coordinator struct {
	player   Player
	events   Events
	interval time.Duration
	logger   *logging.Logger

	// held from the highlight check through delivery so emissions keep the
	// order of their checks; OnWordHighlight must not click or scrub
	emitMu sync.Mutex

	mu          sync.Mutex
	index       *timing.Index
	highlighted int
	// bumped by every user seek so an in-flight poll can't overwrite it
	seq       uint64
	baseCtx   context.Context
	stopLoop  context.CancelFunc
	unobserve func()
	done      chan struct{}
	wg        sync.WaitGroup
	started   bool
}

func New(p Player, index *timing.Index, events Events, opts Options, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Coordinator{
		player:      p,
		index:       index,
		events:      events,
		interval:    opts.PollInterval,
		logger:      logger.Named("coordinator"),
		highlighted: timing.NoWord,
	}
}

// Start subscribes to the player and begins polling once it is ready.
// Polling stops while the player is failing and when ctx is done.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.baseCtx = ctx
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	unobserve := c.player.Observe(player.Observer{
		OnReady: func() {
			c.resume()
			if c.events.OnReady != nil {
				c.events.OnReady()
			}
		},
		OnStateChange: func(s player.State) {
			switch {
			case s.Failing():
				c.suspend(s)
			case s.Ready():
				c.resume()
			}
		},
		OnError: func(code player.ErrorCode) {
			if c.events.OnError != nil {
				c.events.OnError(code)
			}
		},
		OnUnavailable: func(err error) {
			if c.events.OnUnavailable != nil {
				c.events.OnUnavailable(err)
			}
		},
	})

	c.mu.Lock()
	c.unobserve = unobserve
	c.mu.Unlock()

	if c.player.IsReady() {
		c.resume()
	}

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-done:
		}
	}()
}

// Stop ends polling and detaches from the player.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.done)
	if c.stopLoop != nil {
		c.stopLoop()
		c.stopLoop = nil
	}
	unobserve := c.unobserve
	c.unobserve = nil
	c.mu.Unlock()

	if unobserve != nil {
		unobserve()
	}
	c.wg.Wait()
}

func (c *Coordinator) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.stopLoop != nil {
		return
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.stopLoop = cancel
	c.wg.Add(1)
	go c.run(ctx)
	c.logger.Debugw("Polling started", "interval", c.interval.String())
}

func (c *Coordinator) suspend(s player.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopLoop == nil {
		return
	}
	c.stopLoop()
	c.stopLoop = nil
	c.logger.Debugw("Polling suspended", "state", s)
}

func (c *Coordinator) polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLoop != nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

// poll runs one tick of the loop.
func (c *Coordinator) poll() {
	if !c.player.IsReady() {
		return
	}

	c.mu.Lock()
	seq := c.seq
	index := c.index
	c.mu.Unlock()

	t := c.player.CurrentTime()
	if c.events.OnTimeUpdate != nil {
		c.events.OnTimeUpdate(t)
	}
	if index == nil {
		return
	}

	c.highlight(index.ActiveWordAt(t), seq)
}

// highlight emits idx if it differs from the current highlight. A stale seq
// means a user seek happened since the poll read the clock.
func (c *Coordinator) highlight(idx int, seq uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if seq != c.seq || idx == c.highlighted {
		c.mu.Unlock()
		return
	}
	c.highlighted = idx
	c.mu.Unlock()

	if c.events.OnWordHighlight != nil {
		c.events.OnWordHighlight(idx)
	}
}

// userSeek bumps the sequence and returns the value for the follow-up highlight
func (c *Coordinator) userSeek() (*timing.Index, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.index, c.seq
}

// ClickWord seeks to word i and highlights it without waiting for a tick.
func (c *Coordinator) ClickWord(i int) error {
	index, seq := c.userSeek()
	if index == nil {
		return fmt.Errorf("no word index loaded")
	}
	if i < 0 || i >= index.Len() {
		return fmt.Errorf("word %d out of range [0, %d)", i, index.Len())
	}

	t := index.TimeForWord(i)
	c.player.Seek(t, true)
	c.logger.Debugw("Word clicked", "word", i, "time", t)

	if c.events.OnTimeUpdate != nil {
		c.events.OnTimeUpdate(t)
	}
	c.highlight(i, seq)
	return nil
}

// ScrubTo seeks to seconds (clamped to the media) and highlights the word there.
func (c *Coordinator) ScrubTo(seconds float64) {
	index, seq := c.userSeek()

	if seconds < 0 {
		seconds = 0
	}
	if d := c.player.Duration(); d > 0 && seconds > d {
		seconds = d
	}
	c.player.Seek(seconds, true)

	if c.events.OnTimeUpdate != nil {
		c.events.OnTimeUpdate(seconds)
	}
	if index != nil {
		c.highlight(index.ActiveWordAt(seconds), seq)
	}
}

// SetIndex swaps the word table, e.g. after recalibration, and re-resolves
// the highlight on the next tick.
func (c *Coordinator) SetIndex(index *timing.Index) {
	c.mu.Lock()
	c.index = index
	c.highlighted = timing.NoWord
	c.seq++
	c.mu.Unlock()
}

// currently highlighted word, timing.NoWord if none
func (c *Coordinator) Highlighted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.highlighted
}

func (c *Coordinator) Play() {
	c.player.Play()
}

func (c *Coordinator) Pause() {
	c.player.Pause()
}

// TogglePlay pauses a playing player and plays otherwise.
func (c *Coordinator) TogglePlay() {
	if c.player.State() == player.StatePlaying {
		c.player.Pause()
		return
	}
	c.player.Play()
}

func (c *Coordinator) IsReady() bool {
	return c.player.IsReady()
}

// CurrentTime satisfies calibrate.TimeSource.
func (c *Coordinator) CurrentTime() float64 {
	return c.player.CurrentTime()
}
