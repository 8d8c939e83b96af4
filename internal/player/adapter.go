package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mgpai22/wordsync/internal/logging"
)

type Options struct {
	// how long a freshly loaded embed may take to report ready
	ReadyTimeout time.Duration
	// pause between tearing an embed down and creating the next one
	RecoveryDelay time.Duration
	// recoveries allowed before the player is declared unavailable
	MaxRecoveryAttempts int
	// attempts to reach a host that is not ready yet
	BootstrapAttempts int
	// first bootstrap retry delay, doubled on every attempt
	BootstrapBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReadyTimeout:        10 * time.Second,
		RecoveryDelay:       50 * time.Millisecond,
		MaxRecoveryAttempts: 5,
		BootstrapAttempts:   5,
		BootstrapBackoff:    500 * time.Millisecond,
	}
}

const defaultVolume = 100

// callbacks raised by the adapter; nil fields are skipped
type Observer struct {
	OnReady       func()
	OnStateChange func(State)
	OnError       func(ErrorCode)
	OnUnavailable func(error)
}

type eventKind int

const (
	evReady eventKind = iota
	evState
	evError
	evReadyTimeout
	evBootstrap
	evRecover
)

type event struct {
	gen   uint64
	kind  eventKind
	state EmbedState
	code  ErrorCode
}

// Adapter owns the single embed instance and turns its asynchronous
// lifecycle into a state machine:
//
//	Uninitialized -> Loading -> Ready <-> {Playing, Paused} -> Ended
//	any -> Error -> Recovering -> Loading
//
// Every mutation of the embed goes through the adapter. Embed callbacks and
// timers are serialized through one event loop goroutine.
type Adapter struct {
	factory EmbedFactory
	opts    Options
	logger  *logging.Logger

	mu          sync.Mutex
	embed       Embed
	gen         uint64
	state       State
	session     PlaybackSession
	mediaID     string
	startOffset float64
	loadOffset  float64
	pendingSeek *float64
	recovering  bool
	recoveries  int
	bootstraps  int
	timer       *time.Timer
	observers   map[int]Observer
	nextObs     int
	closed      bool

	events chan event
	done   chan struct{}
}

func New(factory EmbedFactory, opts Options, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	defaults := DefaultOptions()
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaults.ReadyTimeout
	}
	if opts.RecoveryDelay < 0 {
		opts.RecoveryDelay = 0
	}
	if opts.MaxRecoveryAttempts < 0 {
		opts.MaxRecoveryAttempts = 0
	}
	if opts.BootstrapAttempts <= 0 {
		opts.BootstrapAttempts = defaults.BootstrapAttempts
	}
	if opts.BootstrapBackoff <= 0 {
		opts.BootstrapBackoff = defaults.BootstrapBackoff
	}

	a := &Adapter{
		factory:   factory,
		opts:      opts,
		logger:    logger.Named("player"),
		state:     StateUninitialized,
		session:   PlaybackSession{Volume: defaultVolume},
		observers: make(map[int]Observer),
		events:    make(chan event, 64),
		done:      make(chan struct{}),
	}
	go a.loop()

	return a
}

var (
	sharedOnce sync.Once
	shared     *Adapter
)

// SetupShared creates the process-wide adapter on its first call. Later
// calls return the same instance and ignore their arguments.
func SetupShared(factory EmbedFactory, opts Options, logger *logging.Logger) *Adapter {
	sharedOnce.Do(func() {
		shared = New(factory, opts, logger)
	})
	return shared
}

// Observe registers callbacks and returns a function that removes them.
// Callbacks run without the adapter lock held and may call back into it.
func (a *Adapter) Observe(o Observer) func() {
	a.mu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = o
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.observers, id)
		a.mu.Unlock()
	}
}

// notices collects upward notifications while the lock is held
type notices []func(Observer)

func (n *notices) ready() {
	*n = append(*n, func(o Observer) {
		if o.OnReady != nil {
			o.OnReady()
		}
	})
}

func (n *notices) state(s State) {
	*n = append(*n, func(o Observer) {
		if o.OnStateChange != nil {
			o.OnStateChange(s)
		}
	})
}

func (n *notices) error(c ErrorCode) {
	*n = append(*n, func(o Observer) {
		if o.OnError != nil {
			o.OnError(c)
		}
	})
}

func (n *notices) unavailable(err error) {
	*n = append(*n, func(o Observer) {
		if o.OnUnavailable != nil {
			o.OnUnavailable(err)
		}
	})
}

// runs fn under the lock, then delivers whatever it queued
func (a *Adapter) locked(fn func(n *notices)) {
	var n notices

	a.mu.Lock()
	fn(&n)
	var obs []Observer
	if len(n) > 0 {
		obs = make([]Observer, 0, len(a.observers))
		for _, o := range a.observers {
			obs = append(obs, o)
		}
	}
	a.mu.Unlock()

	for _, deliver := range n {
		for _, o := range obs {
			deliver(o)
		}
	}
}

func (a *Adapter) setState(n *notices, s State) {
	if a.state == s {
		return
	}
	a.logger.Debugw("State change", "from", a.state, "to", s)
	a.state = s
	n.state(s)
}

// Initialize loads mediaID, creating the embed if needed. A healthy embed is
// reused: the same media is a no-op, other media is loaded into it. Failures
// never propagate to the caller; they move the adapter into its retry path.
func (a *Adapter) Initialize(mediaID string, startOffset float64) {
	a.locked(func(n *notices) {
		if a.closed {
			return
		}

		switch {
		case a.state == StateUnavailable:
			a.logger.Warnw("Initialize ignored: player unavailable, retry required",
				"media", mediaID,
			)
			return
		case a.state == StateRecovering || a.recovering:
			// recovery will load whatever is requested last
			a.mediaID = mediaID
			a.startOffset = startOffset
			a.loadOffset = startOffset
			return
		case a.embed == nil && a.state == StateLoading && mediaID == a.mediaID:
			// bootstrap retry already pending
			return
		case a.embed != nil:
			if mediaID == a.mediaID {
				a.logger.Debugw("Reusing live embed", "media", mediaID)
				return
			}
			a.mediaID = mediaID
			a.startOffset = startOffset
			a.loadOffset = startOffset
			a.session.IsReady = false
			a.session.IsPlaying = false
			a.session.CurrentTime = startOffset
			a.setState(n, StateLoading)
			if err := a.embed.Load(mediaID, startOffset); err != nil {
				a.logger.Warnw("Load failed", "media", mediaID, "error", err)
				a.failLocked(n, CodeLoadFailed)
				return
			}
			a.arm(a.opts.ReadyTimeout, evReadyTimeout, 0)
			return
		}

		a.mediaID = mediaID
		a.startOffset = startOffset
		a.loadOffset = startOffset
		a.bootstraps = 0
		a.createLocked(n)
	})
}

func (a *Adapter) createLocked(n *notices) {
	a.gen++
	a.setState(n, StateLoading)

	embed, err := a.factory.NewEmbed(&embedListener{a: a, gen: a.gen})
	if errors.Is(err, ErrHostNotReady) {
		a.bootstraps++
		if a.bootstraps >= a.opts.BootstrapAttempts {
			a.unavailableLocked(n, fmt.Errorf(
				"%w: host not ready after %d attempts",
				ErrPlayerUnavailable,
				a.bootstraps,
			))
			return
		}
		delay := a.opts.BootstrapBackoff << (a.bootstraps - 1)
		a.logger.Infow("Player host not ready, retrying",
			"attempt", a.bootstraps,
			"delay", delay.String(),
		)
		a.arm(delay, evBootstrap, 0)
		return
	}
	if err != nil {
		a.logger.Warnw("Failed to create embed", "error", err)
		a.failLocked(n, CodeLoadFailed)
		return
	}

	a.embed = embed
	a.session = PlaybackSession{Volume: a.session.Volume, CurrentTime: a.loadOffset}

	if err := embed.Load(a.mediaID, a.loadOffset); err != nil {
		a.logger.Warnw("Load failed", "media", a.mediaID, "error", err)
		a.failLocked(n, CodeLoadFailed)
		return
	}
	a.arm(a.opts.ReadyTimeout, evReadyTimeout, 0)
}

// arm replaces the pending timer with one that posts kind after d
func (a *Adapter) arm(d time.Duration, kind eventKind, code ErrorCode) {
	if a.timer != nil {
		a.timer.Stop()
	}
	ev := event{gen: a.gen, kind: kind, code: code}
	a.timer = time.AfterFunc(d, func() { a.post(ev) })
}

func (a *Adapter) disarm() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// failLocked runs the recovery procedure unless one is already in progress
// or the bound is exhausted.
func (a *Adapter) failLocked(n *notices, code ErrorCode) {
	if a.recovering || a.state == StateUnavailable || a.closed {
		return
	}

	if a.recoveries >= a.opts.MaxRecoveryAttempts {
		a.unavailableLocked(n, fmt.Errorf(
			"%w: %d recovery attempts failed (last error: %s)",
			ErrPlayerUnavailable,
			a.recoveries,
			code,
		))
		return
	}

	a.recoveries++
	a.recovering = true
	a.setState(n, StateError)

	a.loadOffset = a.startOffset
	if code.Recoverable() && a.session.CurrentTime > 0 {
		a.loadOffset = a.session.CurrentTime
	}

	a.logger.Warnw("Player error, recovering",
		"code", code,
		"attempt", a.recoveries,
		"max_attempts", a.opts.MaxRecoveryAttempts,
		"resume_at", a.loadOffset,
	)

	a.teardownLocked()
	a.setState(n, StateRecovering)
	a.arm(a.opts.RecoveryDelay, evRecover, code)
}

func (a *Adapter) unavailableLocked(n *notices, err error) {
	a.teardownLocked()
	a.recovering = false
	a.logger.Errorw("Player unavailable", "error", err)
	a.setState(n, StateUnavailable)
	n.unavailable(err)
}

// teardownLocked destroys the embed and invalidates its pending callbacks.
func (a *Adapter) teardownLocked() {
	a.disarm()
	a.gen++
	if a.embed != nil {
		if err := a.embed.Destroy(); err != nil {
			a.logger.Debugw("Embed destroy failed", "error", err)
		}
		a.embed = nil
	}
	a.pendingSeek = nil
	a.session = PlaybackSession{Volume: a.session.Volume}
}

// Retry is the manual re-trigger after the player became unavailable.
// It resets the recovery bounds and loads the last requested media again.
func (a *Adapter) Retry() {
	a.locked(func(n *notices) {
		if a.closed || a.mediaID == "" {
			return
		}
		a.logger.Infow("Retrying player", "media", a.mediaID)
		a.teardownLocked()
		a.recoveries = 0
		a.bootstraps = 0
		a.recovering = false
		a.loadOffset = a.startOffset
		a.createLocked(n)
	})
}

// Close destroys the embed and stops the event loop.
func (a *Adapter) Close() {
	a.locked(func(n *notices) {
		if a.closed {
			return
		}
		a.teardownLocked()
		a.closed = true
		a.recovering = false
		a.setState(n, StateUninitialized)
		close(a.done)
	})
}

func (a *Adapter) post(ev event) {
	select {
	case a.events <- ev:
	case <-a.done:
	default:
		// never block the caller, it may be an embed callback running under our lock
		go func() {
			select {
			case a.events <- ev:
			case <-a.done:
			}
		}()
	}
}

func (a *Adapter) loop() {
	for {
		select {
		case <-a.done:
			return
		case ev := <-a.events:
			a.locked(func(n *notices) { a.handle(n, ev) })
		}
	}
}

func (a *Adapter) handle(n *notices, ev event) {
	if a.closed {
		return
	}
	if ev.gen != a.gen {
		a.logger.Debugw("Dropping stale player event", "kind", ev.kind)
		return
	}

	switch ev.kind {
	case evReady:
		a.readyLocked(n)
	case evState:
		a.embedStateLocked(n, ev.state)
	case evError:
		n.error(ev.code)
		a.failLocked(n, ev.code)
	case evReadyTimeout:
		if a.state == StateLoading {
			a.logger.Warnw("Player did not become ready in time",
				"timeout", a.opts.ReadyTimeout.String(),
			)
			n.error(CodeReadyTimeout)
			a.failLocked(n, CodeReadyTimeout)
		}
	case evBootstrap:
		if a.state == StateLoading && a.embed == nil {
			a.createLocked(n)
		}
	case evRecover:
		a.recovering = false
		a.createLocked(n)
	}
}

func (a *Adapter) readyLocked(n *notices) {
	if a.embed == nil || a.state != StateLoading {
		return
	}
	a.disarm()

	a.session.IsReady = true
	if d, err := a.embed.Duration(); err == nil && d > 0 {
		a.session.Duration = d
	}
	if vs, ok := a.embed.(VolumeSetter); ok && a.session.Volume != defaultVolume {
		if err := vs.SetVolume(a.session.Volume); err != nil {
			a.logger.Debugw("Failed to restore volume", "error", err)
		}
	}

	a.setState(n, StateReady)
	n.ready()
	a.logger.Infow("Player ready",
		"media", a.mediaID,
		"duration", a.session.Duration,
	)

	if a.pendingSeek != nil {
		target := *a.pendingSeek
		a.pendingSeek = nil
		a.seekLocked(target, true)
	}
}

func (a *Adapter) embedStateLocked(n *notices, s EmbedState) {
	if a.state == StateLoading {
		// some hosts start playing without announcing readiness first
		a.readyLocked(n)
	}
	if !a.state.Ready() {
		return
	}

	switch s {
	case EmbedPlaying:
		a.session.IsPlaying = true
		// a successful play ends a run of consecutive failures
		a.recoveries = 0
		a.setState(n, StatePlaying)
	case EmbedPaused:
		a.session.IsPlaying = false
		a.setState(n, StatePaused)
	case EmbedEnded:
		a.session.IsPlaying = false
		if a.session.Duration > 0 {
			a.session.CurrentTime = a.session.Duration
		}
		a.setState(n, StateEnded)
	case EmbedBuffering:
		a.logger.Debugw("Player buffering")
	}
}

// readyEmbedLocked returns the embed if controls may be used, logging otherwise
func (a *Adapter) readyEmbedLocked(op string) Embed {
	if a.embed == nil || !a.state.Ready() {
		a.logger.Warnw("Ignoring player command: not ready",
			"command", op,
			"state", a.state,
		)
		return nil
	}
	return a.embed
}

func (a *Adapter) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e := a.readyEmbedLocked("play"); e != nil {
		if err := e.Play(); err != nil {
			a.logger.Warnw("Play failed", "error", err)
		}
	}
}

func (a *Adapter) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e := a.readyEmbedLocked("pause"); e != nil {
		if err := e.Pause(); err != nil {
			a.logger.Warnw("Pause failed", "error", err)
		}
	}
}

// Seek moves playback to seconds, clamped to [0, duration]. Before the embed
// is ready the target is remembered and applied once it is.
func (a *Adapter) Seek(seconds float64, allowAhead bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.embed == nil || !a.state.Ready() {
		if a.state.healthy() {
			target := clampTime(seconds, a.session.Duration)
			a.pendingSeek = &target
			a.session.CurrentTime = target
			a.logger.Debugw("Deferring seek until ready", "target", target)
			return
		}
		a.logger.Warnw("Ignoring seek: player not ready", "state", a.state)
		return
	}

	a.seekLocked(seconds, allowAhead)
}

func (a *Adapter) seekLocked(seconds float64, allowAhead bool) {
	target := clampTime(seconds, a.session.Duration)
	if err := a.embed.Seek(target, allowAhead); err != nil {
		a.logger.Warnw("Seek failed", "target", target, "error", err)
		return
	}
	a.session.CurrentTime = target
}

func clampTime(t, duration float64) float64 {
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

// CurrentTime is the playback position in seconds, 0 when not ready.
func (a *Adapter) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.embed == nil || !a.session.IsReady {
		return 0
	}

	t, err := a.embed.CurrentTime()
	if err != nil {
		return a.session.CurrentTime
	}
	a.session.CurrentTime = t
	return t
}

// Duration is the media length in seconds, 0 when unknown or not ready.
func (a *Adapter) Duration() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.embed == nil || !a.session.IsReady {
		return 0
	}
	if a.session.Duration > 0 {
		return a.session.Duration
	}

	d, err := a.embed.Duration()
	if err != nil || d <= 0 {
		return 0
	}
	a.session.Duration = d
	return d
}

func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) IsReady() bool {
	return a.State().Ready()
}

// snapshot of the playback session
func (a *Adapter) Session() PlaybackSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

func (a *Adapter) MediaID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mediaID
}

// SetVolume records the volume (0-100) and applies it when the embed supports it.
func (a *Adapter) SetVolume(percent int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	percent = max(0, min(100, percent))
	a.session.Volume = percent

	if a.embed == nil || !a.session.IsReady {
		return
	}
	if vs, ok := a.embed.(VolumeSetter); ok {
		if err := vs.SetVolume(percent); err != nil {
			a.logger.Warnw("SetVolume failed", "error", err)
		}
	}
}

// embedListener tags callbacks with the generation of the embed they came from
type embedListener struct {
	a   *Adapter
	gen uint64
}

func (l *embedListener) EmbedReady() {
	l.a.post(event{gen: l.gen, kind: evReady})
}

func (l *embedListener) EmbedStateChanged(s EmbedState) {
	l.a.post(event{gen: l.gen, kind: evState, state: s})
}

func (l *embedListener) EmbedError(code ErrorCode) {
	l.a.post(event{gen: l.gen, kind: evError, code: code})
}
