package player

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeEmbed struct {
	listener EmbedListener
	duration float64

	mu        sync.Mutex
	loads     []string
	seeks     []float64
	played    int
	position  float64
	volume    int
	destroyed bool
	autoReady bool
}

func (e *fakeEmbed) Load(mediaID string, startOffset float64) error {
	e.mu.Lock()
	e.loads = append(e.loads, mediaID)
	e.position = startOffset
	auto := e.autoReady
	e.mu.Unlock()

	if auto {
		e.listener.EmbedReady()
	}
	return nil
}

func (e *fakeEmbed) Play() error {
	e.mu.Lock()
	e.played++
	e.mu.Unlock()
	e.listener.EmbedStateChanged(EmbedPlaying)
	return nil
}

func (e *fakeEmbed) Pause() error {
	e.listener.EmbedStateChanged(EmbedPaused)
	return nil
}

func (e *fakeEmbed) Seek(seconds float64, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, seconds)
	e.position = seconds
	return nil
}

func (e *fakeEmbed) CurrentTime() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position, nil
}

func (e *fakeEmbed) Duration() (float64, error) {
	return e.duration, nil
}

func (e *fakeEmbed) SetVolume(percent int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = percent
	return nil
}

func (e *fakeEmbed) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	return nil
}

func (e *fakeEmbed) snapshot() (loads []string, seeks []float64, played int, destroyed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.loads...), append([]float64(nil), e.seeks...), e.played, e.destroyed
}

type fakeFactory struct {
	duration float64
	// embeds created before this many successful calls never report ready
	readyAfter int
	// leading calls that fail with ErrHostNotReady
	notReady int

	mu      sync.Mutex
	calls   int
	created []*fakeEmbed
}

func (f *fakeFactory) NewEmbed(listener EmbedListener) (Embed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.notReady > 0 {
		f.notReady--
		return nil, ErrHostNotReady
	}
	e := &fakeEmbed{
		listener:  listener,
		duration:  f.duration,
		autoReady: len(f.created) >= f.readyAfter,
	}
	f.created = append(f.created, e)
	return e, nil
}

func (f *fakeFactory) embeds() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFactory) embed(i int) *fakeEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[i]
}

func (f *fakeFactory) last() *fakeEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[len(f.created)-1]
}

func testOptions() Options {
	return Options{
		ReadyTimeout:        2 * time.Second,
		RecoveryDelay:       time.Millisecond,
		MaxRecoveryAttempts: 5,
		BootstrapAttempts:   5,
		BootstrapBackoff:    time.Millisecond,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestAdapter(t *testing.T, f *fakeFactory, opts Options) *Adapter {
	t.Helper()
	a := New(f, opts, nil)
	t.Cleanup(a.Close)
	return a
}

func TestInitializeBecomesReady(t *testing.T) {
	f := &fakeFactory{duration: 120}
	a := newTestAdapter(t, f, testOptions())

	var mu sync.Mutex
	readies := 0
	a.Observe(Observer{OnReady: func() {
		mu.Lock()
		readies++
		mu.Unlock()
	}})

	if got := a.State(); got != StateUninitialized {
		t.Fatalf("initial state = %v", got)
	}
	a.SetVolume(40)
	a.Initialize("talk.mp3", 0)

	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	s := a.Session()
	if !s.IsReady || s.Duration != 120 {
		t.Errorf("session = %+v, want ready with duration 120", s)
	}
	if got := a.Duration(); got != 120 {
		t.Errorf("Duration() = %v, want 120", got)
	}
	waitFor(t, "ready notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return readies == 1
	})

	e := f.last()
	e.mu.Lock()
	vol := e.volume
	e.mu.Unlock()
	if vol != 40 {
		t.Errorf("volume = %d, want 40 restored on ready", vol)
	}
}

func TestInitializeReusesEmbed(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	a.Initialize("a.mp3", 0)
	a.Initialize("a.mp3", 0)
	if got := f.callCount(); got != 1 {
		t.Fatalf("factory calls = %d, want 1", got)
	}
	loads, _, _, _ := f.last().snapshot()
	if len(loads) != 1 {
		t.Fatalf("loads = %v, want one", loads)
	}

	a.Initialize("b.mp3", 5)
	waitFor(t, "second media ready", func() bool {
		loads, _, _, _ := f.last().snapshot()
		return len(loads) == 2 && a.State() == StateReady
	})
	if got := f.callCount(); got != 1 {
		t.Errorf("factory calls = %d after media change, want 1", got)
	}
	if got := a.MediaID(); got != "b.mp3" {
		t.Errorf("MediaID() = %q", got)
	}
}

func TestRecoveryIsBounded(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := newTestAdapter(t, f, testOptions())

	var mu sync.Mutex
	var unavailable []error
	a.Observe(Observer{OnUnavailable: func(err error) {
		mu.Lock()
		unavailable = append(unavailable, err)
		mu.Unlock()
	}})

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	for i := 1; i <= 5; i++ {
		failed := f.last()
		failed.listener.EmbedError(CodeDecode)
		want := i + 1
		waitFor(t, "recovered embed", func() bool {
			return f.embeds() == want && a.State() == StateReady
		})
		if _, _, _, destroyed := failed.snapshot(); !destroyed {
			t.Fatalf("recovery %d did not destroy the failed embed", i)
		}
	}

	f.last().listener.EmbedError(CodeDecode)
	waitFor(t, "unavailable", func() bool { return a.State() == StateUnavailable })

	time.Sleep(20 * time.Millisecond)
	if got := f.embeds(); got != 6 {
		t.Errorf("embeds created = %d, want 6", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(unavailable) != 1 || !errors.Is(unavailable[0], ErrPlayerUnavailable) {
		t.Errorf("unavailable notifications = %v", unavailable)
	}
}

func TestPlayingResetsRecoveries(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	f.last().listener.EmbedError(CodeHostLost)
	waitFor(t, "recovered", func() bool { return f.embeds() == 2 && a.State() == StateReady })

	a.Play()
	waitFor(t, "playing", func() bool { return a.State() == StatePlaying })

	a.mu.Lock()
	got := a.recoveries
	a.mu.Unlock()
	if got != 0 {
		t.Errorf("recoveries = %d after playing, want 0", got)
	}
}

func TestRecoveryResumesPosition(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 3)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })
	a.Seek(42, true)
	if got := a.CurrentTime(); got != 42 {
		t.Fatalf("CurrentTime() = %v, want 42", got)
	}

	f.last().listener.EmbedError(CodeDecode)
	waitFor(t, "recovered", func() bool { return f.embeds() == 2 && a.State() == StateReady })
	if got := a.CurrentTime(); got != 42 {
		t.Errorf("recoverable error resumed at %v, want 42", got)
	}

	f.last().listener.EmbedError(CodeNotEmbeddable)
	waitFor(t, "recovered again", func() bool { return f.embeds() == 3 && a.State() == StateReady })
	if got := a.CurrentTime(); got != 3 {
		t.Errorf("unrecoverable error resumed at %v, want start offset 3", got)
	}
}

func TestHostNotReadyIsRetried(t *testing.T) {
	f := &fakeFactory{duration: 60, notReady: 2}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	if got := f.callCount(); got != 3 {
		t.Errorf("factory calls = %d, want 3", got)
	}
}

func TestHostNeverReady(t *testing.T) {
	f := &fakeFactory{duration: 60, notReady: 100}
	opts := testOptions()
	opts.BootstrapAttempts = 3
	a := newTestAdapter(t, f, opts)

	a.Initialize("a.mp3", 0)
	waitFor(t, "unavailable", func() bool { return a.State() == StateUnavailable })

	if got := f.callCount(); got != 3 {
		t.Errorf("factory calls = %d, want 3", got)
	}
}

func TestControlsBeforeReady(t *testing.T) {
	f := &fakeFactory{duration: 120, readyAfter: 1}
	a := newTestAdapter(t, f, testOptions())

	a.Play()
	if got := a.State(); got != StateUninitialized {
		t.Fatalf("Play() before Initialize changed state to %v", got)
	}

	a.Initialize("a.mp3", 0)
	waitFor(t, "embed created", func() bool { return f.embeds() == 1 })

	a.Play()
	a.Pause()
	if got := a.CurrentTime(); got != 0 {
		t.Errorf("CurrentTime() = %v before ready, want 0", got)
	}
	if got := a.Duration(); got != 0 {
		t.Errorf("Duration() = %v before ready, want 0", got)
	}
	if a.IsReady() {
		t.Error("IsReady() = true while loading")
	}

	a.Seek(30, true)

	e := f.embed(0)
	_, seeks, played, _ := e.snapshot()
	if played != 0 || len(seeks) != 0 {
		t.Fatalf("embed touched before ready: played=%d seeks=%v", played, seeks)
	}

	e.listener.EmbedReady()
	waitFor(t, "deferred seek", func() bool {
		_, seeks, _, _ := e.snapshot()
		return len(seeks) == 1 && seeks[0] == 30
	})
}

func TestSeekClamps(t *testing.T) {
	f := &fakeFactory{duration: 100}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	a.Seek(-5, true)
	a.Seek(500, true)
	a.Seek(12.5, false)

	_, seeks, _, _ := f.last().snapshot()
	want := []float64{0, 100, 12.5}
	if len(seeks) != len(want) {
		t.Fatalf("seeks = %v, want %v", seeks, want)
	}
	for i := range want {
		if seeks[i] != want[i] {
			t.Errorf("seek[%d] = %v, want %v", i, seeks[i], want[i])
		}
	}
}

func TestReadyTimeoutRecovers(t *testing.T) {
	f := &fakeFactory{duration: 60, readyAfter: 1}
	opts := testOptions()
	opts.ReadyTimeout = 30 * time.Millisecond
	a := newTestAdapter(t, f, opts)

	var mu sync.Mutex
	var codes []ErrorCode
	a.Observe(Observer{OnError: func(c ErrorCode) {
		mu.Lock()
		codes = append(codes, c)
		mu.Unlock()
	}})

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready after timeout", func() bool {
		return f.embeds() == 2 && a.State() == StateReady
	})

	mu.Lock()
	defer mu.Unlock()
	if len(codes) != 1 || codes[0] != CodeReadyTimeout {
		t.Errorf("errors = %v, want [%v]", codes, CodeReadyTimeout)
	}
}

func TestRetryAfterUnavailable(t *testing.T) {
	f := &fakeFactory{duration: 60}
	opts := testOptions()
	opts.MaxRecoveryAttempts = 0
	a := newTestAdapter(t, f, opts)

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	f.last().listener.EmbedError(CodeNotFound)
	waitFor(t, "unavailable", func() bool { return a.State() == StateUnavailable })

	a.Initialize("a.mp3", 0)
	if got := f.embeds(); got != 1 {
		t.Fatalf("Initialize while unavailable created an embed (%d)", got)
	}

	a.Retry()
	waitFor(t, "ready after retry", func() bool {
		return f.embeds() == 2 && a.State() == StateReady
	})
}

func TestStaleEmbedEventsIgnored(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := newTestAdapter(t, f, testOptions())

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	old := f.last()
	old.listener.EmbedError(CodeDecode)
	waitFor(t, "recovered", func() bool { return f.embeds() == 2 && a.State() == StateReady })

	old.listener.EmbedError(CodeDecode)
	old.listener.EmbedStateChanged(EmbedEnded)
	time.Sleep(20 * time.Millisecond)

	if got := a.State(); got != StateReady {
		t.Errorf("state = %v after stale events, want ready", got)
	}
	if got := f.embeds(); got != 2 {
		t.Errorf("embeds = %d after stale events, want 2", got)
	}
}

func TestCloseDestroysEmbed(t *testing.T) {
	f := &fakeFactory{duration: 60}
	a := New(f, testOptions(), nil)

	a.Initialize("a.mp3", 0)
	waitFor(t, "ready", func() bool { return a.State() == StateReady })

	a.Close()
	a.Close()

	if _, _, _, destroyed := f.last().snapshot(); !destroyed {
		t.Error("Close() did not destroy the embed")
	}
	if got := a.State(); got != StateUninitialized {
		t.Errorf("state after Close() = %v", got)
	}
}

func TestErrorCodeRecoverable(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{CodeInvalidMedia, false},
		{CodeDecode, true},
		{CodeNotFound, false},
		{CodeNotEmbeddable, false},
		{CodeReadyTimeout, true},
		{CodeLoadFailed, false},
		{CodeHostLost, true},
	}
	for _, tt := range tests {
		if got := tt.code.Recoverable(); got != tt.want {
			t.Errorf("%v.Recoverable() = %v, want %v", tt.code, got, tt.want)
		}
	}
}
