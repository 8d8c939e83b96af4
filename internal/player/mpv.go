package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/wordsync/internal/logging"
	"github.com/mgpai22/wordsync/internal/tools"
)

const (
	mpvCommandTimeout = 5 * time.Second
	mpvPauseObserveID = 1
)

// MPVFactory drives an mpv process over its JSON IPC socket. Each embed owns
// one process that is started idle and killed on Destroy.
type MPVFactory struct {
	// mpv binary, resolved through tools.MPVPath when empty
	Path string
	// IPC socket, a temporary path when empty
	SocketPath string
	// extra command line flags, e.g. --audio-device
	ExtraArgs []string
	// how many times the socket is dialed before the host counts as not ready
	DialAttempts int
	DialInterval time.Duration
	Logger       *logging.Logger
}

func (f *MPVFactory) NewEmbed(listener EmbedListener) (Embed, error) {
	logger := f.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	path := f.Path
	if path == "" {
		found, err := tools.MPVPath()
		if err != nil {
			return nil, err
		}
		path = found
	}

	socket := f.SocketPath
	if socket == "" {
		socket = filepath.Join(os.TempDir(), "wordsync-mpv-"+uuid.NewString()[:8]+".sock")
	}
	_ = os.Remove(socket)

	args := []string{
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--input-ipc-server=" + socket,
	}
	args = append(args, f.ExtraArgs...)

	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	attempts := f.DialAttempts
	if attempts <= 0 {
		attempts = 20
	}
	interval := f.DialInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	var conn net.Conn
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = net.Dial("unix", socket)
		if err == nil {
			break
		}
		select {
		case <-exited:
			return nil, fmt.Errorf("mpv exited before its IPC socket opened")
		case <-time.After(interval):
		}
	}
	if err != nil {
		_ = cmd.Process.Kill()
		_ = os.Remove(socket)
		return nil, fmt.Errorf("%w: mpv socket %s: %v", ErrHostNotReady, socket, err)
	}

	e := &mpvEmbed{
		listener: listener,
		logger:   logger.Named("mpv"),
		cmd:      cmd,
		conn:     conn,
		socket:   socket,
		pending:  make(map[int]chan mpvMessage),
	}
	go e.read()

	if _, err := e.command("observe_property", mpvPauseObserveID, "pause"); err != nil {
		_ = e.Destroy()
		return nil, fmt.Errorf("failed to observe mpv pause state: %w", err)
	}

	return e, nil
}

// one line of mpv IPC output: a command reply or an event
type mpvMessage struct {
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID int             `json:"request_id,omitempty"`
	Event     string          `json:"event,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Name      string          `json:"name,omitempty"`
	ID        int             `json:"id,omitempty"`
}

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type mpvEmbed struct {
	listener EmbedListener
	logger   *logging.Logger
	cmd      *exec.Cmd
	conn     net.Conn
	socket   string

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int
	pending map[int]chan mpvMessage
	loaded  bool
	closed  bool
}

func (e *mpvEmbed) command(args ...any) (json.RawMessage, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.New("mpv connection closed")
	}
	e.nextID++
	id := e.nextID
	reply := make(chan mpvMessage, 1)
	e.pending[id] = reply
	e.mu.Unlock()

	line, err := json.Marshal(mpvRequest{Command: args, RequestID: id})
	if err != nil {
		e.forget(id)
		return nil, fmt.Errorf("failed to encode mpv command: %w", err)
	}

	e.writeMu.Lock()
	_, err = e.conn.Write(append(line, '\n'))
	e.writeMu.Unlock()
	if err != nil {
		e.forget(id)
		return nil, fmt.Errorf("failed to send mpv command: %w", err)
	}

	select {
	case msg, ok := <-reply:
		if !ok {
			return nil, errors.New("mpv connection closed")
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-time.After(mpvCommandTimeout):
		e.forget(id)
		return nil, fmt.Errorf("mpv %v: timed out", args[0])
	}
}

func (e *mpvEmbed) forget(id int) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *mpvEmbed) read() {
	scanner := bufio.NewScanner(e.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var msg mpvMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			e.logger.Debugw("Skipping unparseable mpv message", "error", err)
			continue
		}

		if msg.Event == "" {
			e.mu.Lock()
			reply, ok := e.pending[msg.RequestID]
			delete(e.pending, msg.RequestID)
			e.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}

		e.handleEvent(msg)
	}

	e.mu.Lock()
	closed := e.closed
	e.closed = true
	for id, reply := range e.pending {
		close(reply)
		delete(e.pending, id)
	}
	e.mu.Unlock()

	if !closed {
		e.logger.Warnw("Lost connection to mpv")
		e.listener.EmbedError(CodeHostLost)
	}
}

func (e *mpvEmbed) handleEvent(msg mpvMessage) {
	e.mu.Lock()
	loaded := e.loaded
	if msg.Event == "file-loaded" {
		e.loaded = true
	}
	e.mu.Unlock()

	switch msg.Event {
	case "file-loaded":
		e.listener.EmbedReady()
	case "end-file":
		switch msg.Reason {
		case "eof":
			e.listener.EmbedStateChanged(EmbedEnded)
		case "error":
			if loaded {
				e.listener.EmbedError(CodeDecode)
			} else {
				e.listener.EmbedError(CodeNotFound)
			}
		}
	case "property-change":
		if msg.ID != mpvPauseObserveID || !loaded {
			return
		}
		var paused bool
		if err := json.Unmarshal(msg.Data, &paused); err != nil {
			return
		}
		if paused {
			e.listener.EmbedStateChanged(EmbedPaused)
		} else {
			e.listener.EmbedStateChanged(EmbedPlaying)
		}
	case "seek":
		e.listener.EmbedStateChanged(EmbedBuffering)
	}
}

func (e *mpvEmbed) Load(mediaID string, startOffset float64) error {
	e.mu.Lock()
	e.loaded = false
	e.mu.Unlock()

	if _, err := e.command("set_property", "pause", true); err != nil {
		return err
	}
	start := strconv.FormatFloat(max(0, startOffset), 'f', 3, 64)
	if _, err := e.command("set_property", "start", start); err != nil {
		return err
	}
	if _, err := e.command("loadfile", mediaID, "replace"); err != nil {
		return err
	}
	return nil
}

func (e *mpvEmbed) Play() error {
	_, err := e.command("set_property", "pause", false)
	return err
}

func (e *mpvEmbed) Pause() error {
	_, err := e.command("set_property", "pause", true)
	return err
}

func (e *mpvEmbed) Seek(seconds float64, allowAhead bool) error {
	mode := "absolute+exact"
	if allowAhead {
		mode = "absolute"
	}
	_, err := e.command("seek", seconds, mode)
	return err
}

func (e *mpvEmbed) floatProperty(name string) (float64, error) {
	data, err := e.command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("mpv %s: %w", name, err)
	}
	return v, nil
}

func (e *mpvEmbed) CurrentTime() (float64, error) {
	return e.floatProperty("time-pos")
}

func (e *mpvEmbed) Duration() (float64, error) {
	return e.floatProperty("duration")
}

func (e *mpvEmbed) SetVolume(percent int) error {
	_, err := e.command("set_property", "volume", percent)
	return err
}

func (e *mpvEmbed) Destroy() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return e.kill()
	}
	e.mu.Unlock()

	// best effort, the process is killed regardless
	e.writeMu.Lock()
	_, _ = e.conn.Write([]byte(`{"command":["quit"]}` + "\n"))
	e.writeMu.Unlock()

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	_ = e.conn.Close()
	return e.kill()
}

func (e *mpvEmbed) kill() error {
	defer func() { _ = os.Remove(e.socket) }()
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop mpv: %w", err)
	}
	return nil
}
