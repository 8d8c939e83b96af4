package calibrate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mgpai22/wordsync/internal/timing"
)

var (
	ErrNoWordInFocus  = errors.New("no word in focus: calibration reached the end of the transcript")
	ErrMarkOutOfOrder = errors.New("mark is not between the neighbouring marks")
)

// source of the current playback position
type TimeSource interface {
	CurrentTime() float64
}

// Session captures manual sync points during a guided listening pass.
// A session can be exported at any point; stopping early leaves it valid.
type Session struct {
	mu     sync.Mutex
	id     string
	words  []string
	points map[int]SyncPoint
	focus  int
	clock  TimeSource
	opts   Options
}

func NewSession(words []string, clock TimeSource, opts Options) *Session {
	return &Session{
		id:     uuid.NewString(),
		words:  words,
		points: make(map[int]SyncPoint),
		clock:  clock,
		opts:   opts,
	}
}

func (s *Session) ID() string {
	return s.id
}

// keeps the session id of a resumed document
func (s *Session) SetID(id string) {
	if id != "" {
		s.id = id
	}
}

func (s *Session) Words() []string {
	return s.words
}

func (s *Session) Options() Options {
	return s.opts
}

// index of the word the operator is listening for
func (s *Session) Focus() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

func (s *Session) SetFocus(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.words) {
		return fmt.Errorf("word %d out of range (0-%d)", i, len(s.words)-1)
	}
	s.focus = i
	return nil
}

// MarkCurrentWord records that the focused word was just heard at the current
// playback time, overwriting any earlier mark for it, and advances focus.
func (s *Session) MarkCurrentWord() (SyncPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focus >= len(s.words) {
		return SyncPoint{}, ErrNoWordInFocus
	}

	p, err := s.markLocked(s.focus, s.clock.CurrentTime())
	if err != nil {
		return SyncPoint{}, err
	}
	s.focus++
	return p, nil
}

// Mark records a point for an arbitrary word without moving focus.
func (s *Session) Mark(i int, timestamp float64) (SyncPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.words) {
		return SyncPoint{}, fmt.Errorf("word %d out of range (0-%d)", i, len(s.words)-1)
	}
	if timestamp < 0 {
		return SyncPoint{}, fmt.Errorf("negative timestamp %.3f", timestamp)
	}

	return s.markLocked(i, timestamp)
}

// Marks must keep timestamps strictly increasing with word index, otherwise
// the session could no longer be exported.
func (s *Session) markLocked(i int, timestamp float64) (SyncPoint, error) {
	for j := i - 1; j >= 0; j-- {
		if prev, ok := s.points[j]; ok {
			if timestamp <= prev.Timestamp {
				return SyncPoint{}, fmt.Errorf(
					"%w: word %d at %.3fs is not after word %d at %.3fs",
					ErrMarkOutOfOrder, i, timestamp, j, prev.Timestamp,
				)
			}
			break
		}
	}
	for j := i + 1; j < len(s.words); j++ {
		if next, ok := s.points[j]; ok {
			if timestamp >= next.Timestamp {
				return SyncPoint{}, fmt.Errorf(
					"%w: word %d at %.3fs is not before word %d at %.3fs",
					ErrMarkOutOfOrder, i, timestamp, j, next.Timestamp,
				)
			}
			break
		}
	}

	p := SyncPoint{
		WordIndex:  i,
		Word:       s.words[i],
		Timestamp:  timestamp,
		Confidence: ConfidenceManual,
	}
	s.points[i] = p
	return p, nil
}

// removes the mark for word i, reports whether one existed
func (s *Session) Unmark(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.points[i]
	delete(s.points, i)
	return ok
}

// SkipToNextUnmarked moves focus to the first word after the current focus
// that has no recorded point. It returns -1 and leaves focus alone when
// every remaining word is marked.
func (s *Session) SkipToNextUnmarked() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := s.focus + 1; i < len(s.words); i++ {
		if _, marked := s.points[i]; !marked {
			s.focus = i
			return i
		}
	}
	return -1
}

func (s *Session) IsMarked(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.points[i]
	return ok
}

// manual points sorted by word index
func (s *Session) Points() []SyncPoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SyncPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	return sortPoints(out)
}

func (s *Session) ManualCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// Build derives the full table from the points captured so far.
func (s *Session) Build() ([]SyncPoint, []timing.WordTimestamp, error) {
	return Derive(s.Points(), s.words, s.opts)
}

// replaces all points, used when resuming from an imported document
func (s *Session) Load(points []SyncPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded := make(map[int]SyncPoint, len(points))
	for _, p := range points {
		if p.Confidence != ConfidenceManual {
			continue
		}
		if p.WordIndex < 0 || p.WordIndex >= len(s.words) {
			return fmt.Errorf("sync point for word %d is outside the transcript", p.WordIndex)
		}
		loaded[p.WordIndex] = p
	}

	s.points = loaded
	s.focus = len(s.words)
	for i := range s.words {
		if _, marked := s.points[i]; !marked {
			s.focus = i
			break
		}
	}
	return nil
}
