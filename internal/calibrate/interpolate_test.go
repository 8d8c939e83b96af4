package calibrate

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/mgpai22/wordsync/internal/timing"
)

func makeWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return words
}

func manual(i int, ts float64) SyncPoint {
	return SyncPoint{WordIndex: i, Word: fmt.Sprintf("w%d", i), Timestamp: ts, Confidence: ConfidenceManual}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInterpolateMidpoint(t *testing.T) {
	points, err := Interpolate(
		[]SyncPoint{manual(5, 10.0), manual(15, 20.0)},
		makeWords(20),
		DefaultOptions(),
	)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}

	if !near(points[10].Timestamp, 15.0) {
		t.Errorf("word 10 = %v, want 15.0", points[10].Timestamp)
	}
	if points[10].Confidence != ConfidenceInterpolated {
		t.Errorf("word 10 confidence = %q", points[10].Confidence)
	}
}

func TestInterpolateSinglePointFallback(t *testing.T) {
	points, err := Interpolate([]SyncPoint{manual(3, 6.0)}, makeWords(6), DefaultOptions())
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}

	if !near(points[0].Timestamp, 6.0-3/2.5) {
		t.Errorf("word 0 = %v, want 4.8", points[0].Timestamp)
	}
	if !near(points[5].Timestamp, 6.0+2/2.5) {
		t.Errorf("word 5 = %v, want 6.8", points[5].Timestamp)
	}
}

func TestInterpolateUsesLocalRateForExtrapolation(t *testing.T) {
	// 4 words per second between the first two anchors, 1 between the last two
	points, err := Interpolate(
		[]SyncPoint{manual(4, 10.0), manual(8, 11.0), manual(10, 13.0)},
		makeWords(13),
		DefaultOptions(),
	)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}

	if !near(points[0].Timestamp, 9.0) {
		t.Errorf("word 0 = %v, want 9.0", points[0].Timestamp)
	}
	if !near(points[12].Timestamp, 15.0) {
		t.Errorf("word 12 = %v, want 15.0", points[12].Timestamp)
	}
}

func TestInterpolateClampsLeadingAtZero(t *testing.T) {
	points, err := Interpolate([]SyncPoint{manual(4, 0.8)}, makeWords(6), DefaultOptions())
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}

	for i := 0; i < 4; i++ {
		if points[i].Timestamp < 0 {
			t.Errorf("word %d extrapolated below zero: %v", i, points[i].Timestamp)
		}
		if points[i].Timestamp >= points[i+1].Timestamp {
			t.Errorf("word %d (%v) not before word %d (%v)", i, points[i].Timestamp, i+1, points[i+1].Timestamp)
		}
	}
	if points[0].Timestamp != 0 {
		t.Errorf("word 0 = %v, want 0", points[0].Timestamp)
	}
}

func TestInterpolateClampsOnlyWordsBelowZero(t *testing.T) {
	words := makeWords(12)
	points, table, err := Derive([]SyncPoint{manual(10, 2.0)}, words, DefaultOptions())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	// 2.5 words per second back from the anchor
	for i, want := range map[int]float64{9: 1.6, 8: 1.2, 7: 0.8, 6: 0.4} {
		if !near(points[i].Timestamp, want) {
			t.Errorf("word %d = %v, want %v", i, points[i].Timestamp, want)
		}
	}

	if points[0].Timestamp != 0 {
		t.Errorf("word 0 = %v, want 0", points[0].Timestamp)
	}
	for i := 0; i < 6; i++ {
		if points[i].Timestamp >= 0.4 {
			t.Errorf("word %d = %v, want below word 6", i, points[i].Timestamp)
		}
	}
	for i := 1; i < len(table); i++ {
		if table[i].Start <= table[i-1].Start {
			t.Errorf("word %d starts at %v, not after word %d at %v", i, table[i].Start, i-1, table[i-1].Start)
		}
	}
}

func TestInterpolatePreservesAnchors(t *testing.T) {
	anchorsIn := []SyncPoint{manual(12, 30.5), manual(2, 3.25), manual(7, 11.0), manual(19, 44.0)}
	points, table, err := Derive(anchorsIn, makeWords(25), DefaultOptions())
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	for _, a := range anchorsIn {
		got := points[a.WordIndex]
		if got != a {
			t.Errorf("anchor %d changed: got %+v, want %+v", a.WordIndex, got, a)
		}
		if table[a.WordIndex].Start != a.Timestamp {
			t.Errorf("table start for anchor %d = %v, want %v", a.WordIndex, table[a.WordIndex].Start, a.Timestamp)
		}
	}

	for i, p := range points {
		if p.WordIndex != i {
			t.Fatalf("point %d has word index %d", i, p.WordIndex)
		}
	}
}

func TestDeriveNonOverlap(t *testing.T) {
	sets := [][]SyncPoint{
		{manual(0, 0)},
		{manual(50, 12.0)},
		{manual(1, 0.4), manual(2, 0.9), manual(90, 40)},
		{manual(10, 5), manual(11, 5.1), manual(60, 20), manual(99, 30)},
	}

	for n, set := range sets {
		_, table, err := Derive(set, makeWords(100), DefaultOptions())
		if err != nil {
			t.Fatalf("set %d: %v", n, err)
		}
		for i := 1; i < len(table); i++ {
			if table[i-1].End > table[i].Start {
				t.Fatalf("set %d: overlap between %d and %d", n, i-1, i)
			}
			if table[i].Start >= table[i].End {
				t.Fatalf("set %d: empty word %d", n, i)
			}
		}
	}
}

func TestInterpolateRejectsBadAnchors(t *testing.T) {
	tests := []struct {
		name   string
		points []SyncPoint
	}{
		{"no anchors", nil},
		{"only interpolated", []SyncPoint{{WordIndex: 1, Timestamp: 2, Confidence: ConfidenceInterpolated}}},
		{"out of range", []SyncPoint{manual(10, 1)}},
		{"negative timestamp", []SyncPoint{manual(1, -1)}},
		{"time goes backwards", []SyncPoint{manual(1, 5), manual(4, 3)}},
		{"equal timestamps", []SyncPoint{manual(1, 5), manual(4, 5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Interpolate(tt.points, makeWords(10), DefaultOptions()); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Interpolate(nil, makeWords(3), DefaultOptions()); !errors.Is(err, ErrNoAnchors) {
		t.Errorf("expected ErrNoAnchors, got %v", err)
	}
}

func TestInterpolateLaterDuplicateWins(t *testing.T) {
	points, err := Interpolate(
		[]SyncPoint{manual(2, 1.0), manual(2, 1.5)},
		makeWords(4),
		DefaultOptions(),
	)
	if err != nil {
		t.Fatalf("Interpolate: %v", err)
	}
	if points[2].Timestamp != 1.5 {
		t.Errorf("word 2 = %v, want 1.5", points[2].Timestamp)
	}
}

func TestBuildTableSurfacesViolations(t *testing.T) {
	// leading words squeezed into [0, 0) cannot be made valid
	_, _, err := Derive([]SyncPoint{manual(3, 0)}, makeWords(5), DefaultOptions())
	if err == nil {
		t.Fatal("expected invariant violation")
	}
	var inv *timing.InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvariantError, got %T: %v", err, err)
	}
}

func TestBuildTableLastWordDuration(t *testing.T) {
	_, table, err := Derive([]SyncPoint{manual(0, 1.0)}, makeWords(1), Options{DefaultWordsPerSecond: 2})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !near(table[0].End, 1.5) {
		t.Errorf("end = %v, want 1.5", table[0].End)
	}
}

func TestAverageWordsPerSecond(t *testing.T) {
	got := AverageWordsPerSecond([]SyncPoint{manual(0, 0), manual(10, 4), manual(25, 10)})
	if !near(got, 2.5) {
		t.Errorf("got %v, want 2.5", got)
	}
	if got := AverageWordsPerSecond([]SyncPoint{manual(3, 1)}); got != 0 {
		t.Errorf("single point: got %v, want 0", got)
	}
}
