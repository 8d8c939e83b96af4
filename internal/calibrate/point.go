package calibrate

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultWordsPerSecond is the speech rate used for extrapolation when fewer
// than two anchors are available to estimate one.
const DefaultWordsPerSecond = 2.5

// origin of a sync point's timestamp
type Confidence string

const (
	ConfidenceManual       Confidence = "manual"
	ConfidenceInterpolated Confidence = "interpolated"
)

func (c Confidence) Valid() bool {
	return c == ConfidenceManual || c == ConfidenceInterpolated
}

// calibration anchor: the moment a transcript word starts
type SyncPoint struct {
	WordIndex  int        `json:"wordIndex"`
	Word       string     `json:"word"`
	Timestamp  float64    `json:"timestamp"`
	Confidence Confidence `json:"confidence"`
}

var ErrNoAnchors = errors.New("at least one manual sync point is required")

// sorted copy of points; at a duplicated index the later entry wins
func sortPoints(points []SyncPoint) []SyncPoint {
	byIndex := make(map[int]SyncPoint, len(points))
	for _, p := range points {
		byIndex[p.WordIndex] = p
	}

	out := make([]SyncPoint, 0, len(byIndex))
	for _, p := range byIndex {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WordIndex < out[j].WordIndex
	})

	return out
}

// checks manual points against the transcript size and each other
func validateAnchors(anchors []SyncPoint, totalWords int) error {
	for i, p := range anchors {
		if p.WordIndex < 0 || p.WordIndex >= totalWords {
			return fmt.Errorf(
				"sync point for word %d is outside the transcript (0-%d)",
				p.WordIndex,
				totalWords-1,
			)
		}
		if p.Timestamp < 0 {
			return fmt.Errorf(
				"sync point for word %d has negative timestamp %.3f",
				p.WordIndex,
				p.Timestamp,
			)
		}
		if i > 0 && p.Timestamp <= anchors[i-1].Timestamp {
			return fmt.Errorf(
				"sync point for word %d (%.3fs) is not after word %d (%.3fs)",
				p.WordIndex,
				p.Timestamp,
				anchors[i-1].WordIndex,
				anchors[i-1].Timestamp,
			)
		}
	}
	return nil
}

// words per second between two anchors, ok=false if not estimable
func localRate(a, b SyncPoint) (float64, bool) {
	dt := b.Timestamp - a.Timestamp
	dw := float64(b.WordIndex - a.WordIndex)
	if dt <= 0 || dw <= 0 {
		return 0, false
	}
	return dw / dt, true
}

// average speaking rate across the manual points
func AverageWordsPerSecond(points []SyncPoint) float64 {
	var anchors []SyncPoint
	for _, p := range sortPoints(points) {
		if p.Confidence == ConfidenceManual {
			anchors = append(anchors, p)
		}
	}
	if len(anchors) < 2 {
		return 0
	}

	rate, ok := localRate(anchors[0], anchors[len(anchors)-1])
	if !ok {
		return 0
	}
	return rate
}
