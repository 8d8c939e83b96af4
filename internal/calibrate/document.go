package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mgpai22/wordsync/internal/timing"
	"github.com/mgpai22/wordsync/internal/transcript"
)

var ErrInvalidDocument = errors.New("invalid calibration document")

// derived table entry tagged with where its start time came from
type SyncMapEntry struct {
	timing.WordTimestamp
	Confidence Confidence `json:"confidence"`
}

type Metadata struct {
	CreatedAt             time.Time `json:"createdAt"`
	AverageWordsPerSecond float64   `json:"averageWordsPerSecond"`
	ManualCount           int       `json:"manualCount"`
	SessionID             string    `json:"sessionId,omitempty"`
}

// transportable calibration result
type Document struct {
	Transcript   string         `json:"transcript"`
	TotalWords   int            `json:"totalWords"`
	ManualPoints []SyncPoint    `json:"manualPoints"`
	SyncMap      []SyncMapEntry `json:"syncMap"`
	Metadata     Metadata       `json:"metadata"`
}

// Export packages a derived calibration. points must hold one entry per
// word (the output of Interpolate) and table the matching BuildTable output.
func Export(
	text string,
	points []SyncPoint,
	table []timing.WordTimestamp,
	sessionID string,
) (*Document, error) {
	if len(points) != len(table) {
		return nil, fmt.Errorf(
			"have %d sync points for %d table entries",
			len(points),
			len(table),
		)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	doc := &Document{
		Transcript:   text,
		TotalWords:   len(table),
		ManualPoints: []SyncPoint{},
		SyncMap:      make([]SyncMapEntry, len(table)),
	}

	for i, w := range table {
		doc.SyncMap[i] = SyncMapEntry{WordTimestamp: w, Confidence: points[i].Confidence}
		if points[i].Confidence == ConfidenceManual {
			doc.ManualPoints = append(doc.ManualPoints, points[i])
		}
	}

	doc.Metadata = Metadata{
		CreatedAt:             time.Now().UTC(),
		AverageWordsPerSecond: AverageWordsPerSecond(doc.ManualPoints),
		ManualCount:           len(doc.ManualPoints),
		SessionID:             sessionID,
	}

	return doc, nil
}

// Export builds the session's table and packages it with its manual points.
func (s *Session) Export(text string) (*Document, error) {
	points, table, err := s.Build()
	if err != nil {
		return nil, err
	}
	return Export(text, points, table, s.id)
}

// Import parses and checks a document. Malformed data is rejected whole.
func Import(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := doc.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return &doc, nil
}

func (d *Document) check() error {
	if len(d.SyncMap) == 0 {
		return fmt.Errorf("syncMap is empty")
	}
	if d.TotalWords != 0 && d.TotalWords != len(d.SyncMap) {
		return fmt.Errorf(
			"totalWords is %d but syncMap has %d entries",
			d.TotalWords,
			len(d.SyncMap),
		)
	}
	if d.Transcript != "" {
		if n := len(transcript.Tokenize(d.Transcript)); n != len(d.SyncMap) {
			return fmt.Errorf(
				"transcript has %d words but syncMap has %d entries",
				n,
				len(d.SyncMap),
			)
		}
	}

	manual := 0
	var prev *SyncMapEntry
	for i := range d.SyncMap {
		e := &d.SyncMap[i]
		if e.Index != i {
			return fmt.Errorf("syncMap entry %d carries index %d (entries must be in word order)", i, e.Index)
		}
		if !e.Confidence.Valid() {
			return fmt.Errorf("syncMap entry %d has unknown confidence %q", i, e.Confidence)
		}
		if e.Confidence != ConfidenceManual {
			continue
		}
		manual++
		if e.Start < 0 {
			return fmt.Errorf("manual entry %d has negative start %.3f", i, e.Start)
		}
		if prev != nil && e.Start <= prev.Start {
			return fmt.Errorf(
				"manual entry %d (%.3fs) is not after manual entry %d (%.3fs)",
				i,
				e.Start,
				prev.Index,
				prev.Start,
			)
		}
		prev = e
	}
	if manual == 0 {
		return fmt.Errorf("syncMap has no manual entries")
	}

	return nil
}

// transcript words, taken from the transcript text when present
func (d *Document) Words() []string {
	if d.Transcript != "" {
		return transcript.Words(transcript.Tokenize(d.Transcript))
	}

	words := make([]string, len(d.SyncMap))
	for i, e := range d.SyncMap {
		words[i] = e.Word
	}
	return words
}

// anchors trusted on reload: syncMap entries tagged manual
func (d *Document) Anchors() []SyncPoint {
	var out []SyncPoint
	for _, e := range d.SyncMap {
		if e.Confidence != ConfidenceManual {
			continue
		}
		out = append(out, SyncPoint{
			WordIndex:  e.Index,
			Word:       e.Word,
			Timestamp:  e.Start,
			Confidence: ConfidenceManual,
		})
	}
	return out
}

// Restore re-runs interpolation from the document's anchors; the serialized
// interpolated values are never reused.
func (d *Document) Restore(opts Options) ([]SyncPoint, []timing.WordTimestamp, error) {
	return Derive(d.Anchors(), d.Words(), opts)
}

func (d *Document) WriteFile(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode calibration document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calibration document: %w", err)
	}
	return Import(data)
}
