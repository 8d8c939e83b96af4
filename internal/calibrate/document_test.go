package calibrate

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mgpai22/wordsync/internal/transcript"
)

const sampleText = "It was the best of times, it was the worst of times, it was the age of wisdom"

func sampleSession(t *testing.T) *Session {
	t.Helper()
	words := transcript.Words(transcript.Tokenize(sampleText))
	s := NewSession(words, &fakeClock{}, DefaultOptions())
	for _, p := range []struct {
		i  int
		ts float64
	}{{2, 1.1}, {6, 2.9}, {12, 5.4}} {
		if _, err := s.Mark(p.i, p.ts); err != nil {
			t.Fatalf("Mark: %v", err)
		}
	}
	return s
}

func TestExportImportRoundTrip(t *testing.T) {
	s := sampleSession(t)

	doc, err := s.Export(sampleText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.TotalWords != 18 {
		t.Errorf("TotalWords = %d, want 18", doc.TotalWords)
	}
	if doc.Metadata.ManualCount != 3 || len(doc.ManualPoints) != 3 {
		t.Errorf("manual count = %d / %d, want 3", doc.Metadata.ManualCount, len(doc.ManualPoints))
	}
	if doc.Metadata.SessionID != s.ID() {
		t.Errorf("session id = %q, want %q", doc.Metadata.SessionID, s.ID())
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	imported, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	anchors := imported.Anchors()
	if len(anchors) != len(doc.ManualPoints) {
		t.Fatalf("got %d anchors, want %d", len(anchors), len(doc.ManualPoints))
	}
	for i, a := range anchors {
		if a != doc.ManualPoints[i] {
			t.Errorf("anchor %d = %+v, want %+v", i, a, doc.ManualPoints[i])
		}
	}

	_, table, err := imported.Restore(DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i, w := range table {
		orig := doc.SyncMap[i].WordTimestamp
		if w.Word != orig.Word || w.Index != orig.Index {
			t.Errorf("entry %d = %+v, want %+v", i, w, orig)
		}
		if math.Abs(w.Start-orig.Start) > 1e-9 || math.Abs(w.End-orig.End) > 1e-9 {
			t.Errorf("entry %d timing = [%v,%v), want [%v,%v)", i, w.Start, w.End, orig.Start, orig.End)
		}
	}
}

func TestImportIgnoresSerializedInterpolatedValues(t *testing.T) {
	doc, err := sampleSession(t).Export(sampleText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	want := doc.SyncMap[4].Start
	doc.SyncMap[4].Start = 0.001
	doc.SyncMap[4].End = 0.002

	data, _ := json.Marshal(doc)
	imported, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	_, table, err := imported.Restore(DefaultOptions())
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if math.Abs(table[4].Start-want) > 1e-9 {
		t.Errorf("word 4 = %v, want re-interpolated %v", table[4].Start, want)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `{"syncMap": [`},
		{"empty sync map", `{"syncMap": []}`},
		{"unknown confidence", `{"syncMap": [{"word":"a","start":0,"end":1,"index":0,"confidence":"guess"}]}`},
		{"missing confidence", `{"syncMap": [{"word":"a","start":0,"end":1,"index":0}]}`},
		{"out of order", `{"syncMap": [
			{"word":"a","start":0,"end":1,"index":1,"confidence":"manual"},
			{"word":"b","start":1,"end":2,"index":0,"confidence":"manual"}]}`},
		{"manual goes backwards", `{"syncMap": [
			{"word":"a","start":3,"end":4,"index":0,"confidence":"manual"},
			{"word":"b","start":1,"end":2,"index":1,"confidence":"manual"}]}`},
		{"no manual entries", `{"syncMap": [{"word":"a","start":0,"end":1,"index":0,"confidence":"interpolated"}]}`},
		{"total mismatch", `{"totalWords": 3, "syncMap": [{"word":"a","start":0,"end":1,"index":0,"confidence":"manual"}]}`},
		{"transcript mismatch", `{"transcript": "a b", "syncMap": [{"word":"a","start":0,"end":1,"index":0,"confidence":"manual"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestImportWithoutTranscriptUsesSyncMapWords(t *testing.T) {
	doc, err := Import([]byte(`{"syncMap": [
		{"word":"hello","start":0.5,"end":1,"index":0,"confidence":"manual"},
		{"word":"there","start":1,"end":1.4,"index":1,"confidence":"interpolated"}]}`))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	words := doc.Words()
	if strings.Join(words, " ") != "hello there" {
		t.Errorf("words = %v", words)
	}
	if _, _, err := doc.Restore(DefaultOptions()); err != nil {
		t.Errorf("Restore: %v", err)
	}
}

func TestDocumentFileRoundTrip(t *testing.T) {
	doc, err := sampleSession(t).Export(sampleText)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "sync.json")
	if err := doc.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if loaded.TotalWords != doc.TotalWords || loaded.Transcript != sampleText {
		t.Errorf("loaded document differs: %d words", loaded.TotalWords)
	}
}
