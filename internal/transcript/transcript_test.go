package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTokenize(t *testing.T) {
	text := "  Call me\tIshmael.\n\nSome years ago—never mind "
	tokens := Tokenize(text)

	want := []string{"Call", "me", "Ishmael.", "Some", "years", "ago—never", "mind"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, tok := range tokens {
		if tok.Text != want[i] {
			t.Errorf("token %d = %q, want %q", i, tok.Text, want[i])
		}
		if text[tok.Start:tok.End] != tok.Text {
			t.Errorf("token %d offsets [%d,%d) do not slice to %q", i, tok.Start, tok.End, tok.Text)
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize(" \n\t "); len(got) != 0 {
		t.Errorf("expected no tokens, got %+v", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ishmael.", "ishmael"},
		{"\"Hello,\"", "hello"},
		{"don't", "dont"},
		{"1984", "1984"},
		{"Éclair!", "éclair"},
		{"—", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMapEntities(t *testing.T) {
	text := "Captain Ahab sailed the Pequod from Nantucket."
	tokens := Tokenize(text)

	spans := []EntitySpan{
		{Text: "Nantucket", Start: 36, End: 45, Category: "place"},
		{Text: "Captain Ahab", Start: 0, End: 12, Category: "person"},
		{Text: "Pequod", Start: 24, End: 30, Category: "ship"},
		{Text: "bogus", Start: 200, End: 210, Category: "none"},
		{Text: "empty", Start: 5, End: 5, Category: "none"},
	}

	overlays, skipped := MapEntities(tokens, spans)
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(overlays) != 3 {
		t.Fatalf("got %d overlays, want 3", len(overlays))
	}

	if overlays[0].FirstWord != 0 || overlays[0].LastWord != 1 {
		t.Errorf("Captain Ahab -> [%d,%d], want [0,1]", overlays[0].FirstWord, overlays[0].LastWord)
	}
	if overlays[1].FirstWord != 4 || overlays[1].LastWord != 4 {
		t.Errorf("Pequod -> [%d,%d], want [4,4]", overlays[1].FirstWord, overlays[1].LastWord)
	}
	if overlays[2].FirstWord != 6 || overlays[2].LastWord != 6 {
		t.Errorf("Nantucket -> [%d,%d], want [6,6]", overlays[2].FirstWord, overlays[2].LastWord)
	}

	cats := CategoryByWord(overlays)
	if cats[1] != "person" || cats[4] != "ship" {
		t.Errorf("unexpected categories: %v", cats)
	}
	if _, ok := cats[2]; ok {
		t.Error("word 2 should not be an entity")
	}
}

func TestLoadEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.json")
	content := `[{"text":"Ahab","start":8,"end":12,"category":"person"}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	spans, err := LoadEntities(path)
	if err != nil {
		t.Fatalf("LoadEntities: %v", err)
	}
	if len(spans) != 1 || spans[0].Category != "person" || spans[0].End != 12 {
		t.Errorf("unexpected spans: %+v", spans)
	}

	if _, err := LoadEntities(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
