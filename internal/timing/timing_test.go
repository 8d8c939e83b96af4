package timing

import (
	"math"
	"testing"
)

func TestEvenSplit(t *testing.T) {
	words := []string{"one", "two", "three", "four"}
	table, err := EvenSplit(words, 10)
	if err != nil {
		t.Fatalf("EvenSplit: %v", err)
	}

	if len(table) != 4 {
		t.Fatalf("got %d entries, want 4", len(table))
	}
	if err := Validate(table); err != nil {
		t.Fatalf("EvenSplit produced invalid table: %v", err)
	}

	if table[2].Start != 5 || table[2].Word != "three" {
		t.Errorf("entry 2 = %+v", table[2])
	}
	if table[3].End != 10 {
		t.Errorf("last end = %v, want 10", table[3].End)
	}
}

func TestEvenSplitNonOverlapOnAwkwardDurations(t *testing.T) {
	words := make([]string, 997)
	for i := range words {
		words[i] = "w"
	}

	for _, total := range []float64{0.3, 1, 7.77, 3601.123} {
		table, err := EvenSplit(words, total)
		if err != nil {
			t.Fatalf("EvenSplit(%v): %v", total, err)
		}
		for i := 1; i < len(table); i++ {
			if table[i-1].End > table[i].Start {
				t.Fatalf("total %v: overlap at %d", total, i)
			}
		}
		if math.Abs(table[len(table)-1].End-total) > 1e-9 {
			t.Errorf("total %v: last end %v", total, table[len(table)-1].End)
		}
	}
}

func TestEvenSplitErrors(t *testing.T) {
	if _, err := EvenSplit([]string{"a"}, 0); err == nil {
		t.Error("expected error for zero duration")
	}

	table, err := EvenSplit(nil, 0)
	if err != nil {
		t.Fatalf("empty words: %v", err)
	}
	if len(table) != 0 {
		t.Errorf("empty words produced %d entries", len(table))
	}
}

func TestSpread(t *testing.T) {
	got := Spread("  hello big\tworld ", 10, 13)
	want := []TimedWord{
		{Text: "hello", Start: 10, End: 11},
		{Text: "big", Start: 11, End: 12},
		{Text: "world", Start: 12, End: 13},
	}
	if len(got) != len(want) {
		t.Fatalf("Spread() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if out := Spread("", 0, 1); out != nil {
		t.Errorf("Spread(empty) = %v, want nil", out)
	}
	if out := Spread("a b", 2, 2); out != nil {
		t.Errorf("Spread(zero length) = %v, want nil", out)
	}
}
