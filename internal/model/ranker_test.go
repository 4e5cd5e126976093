package model

import (
	"math"
	"testing"
)

var emotions = Labels{"senang", "sedih", "marah", "takut", "netral"}

func sum(r Ranking) float64 {
	var s float64
	for _, e := range r.Entries {
		s += e.Score
	}
	return s
}

func TestRank_Scenario(t *testing.T) {
	r := Rank([]float32{0.1, 0.4, 0.2, 0.1, 0.2}, emotions)

	want := []string{"sedih", "marah", "netral", "senang", "takut"}
	if len(r.Entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(r.Entries))
	}
	for i, label := range want {
		if r.Entries[i].Label != label {
			t.Errorf("position %d: expected %s, got %s", i, label, r.Entries[i].Label)
		}
	}
	if math.Abs(r.Entries[0].Score-0.4) > 1e-6 {
		t.Errorf("Expected sedih 0.4, got %v", r.Entries[0].Score)
	}
	if math.Abs(sum(r)-1) > 1e-6 {
		t.Errorf("Expected sum 1, got %v", sum(r))
	}
	if len(r.Diagnostics) != 0 {
		t.Errorf("Expected no diagnostics, got %v", r.Diagnostics)
	}
	if r.Summary() != "Primary prediction: SEDIH (40.0%)" {
		t.Errorf("Unexpected summary %q", r.Summary())
	}
}

func TestRank_AllZero(t *testing.T) {
	r := Rank([]float32{0, 0, 0, 0, 0}, emotions)

	if !r.ZeroTotal {
		t.Error("Expected ZeroTotal to be set")
	}
	for i, e := range r.Entries {
		if e.Score != 0 {
			t.Errorf("entry %d: expected score 0, got %v", i, e.Score)
		}
		if e.Label != emotions[i] {
			t.Errorf("entry %d: expected original order %s, got %s", i, emotions[i], e.Label)
		}
	}
	top, ok := r.Primary()
	if !ok || top.Label != "senang" || top.Percent() != "0.0%" {
		t.Errorf("Expected senang 0.0%%, got %+v", top)
	}
}

func TestRank_ShortOutput(t *testing.T) {
	r := Rank([]float32{0.5, 0.3, 0.2}, emotions)

	if len(r.Entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(r.Entries))
	}
	if len(r.Diagnostics) != 1 || r.Diagnostics[0].Kind != DiagLengthMismatch {
		t.Fatalf("Expected one length mismatch diagnostic, got %v", r.Diagnostics)
	}
	last := r.Entries[3:]
	if last[0].Label != "takut" || last[1].Label != "netral" || last[0].Score != 0 || last[1].Score != 0 {
		t.Errorf("Expected missing labels at 0 in label order, got %v", last)
	}
}

func TestRank_LongOutputIgnoresExtra(t *testing.T) {
	r := Rank([]float32{1, 1, 1, 1, 1, 100}, emotions)

	if len(r.Entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(r.Entries))
	}
	for _, e := range r.Entries {
		if math.Abs(e.Score-0.2) > 1e-9 {
			t.Errorf("Expected 0.2 for %s, got %v", e.Label, e.Score)
		}
	}
	if len(r.Diagnostics) != 1 {
		t.Errorf("Expected mismatch diagnostic, got %v", r.Diagnostics)
	}
}

func TestRank_Normalizes(t *testing.T) {
	tests := [][]float32{
		{2, 4, 6, 8, 10},
		{0.001, 0, 0, 0, 0},
		{3, 1, 4, 1, 5},
		{1e-8, 2e-8, 3e-8, 4e-8, 5e-8},
	}

	for _, raw := range tests {
		r := Rank(raw, emotions)
		if math.Abs(sum(r)-1) > 1e-6 {
			t.Errorf("Rank(%v) sum = %v, expected 1", raw, sum(r))
		}
		for i := 1; i < len(r.Entries); i++ {
			if r.Entries[i].Score > r.Entries[i-1].Score {
				t.Errorf("Rank(%v) not descending at %d", raw, i)
			}
		}
	}
}

func TestRank_StableTies(t *testing.T) {
	r := Rank([]float32{1, 1, 1, 1, 1}, emotions)
	for i, e := range r.Entries {
		if e.Label != emotions[i] {
			t.Errorf("position %d: expected %s, got %s", i, emotions[i], e.Label)
		}
	}
}

func TestRank_NonFiniteScores(t *testing.T) {
	r := Rank([]float32{float32(math.NaN()), float32(math.Inf(1)), 1, 1, 2}, emotions)

	for _, e := range r.Entries {
		if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
			t.Fatalf("Expected finite scores, got %v", r.Entries)
		}
	}
	if math.Abs(sum(r)-1) > 1e-6 {
		t.Errorf("Expected sum 1, got %v", sum(r))
	}
	if len(r.Diagnostics) != 2 {
		t.Errorf("Expected two non-finite diagnostics, got %v", r.Diagnostics)
	}
}

func TestRank_EmptyLabels(t *testing.T) {
	r := Rank([]float32{1}, nil)
	if len(r.Entries) != 0 {
		t.Errorf("Expected no entries, got %v", r.Entries)
	}
	if _, ok := r.Primary(); ok {
		t.Error("Expected no primary entry")
	}
	if r.Summary() != "No prediction available" {
		t.Errorf("Unexpected summary %q", r.Summary())
	}
}

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0, "0.0%"},
		{1, "100.0%"},
		{0.4, "40.0%"},
		{0.12345, "12.3%"},
	}

	for _, tt := range tests {
		if got := FormatPercent(tt.score); got != tt.expected {
			t.Errorf("FormatPercent(%v) = %q, expected %q", tt.score, got, tt.expected)
		}
	}
}
