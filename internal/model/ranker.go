package model

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Ranking is the normalized, sorted output of one detection.
type Ranking struct {
	Entries     []Entry      `json:"entries"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// ZeroTotal is set when the raw scores summed to zero and were left
	// unnormalized.
	ZeroTotal bool `json:"zero_total"`
}

// Rank pairs raw scores with labels, normalizes them to sum to one and sorts
// them highest first. Labels without a score get 0 and extra scores are
// ignored; either case is reported as a diagnostic. Equal scores keep label
// order.
func Rank(raw []float32, labels Labels) Ranking {
	var r Ranking
	if len(raw) != len(labels) {
		r.Diagnostics = append(r.Diagnostics, Diagnostic{
			Kind:    DiagLengthMismatch,
			Message: fmt.Sprintf("model produced %d scores for %d labels", len(raw), len(labels)),
		})
	}

	entries := make([]Entry, len(labels))
	var total float64
	for i, label := range labels {
		var score float64
		if i < len(raw) {
			score = float64(raw[i])
			if math.IsNaN(score) || math.IsInf(score, 0) {
				r.Diagnostics = append(r.Diagnostics, Diagnostic{
					Kind:    DiagNonFinite,
					Message: fmt.Sprintf("score for %q was %v, treated as 0", label, raw[i]),
				})
				score = 0
			}
		}
		entries[i] = Entry{Label: label, Score: score}
		total += score
	}

	divisor := total
	if total == 0 {
		divisor = 1
		r.ZeroTotal = true
	}
	for i := range entries {
		entries[i].Score /= divisor
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	r.Entries = entries
	return r
}

func (r Ranking) Primary() (Entry, bool) {
	if len(r.Entries) == 0 {
		return Entry{}, false
	}
	return r.Entries[0], true
}

// MaxScore is the score of the highlighted row(s).
func (r Ranking) MaxScore() float64 {
	if len(r.Entries) == 0 {
		return 0
	}
	return r.Entries[0].Score
}

func (r Ranking) Summary() string {
	top, ok := r.Primary()
	if !ok {
		return "No prediction available"
	}
	return fmt.Sprintf("Primary prediction: %s (%s)", strings.ToUpper(top.Label), top.Percent())
}
