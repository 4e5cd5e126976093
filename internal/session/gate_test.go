package session

import (
	"errors"
	"testing"
)

func TestGate_TruthTable(t *testing.T) {
	tests := []struct {
		model, image bool
		canDetect    bool
		err          error
	}{
		{false, false, false, ErrModelNotReady},
		{false, true, false, ErrModelNotReady},
		{true, false, false, ErrImageNotUploaded},
		{true, true, true, nil},
	}

	for _, tt := range tests {
		g := NewGate(nil)
		if tt.model {
			g.MarkModelReady()
		}
		g.SetImageReady(tt.image)
		if g.CanDetect() != tt.canDetect {
			t.Errorf("model=%v image=%v: CanDetect = %v, expected %v", tt.model, tt.image, g.CanDetect(), tt.canDetect)
		}
		if err := g.Check(); !errors.Is(err, tt.err) {
			t.Errorf("model=%v image=%v: Check = %v, expected %v", tt.model, tt.image, err, tt.err)
		}
	}
}

func TestGate_ImageOscillates(t *testing.T) {
	var seen []bool
	g := NewGate(func(can bool) { seen = append(seen, can) })

	g.SetImageReady(true)
	g.SetImageReady(false)
	g.MarkModelReady()
	g.SetImageReady(true)
	g.SetImageReady(false)
	g.SetImageReady(true)

	want := []bool{false, false, false, true, false, true}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d notifications, got %v", len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("notification %d = %v, expected %v", i, seen[i], want[i])
		}
	}
}

func TestGate_ModelReadyIsOneWay(t *testing.T) {
	calls := 0
	g := NewGate(func(bool) { calls++ })
	g.MarkModelReady()
	g.MarkModelReady()

	if !g.ModelReady() {
		t.Error("Expected model ready")
	}
	if calls != 1 {
		t.Errorf("Expected a single notification, got %d", calls)
	}
}
