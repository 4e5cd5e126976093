package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Labels is the fixed, ordered list of class names. Position i names output i.
type Labels []string

// Metadata describes an exported model artifact. It is read from the JSON
// file that sits next to the ONNX model.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	Layout      Layout   `json:"layout,omitempty"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

func ReadMetadata(path string) (*Metadata, error) {
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &metadata, nil
}

// Mismatches lists disagreements between the artifact's metadata and the
// configured input and labels. Size and layout mismatches are rejected at
// load, these are only reported.
func (m Metadata) Mismatches(spec InputSpec, labels Labels) []string {
	var out []string
	if ch := m.channels(spec.Layout); ch != 0 && ch != int64(spec.Channels) {
		out = append(out, fmt.Sprintf("model input has %d channels but %d are configured", ch, spec.Channels))
	}
	if len(m.Classes) == 0 {
		return out
	}
	if len(m.Classes) != len(labels) {
		return append(out, fmt.Sprintf("model has %d classes but %d labels are configured", len(m.Classes), len(labels)))
	}
	for i, c := range m.Classes {
		if c != labels[i] {
			out = append(out, fmt.Sprintf("model class %d is %q but label %q is configured", i, c, labels[i]))
		}
	}
	return out
}

// channels reads the channel dimension from InputShape, with or without the
// batch dimension. 0 means unknown.
func (m Metadata) channels(layout Layout) int64 {
	shape := m.InputShape
	if len(shape) == 4 {
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return 0
	}
	if layout == LayoutNCHW {
		return shape[0]
	}
	return shape[2]
}

type Layout string

const (
	LayoutNHWC Layout = "nhwc"
	LayoutNCHW Layout = "nchw"
)

// InputSpec is the fixed tensor shape a model accepts: one square image of
// Size pixels with Channels channels, batch dimension 1.
type InputSpec struct {
	Size     int
	Channels int
	Layout   Layout
}

func (s InputSpec) Shape() []int64 {
	n, c := int64(s.Size), int64(s.Channels)
	if s.Layout == LayoutNCHW {
		return []int64{1, c, n, n}
	}
	return []int64{1, n, n, c}
}

func (s InputSpec) Validate() error {
	if s.Size <= 0 {
		return fmt.Errorf("input size must be positive, got %d", s.Size)
	}
	if s.Channels != 1 && s.Channels != 3 {
		return fmt.Errorf("input channels must be 1 or 3, got %d", s.Channels)
	}
	if s.Layout != LayoutNHWC && s.Layout != LayoutNCHW {
		return fmt.Errorf("unknown tensor layout %q", s.Layout)
	}
	return nil
}

type Entry struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Percent renders the score the way the result list shows it: "40.0%".
func (e Entry) Percent() string {
	return FormatPercent(e.Score)
}

func FormatPercent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

type DiagnosticKind string

const (
	DiagLengthMismatch DiagnosticKind = "length_mismatch"
	DiagNonFinite      DiagnosticKind = "non_finite"
)

// Diagnostic is a non-fatal observation made while ranking.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}
