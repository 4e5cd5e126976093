// Package network is a small in-process convolutional network used when no
// trained model artifact can be loaded. It only runs forward passes; the
// compile options are recorded so the network mirrors what a trainer would
// be configured with.
package network

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

var (
	ErrNotBuilt   = errors.New("network is not built")
	ErrNoLayers   = errors.New("network has no layers")
	ErrBuiltTwice = errors.New("network is already built")
)

type Sequential struct {
	layers      []Layer
	inputShape  []int
	outputShape []int
	built       bool
	compiled    *CompileOptions
}

func NewSequential() *Sequential {
	return &Sequential{}
}

func (s *Sequential) Add(l Layer) *Sequential {
	s.layers = append(s.layers, l)
	return s
}

// Build infers every layer's shape from inputShape (HWC, no batch) and
// initialises weights from seed.
func (s *Sequential) Build(inputShape []int, seed int64) error {
	if s.built {
		return ErrBuiltTwice
	}
	if len(s.layers) == 0 {
		return ErrNoLayers
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	shape := append([]int(nil), inputShape...)
	for i, l := range s.layers {
		next, err := l.build(shape, rng)
		if err != nil {
			return fmt.Errorf("layer %d %s: %w", i, l.Name(), err)
		}
		shape = next
	}
	s.inputShape = append([]int(nil), inputShape...)
	s.outputShape = shape
	s.built = true
	return nil
}

func (s *Sequential) Compile(opts CompileOptions) error {
	if !s.built {
		return ErrNotBuilt
	}
	if err := opts.validate(); err != nil {
		return err
	}
	s.compiled = &opts
	return nil
}

func (s *Sequential) Compiled() (CompileOptions, bool) {
	if s.compiled == nil {
		return CompileOptions{}, false
	}
	return *s.compiled, true
}

func (s *Sequential) OutputShape() []int { return append([]int(nil), s.outputShape...) }

func (s *Sequential) ParamCount() int {
	n := 0
	for _, l := range s.layers {
		n += l.ParamCount()
	}
	return n
}

// Predict runs a forward pass. Intermediate activations are allocated from a
// and released with it.
func (s *Sequential) Predict(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	if !s.built {
		return nil, ErrNotBuilt
	}
	out := x
	for i, l := range s.layers {
		next, err := l.forward(a, out)
		if err != nil {
			return nil, fmt.Errorf("layer %d %s: %w", i, l.Name(), err)
		}
		out = next
	}
	return out, nil
}

func (s *Sequential) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "input %v\n", s.inputShape)
	for i, l := range s.layers {
		fmt.Fprintf(&b, "%2d %-28s params=%d\n", i, l.Name(), l.ParamCount())
	}
	fmt.Fprintf(&b, "total params=%d", s.ParamCount())
	return b.String()
}
