package model

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/fer-demo/internal/network"
	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

// Predictor runs one forward pass. Every buffer or runtime value it creates
// for that pass must be owned by a, so it is released with the caller's scope.
type Predictor interface {
	Predict(ctx context.Context, a *tensor.Arena, input *tensor.Tensor) (*tensor.Tensor, error)
	Spec() InputSpec
	Close() error
}

// NetworkPredictor adapts the in-process fallback network.
type NetworkPredictor struct {
	net  *network.Sequential
	spec InputSpec
}

func NewNetworkPredictor(spec InputSpec, classes int, seed int64) (*NetworkPredictor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	net, err := network.NewEmotionNet(spec.Size, spec.Channels, classes, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to build fallback network: %w", err)
	}
	return &NetworkPredictor{net: net, spec: spec}, nil
}

func (p *NetworkPredictor) Spec() InputSpec { return p.spec }

func (p *NetworkPredictor) Summary() string { return p.net.Summary() }

func (p *NetworkPredictor) Predict(ctx context.Context, a *tensor.Arena, input *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x := input
	if p.spec.Layout == LayoutNCHW {
		var err error
		if x, err = toNHWC(a, input); err != nil {
			return nil, err
		}
	}
	out, err := p.net.Predict(a, x)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	return out, nil
}

func (p *NetworkPredictor) Close() error { return nil }

func toNHWC(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 4 {
		return nil, fmt.Errorf("expected NCHW input, got %s", x)
	}
	n, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	out, err := a.Alloc(n, h, w, c)
	if err != nil {
		return nil, err
	}
	plane := int(h * w)
	for b := 0; b < int(n); b++ {
		src := x.Data[b*int(c)*plane:]
		dst := out.Data[b*int(c)*plane:]
		for ch := 0; ch < int(c); ch++ {
			for i := 0; i < plane; i++ {
				dst[i*int(c)+ch] = src[ch*plane+i]
			}
		}
	}
	return out, nil
}
