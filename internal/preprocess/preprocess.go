// Package preprocess turns a decoded photo into the fixed-shape input tensor
// a model expects.
package preprocess

import (
	"errors"
	"image"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/fer-demo/internal/model"
	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

var ErrEmptyImage = errors.New("image has no pixels")

type Preprocessor struct {
	spec model.InputSpec
}

func New(spec model.InputSpec) (*Preprocessor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Preprocessor{spec: spec}, nil
}

// Tensor resizes img to the configured square size with bilinear sampling,
// scales pixels to [0,1] and writes them into an arena-owned tensor with a
// leading batch dimension of 1. Single-channel inputs use the mean of R, G
// and B.
func (p *Preprocessor) Tensor(a *tensor.Arena, img image.Image) (*tensor.Tensor, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	size := p.spec.Size
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	out, err := a.Alloc(p.spec.Shape()...)
	if err != nil {
		return nil, err
	}

	bounds := resized.Bounds()
	plane := size * size
	channels := p.spec.Channels
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			rNorm := float32(r>>8) / 255.0
			gNorm := float32(g>>8) / 255.0
			bNorm := float32(b>>8) / 255.0

			pixelIndex := y*size + x
			if channels == 1 {
				gray := (rNorm + gNorm + bNorm) / 3
				out.Data[pixelIndex] = gray
				continue
			}
			if p.spec.Layout == model.LayoutNCHW {
				out.Data[pixelIndex] = rNorm
				out.Data[plane+pixelIndex] = gNorm
				out.Data[2*plane+pixelIndex] = bNorm
			} else {
				out.Data[pixelIndex*3] = rNorm
				out.Data[pixelIndex*3+1] = gNorm
				out.Data[pixelIndex*3+2] = bNorm
			}
		}
	}

	return out, nil
}
