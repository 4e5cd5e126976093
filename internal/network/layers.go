package network

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

// Activation names accepted by Conv2D and Dense.
const (
	Linear  = "linear"
	ReLU    = "relu"
	Softmax = "softmax"
)

// Layer is one stage of a Sequential network. Shapes passed to build
// exclude the batch dimension.
type Layer interface {
	Name() string
	ParamCount() int
	build(in []int, rng *rand.Rand) ([]int, error)
	forward(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error)
}

// Conv2D is a stride-1 convolution over NHWC input with "same" padding.
type Conv2D struct {
	Filters    int
	KernelSize int
	Activation string

	inH, inW, inC int
	weights       []float32 // [ky][kx][ic][oc]
	bias          []float32
}

func (l *Conv2D) Name() string {
	return fmt.Sprintf("conv2d(%d,%dx%d,%s)", l.Filters, l.KernelSize, l.KernelSize, l.Activation)
}

func (l *Conv2D) ParamCount() int { return len(l.weights) + len(l.bias) }

func (l *Conv2D) build(in []int, rng *rand.Rand) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("conv2d expects HWC input, got %v", in)
	}
	if l.Filters <= 0 || l.KernelSize <= 0 || l.KernelSize%2 == 0 {
		return nil, fmt.Errorf("conv2d needs positive filters and an odd kernel, got %d/%d", l.Filters, l.KernelSize)
	}
	if err := checkActivation(l.Activation); err != nil {
		return nil, err
	}
	l.inH, l.inW, l.inC = in[0], in[1], in[2]
	k := l.KernelSize
	l.weights = glorotUniform(rng, k*k*l.inC*l.Filters, k*k*l.inC, k*k*l.Filters)
	l.bias = make([]float32, l.Filters)
	return []int{l.inH, l.inW, l.Filters}, nil
}

func (l *Conv2D) forward(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	batch, err := checkInput(x, l.inH, l.inW, l.inC)
	if err != nil {
		return nil, err
	}
	out, err := a.Alloc(int64(batch), int64(l.inH), int64(l.inW), int64(l.Filters))
	if err != nil {
		return nil, err
	}

	k, pad := l.KernelSize, l.KernelSize/2
	H, W, C, F := l.inH, l.inW, l.inC, l.Filters
	for b := 0; b < batch; b++ {
		for y := 0; y < H; y++ {
			for xx := 0; xx < W; xx++ {
				o := ((b*H+y)*W + xx) * F
				px := out.Data[o : o+F]
				copy(px, l.bias)
				for ky := 0; ky < k; ky++ {
					iy := y + ky - pad
					if iy < 0 || iy >= H {
						continue
					}
					for kx := 0; kx < k; kx++ {
						ix := xx + kx - pad
						if ix < 0 || ix >= W {
							continue
						}
						i := ((b*H+iy)*W + ix) * C
						w := ((ky*k + kx) * C) * F
						for ic := 0; ic < C; ic++ {
							v := x.Data[i+ic]
							if v == 0 {
								continue
							}
							row := l.weights[w+ic*F : w+(ic+1)*F]
							for f := range px {
								px[f] += v * row[f]
							}
						}
					}
				}
				activate(l.Activation, px)
			}
		}
	}
	return out, nil
}

// MaxPool2D uses "valid" padding.
type MaxPool2D struct {
	PoolSize int
	Strides  int

	inH, inW, inC int
	outH, outW    int
}

func (l *MaxPool2D) Name() string { return fmt.Sprintf("max_pooling2d(%dx%d)", l.PoolSize, l.PoolSize) }

func (l *MaxPool2D) ParamCount() int { return 0 }

func (l *MaxPool2D) build(in []int, _ *rand.Rand) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("max_pooling2d expects HWC input, got %v", in)
	}
	if l.Strides == 0 {
		l.Strides = l.PoolSize
	}
	if l.PoolSize <= 0 || l.Strides <= 0 {
		return nil, fmt.Errorf("max_pooling2d needs a positive pool size, got %d", l.PoolSize)
	}
	l.inH, l.inW, l.inC = in[0], in[1], in[2]
	if l.inH < l.PoolSize || l.inW < l.PoolSize {
		return nil, fmt.Errorf("max_pooling2d input %dx%d smaller than pool %d", l.inH, l.inW, l.PoolSize)
	}
	l.outH = (l.inH-l.PoolSize)/l.Strides + 1
	l.outW = (l.inW-l.PoolSize)/l.Strides + 1
	return []int{l.outH, l.outW, l.inC}, nil
}

func (l *MaxPool2D) forward(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	batch, err := checkInput(x, l.inH, l.inW, l.inC)
	if err != nil {
		return nil, err
	}
	out, err := a.Alloc(int64(batch), int64(l.outH), int64(l.outW), int64(l.inC))
	if err != nil {
		return nil, err
	}
	C := l.inC
	for b := 0; b < batch; b++ {
		for oy := 0; oy < l.outH; oy++ {
			for ox := 0; ox < l.outW; ox++ {
				o := ((b*l.outH+oy)*l.outW + ox) * C
				for c := 0; c < C; c++ {
					best := float32(math.Inf(-1))
					for py := 0; py < l.PoolSize; py++ {
						for px := 0; px < l.PoolSize; px++ {
							iy, ix := oy*l.Strides+py, ox*l.Strides+px
							if v := x.Data[((b*l.inH+iy)*l.inW+ix)*C+c]; v > best {
								best = v
							}
						}
					}
					out.Data[o+c] = best
				}
			}
		}
	}
	return out, nil
}

// Flatten collapses everything but the batch dimension.
type Flatten struct {
	size int
}

func (l *Flatten) Name() string { return "flatten" }

func (l *Flatten) ParamCount() int { return 0 }

func (l *Flatten) build(in []int, _ *rand.Rand) ([]int, error) {
	l.size = 1
	for _, d := range in {
		l.size *= d
	}
	return []int{l.size}, nil
}

func (l *Flatten) forward(_ *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	batch := int(x.Shape[0])
	if len(x.Data) != batch*l.size {
		return nil, fmt.Errorf("flatten expects %d values per sample, got %s", l.size, x)
	}
	return &tensor.Tensor{Shape: []int64{int64(batch), int64(l.size)}, Data: x.Data}, nil
}

type Dense struct {
	Units      int
	Activation string

	in      int
	weights []float32 // [in][units]
	bias    []float32
}

func (l *Dense) Name() string { return fmt.Sprintf("dense(%d,%s)", l.Units, l.Activation) }

func (l *Dense) ParamCount() int { return len(l.weights) + len(l.bias) }

func (l *Dense) build(in []int, rng *rand.Rand) ([]int, error) {
	if len(in) != 1 {
		return nil, fmt.Errorf("dense expects flat input, got %v", in)
	}
	if l.Units <= 0 {
		return nil, fmt.Errorf("dense needs positive units, got %d", l.Units)
	}
	if err := checkActivation(l.Activation); err != nil {
		return nil, err
	}
	l.in = in[0]
	l.weights = glorotUniform(rng, l.in*l.Units, l.in, l.Units)
	l.bias = make([]float32, l.Units)
	return []int{l.Units}, nil
}

func (l *Dense) forward(a *tensor.Arena, x *tensor.Tensor) (*tensor.Tensor, error) {
	if len(x.Shape) != 2 || int(x.Shape[1]) != l.in {
		return nil, fmt.Errorf("dense expects [batch %d], got %s", l.in, x)
	}
	batch := int(x.Shape[0])
	out, err := a.Alloc(int64(batch), int64(l.Units))
	if err != nil {
		return nil, err
	}
	for b := 0; b < batch; b++ {
		row := out.Data[b*l.Units : (b+1)*l.Units]
		copy(row, l.bias)
		for i, v := range x.Data[b*l.in : (b+1)*l.in] {
			if v == 0 {
				continue
			}
			w := l.weights[i*l.Units : (i+1)*l.Units]
			for u := range row {
				row[u] += v * w[u]
			}
		}
		activate(l.Activation, row)
	}
	return out, nil
}

func checkInput(x *tensor.Tensor, h, w, c int) (int, error) {
	if len(x.Shape) != 4 || int(x.Shape[1]) != h || int(x.Shape[2]) != w || int(x.Shape[3]) != c {
		return 0, fmt.Errorf("expected [batch %d %d %d] input, got %s", h, w, c, x)
	}
	return int(x.Shape[0]), nil
}

func checkActivation(name string) error {
	switch name {
	case Linear, ReLU, Softmax, "":
		return nil
	}
	return fmt.Errorf("unknown activation %q", name)
}

func activate(name string, v []float32) {
	switch name {
	case ReLU:
		for i, x := range v {
			if x < 0 {
				v[i] = 0
			}
		}
	case Softmax:
		softmax(v)
	}
}

func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	hi := v[0]
	for _, x := range v[1:] {
		if x > hi {
			hi = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - hi))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}

func glorotUniform(rng *rand.Rand, n, fanIn, fanOut int) []float32 {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	w := make([]float32, n)
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
	return w
}
