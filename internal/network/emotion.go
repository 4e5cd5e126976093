package network

import "fmt"

// NewEmotionNet builds and compiles the untrained placeholder classifier:
// two conv/pool blocks, a 32-unit hidden layer and a softmax head.
func NewEmotionNet(size, channels, classes int, seed int64) (*Sequential, error) {
	if classes <= 0 {
		return nil, fmt.Errorf("emotion net needs at least one class, got %d", classes)
	}
	net := NewSequential().
		Add(&Conv2D{Filters: 8, KernelSize: 3, Activation: ReLU}).
		Add(&MaxPool2D{PoolSize: 2, Strides: 2}).
		Add(&Conv2D{Filters: 16, KernelSize: 3, Activation: ReLU}).
		Add(&MaxPool2D{PoolSize: 2, Strides: 2}).
		Add(&Flatten{}).
		Add(&Dense{Units: 32, Activation: ReLU}).
		Add(&Dense{Units: classes, Activation: Softmax})

	if err := net.Build([]int{size, size, channels}, seed); err != nil {
		return nil, err
	}
	if err := net.Compile(CompileOptions{
		Optimizer: NewAdam(1e-3),
		Loss:      CategoricalCrossentropy,
		Metrics:   []string{"accuracy"},
	}); err != nil {
		return nil, err
	}
	return net, nil
}
