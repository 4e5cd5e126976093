package network

import "fmt"

const CategoricalCrossentropy = "categorical_crossentropy"

type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

func NewAdam(lr float64) Adam {
	return Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

type CompileOptions struct {
	Optimizer Adam
	Loss      string
	Metrics   []string
}

func (o CompileOptions) validate() error {
	if o.Optimizer.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", o.Optimizer.LearningRate)
	}
	if o.Loss != CategoricalCrossentropy {
		return fmt.Errorf("unsupported loss %q", o.Loss)
	}
	for _, m := range o.Metrics {
		if m != "accuracy" {
			return fmt.Errorf("unsupported metric %q", m)
		}
	}
	return nil
}
