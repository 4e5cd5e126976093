package model

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/fer-demo/internal/tensor"
)

type ONNXOptions struct {
	ModelPath    string
	MetadataPath string
	LibraryPath  string
	InputName    string
	OutputName   string
	Spec         InputSpec
	Labels       Labels
	Log          *logrus.Logger
}

// ONNXPredictor serves a trained model artifact through onnxruntime.
type ONNXPredictor struct {
	session  *ort.DynamicAdvancedSession
	Metadata Metadata
	spec     InputSpec
	ownsEnv  bool
}

func NewONNXPredictor(opts ONNXOptions) (*ONNXPredictor, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if err := opts.Spec.Validate(); err != nil {
		return nil, err
	}

	var metadata Metadata
	if opts.MetadataPath != "" {
		meta, err := ReadMetadata(opts.MetadataPath)
		switch {
		case err == nil:
			metadata = *meta
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if metadata.ImageSize != 0 && metadata.ImageSize != opts.Spec.Size {
		return nil, fmt.Errorf("model expects %dpx input but %dpx is configured", metadata.ImageSize, opts.Spec.Size)
	}
	if metadata.Layout != "" && metadata.Layout != opts.Spec.Layout {
		return nil, fmt.Errorf("model expects %s layout but %s is configured", metadata.Layout, opts.Spec.Layout)
	}

	if opts.Log != nil {
		for _, m := range metadata.Mismatches(opts.Spec, opts.Labels) {
			opts.Log.WithField("model", opts.ModelPath).Warn(m)
		}
		if len(metadata.Classes) > 0 {
			opts.Log.WithField("classes", metadata.Classes).Info("Model classes")
		}
	}

	inputName, outputName := opts.InputName, opts.OutputName
	if metadata.InputName != "" {
		inputName = metadata.InputName
	}
	if metadata.OutputName != "" {
		outputName = metadata.OutputName
	}

	ownsEnv := false
	if !ort.IsInitialized() {
		if opts.LibraryPath != "" {
			ort.SetSharedLibraryPath(opts.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		ownsEnv = true
	}

	session, err := ort.NewDynamicAdvancedSession(opts.ModelPath,
		[]string{inputName}, []string{outputName}, nil)
	if err != nil {
		if ownsEnv {
			ort.DestroyEnvironment()
		}
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXPredictor{
		session:  session,
		Metadata: metadata,
		spec:     opts.Spec,
		ownsEnv:  ownsEnv,
	}, nil
}

func (p *ONNXPredictor) Spec() InputSpec { return p.spec }

func (p *ONNXPredictor) Predict(ctx context.Context, a *tensor.Arena, input *tensor.Tensor) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	a.Defer(func() { _ = in.Destroy() })

	outs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{in}, outs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outs[0] == nil {
		return nil, errors.New("no output from model")
	}
	out := outs[0]
	a.Defer(func() { _ = out.Destroy() })

	t, ok := out.(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("model output is not a float32 tensor")
	}

	result, err := a.Alloc(t.GetShape()...)
	if err != nil {
		return nil, err
	}
	copy(result.Data, t.GetData())
	return result, nil
}

func (p *ONNXPredictor) Close() error {
	var err error
	if p.session != nil {
		err = p.session.Destroy()
		p.session = nil
	}
	if p.ownsEnv {
		if envErr := ort.DestroyEnvironment(); envErr != nil && err == nil {
			err = envErr
		}
		p.ownsEnv = false
	}
	return err
}
