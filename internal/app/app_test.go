package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/fer-demo/internal/config"
	"github.com/Brownie44l1/fer-demo/internal/logger"
	"github.com/Brownie44l1/fer-demo/internal/model"
	"github.com/Brownie44l1/fer-demo/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:           8080,
		Env:            "test",
		ModelPath:      filepath.Join(t.TempDir(), "missing.onnx"),
		InputName:      "input",
		OutputName:     "output",
		InputSize:      48,
		Layout:         "nchw",
		Labels:         config.DefaultLabels,
		FallbackSeed:   7,
		MaxUploadBytes: 1 << 20,
		LogLevel:       "error",
	}
}

func TestProviderOptions(t *testing.T) {
	opts := ProviderOptions(testConfig(t))
	if opts.Classes != 5 || opts.FallbackSeed != 7 {
		t.Errorf("Unexpected options %+v", opts)
	}
	spec := opts.ONNX.Spec
	if spec.Size != 48 || spec.Channels != 1 || spec.Layout != model.LayoutNCHW {
		t.Errorf("Unexpected input spec %+v", spec)
	}
	if opts.ONNX.InputName != "input" || opts.ONNX.OutputName != "output" {
		t.Errorf("Unexpected tensor names %+v", opts.ONNX)
	}
}

func TestLoadModel_FallsBackWithoutArtifact(t *testing.T) {
	a := New(testConfig(t), logger.Discard())
	defer a.Close()

	res, err := a.LoadModel(context.Background())
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if res.Kind != model.LoadFallback {
		t.Fatalf("Expected fallback, got %v (%v)", res.Kind, res.Reason)
	}
	snap := a.Session().Snapshot()
	if !snap.ModelReady || snap.Model != "fallback" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}

	if _, err := a.LoadModel(context.Background()); !errors.Is(err, session.ErrModelAlreadyLoaded) {
		t.Errorf("Expected ErrModelAlreadyLoaded on a second load, got %v", err)
	}
}
