package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoadKind tags how a model became available.
type LoadKind int

const (
	LoadReady LoadKind = iota
	LoadFallback
	LoadUnavailable
)

func (k LoadKind) String() string {
	switch k {
	case LoadReady:
		return "ready"
	case LoadFallback:
		return "fallback"
	case LoadUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// LoadResult is the outcome of Provider.Load. Predictor is nil only for
// LoadUnavailable. Reason holds the artifact error for LoadFallback and the
// fallback error for LoadUnavailable.
type LoadResult struct {
	Kind      LoadKind
	Predictor Predictor
	Reason    error
}

// Loader produces a predictor or fails.
type Loader func(ctx context.Context) (Predictor, error)

type Provider struct {
	primary  Loader
	fallback Loader
	log      *logrus.Logger
}

type ProviderOptions struct {
	ONNX         ONNXOptions
	Classes      int
	FallbackSeed int64
}

// NewProvider tries the ONNX artifact first and the in-process emotion
// network second.
func NewProvider(opts ProviderOptions, log *logrus.Logger) *Provider {
	if opts.ONNX.Log == nil {
		opts.ONNX.Log = log
	}
	primary := func(ctx context.Context) (Predictor, error) {
		return NewONNXPredictor(opts.ONNX)
	}
	fallback := func(ctx context.Context) (Predictor, error) {
		p, err := NewNetworkPredictor(opts.ONNX.Spec, opts.Classes, opts.FallbackSeed)
		if err != nil {
			return nil, err
		}
		log.WithField("seed", opts.FallbackSeed).Debugf("fallback network:\n%s", p.Summary())
		return p, nil
	}
	return NewProviderWith(primary, fallback, log)
}

func NewProviderWith(primary, fallback Loader, log *logrus.Logger) *Provider {
	return &Provider{primary: primary, fallback: fallback, log: log}
}

// Load tries the artifact, then the fallback. onFallback, when set, is called
// with the artifact error before the fallback is built.
func (p *Provider) Load(ctx context.Context, onFallback func(reason error)) LoadResult {
	if err := ctx.Err(); err != nil {
		return LoadResult{Kind: LoadUnavailable, Reason: err}
	}

	primaryErr := errors.New("no model artifact configured")
	if p.primary != nil {
		pred, err := p.primary(ctx)
		if err == nil {
			p.log.Info("Model artifact loaded")
			return LoadResult{Kind: LoadReady, Predictor: pred}
		}
		primaryErr = err
	}
	p.log.WithField("error", primaryErr.Error()).Warn("Failed to load model artifact, building fallback network")

	if onFallback != nil {
		onFallback(primaryErr)
	}
	if p.fallback == nil {
		return LoadResult{Kind: LoadUnavailable, Reason: fmt.Errorf("no fallback configured: %w", primaryErr)}
	}
	pred, err := p.fallback(ctx)
	if err != nil {
		p.log.WithField("error", err.Error()).Error("Failed to build fallback network")
		return LoadResult{Kind: LoadUnavailable, Reason: err}
	}
	p.log.Info("Fallback network ready")
	return LoadResult{Kind: LoadFallback, Predictor: pred, Reason: primaryErr}
}
