// Package app wires configuration, the model provider and the session into
// the page server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/config"
	"github.com/Brownie44l1/fer-demo/internal/handlers"
	"github.com/Brownie44l1/fer-demo/internal/hub"
	"github.com/Brownie44l1/fer-demo/internal/imagesource"
	"github.com/Brownie44l1/fer-demo/internal/model"
	"github.com/Brownie44l1/fer-demo/internal/session"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	log      *logrus.Logger
	provider *model.Provider
	session  *session.Session
	hub      *hub.Hub
}

func New(cfg *config.Config, log *logrus.Logger) *App {
	return &App{
		config:   cfg,
		log:      log,
		provider: model.NewProvider(ProviderOptions(cfg), log),
		session: session.New(session.Options{
			Labels: cfg.Labels,
			Images: imagesource.New(cfg.MaxUploadBytes),
			Logger: log,
		}),
		hub: hub.New(log),
	}
}

// ProviderOptions maps configuration onto the model provider.
func ProviderOptions(cfg *config.Config) model.ProviderOptions {
	return model.ProviderOptions{
		ONNX: model.ONNXOptions{
			ModelPath:    cfg.ModelPath,
			MetadataPath: cfg.MetadataPath,
			LibraryPath:  cfg.ORTLibraryPath,
			InputName:    cfg.InputName,
			OutputName:   cfg.OutputName,
			Labels:       cfg.Labels,
			Spec: model.InputSpec{
				Size:     cfg.InputSize,
				Channels: cfg.Channels(),
				Layout:   model.Layout(cfg.Layout),
			},
		},
		Classes:      len(cfg.Labels),
		FallbackSeed: cfg.FallbackSeed,
	}
}

func (a *App) Session() *session.Session { return a.session }

// LoadModel blocks until the provider has settled on a model.
func (a *App) LoadModel(ctx context.Context) (model.LoadResult, error) {
	return a.session.LoadModel(ctx, a.provider)
}

// Run serves the page until ctx is cancelled. The model loads in the
// background so the page is reachable while it loads.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	a.session.Subscribe(a.hub.Publish)
	go func() {
		if _, err := a.LoadModel(ctx); err != nil {
			a.log.WithField("error", err.Error()).Warn("Model load skipped")
		}
	}()

	mux := http.NewServeMux()
	handlers.NewHandler(a.session, a.hub, a.config.MaxUploadBytes, a.log).Register(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           handlers.RequestLogger(a.log, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.WithFields(logrus.Fields{
		"port":    a.config.Port,
		"model":   a.config.ModelPath,
		"classes": strings.Join(a.config.Labels, ","),
		"input":   fmt.Sprintf("%dx%dx%d %s", a.config.InputSize, a.config.InputSize, a.config.Channels(), a.config.Layout),
	}).Info("Server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() error {
	return a.session.Close()
}
