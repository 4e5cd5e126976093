package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/app"
	"github.com/Brownie44l1/fer-demo/internal/config"
	"github.com/Brownie44l1/fer-demo/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, log)
	defer application.Close()

	log.Infof("Upload test: curl -H 'Accept: application/json' -F \"image=@face.jpg\" http://localhost:%d/upload", cfg.Port)

	if err := application.Run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
