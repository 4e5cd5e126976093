package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/Brownie44l1/fer-demo/internal/app"
	"github.com/Brownie44l1/fer-demo/internal/config"
	"github.com/Brownie44l1/fer-demo/internal/logger"
	"github.com/Brownie44l1/fer-demo/internal/presenter"
	"github.com/Brownie44l1/fer-demo/internal/session"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	imagePath := fs.String("image", "", "Path to the face photo to classify")
	top := fs.Int("top", 0, "Number of rows to print (0 prints all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *imagePath == "" {
		fmt.Fprintln(stderr, "usage: classify -image face.jpg [-top N]")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	log := logger.New(cfg)

	application := app.New(cfg, log)
	defer application.Close()
	s := application.Session()

	var last session.Status
	s.Subscribe(func(snap session.Snapshot) {
		if snap.Status != last && snap.Status.Message != "" {
			last = snap.Status
			presenter.WriteStatus(stdout, snap.Status)
		}
	})

	ctx := context.Background()
	if _, err := application.LoadModel(ctx); err != nil {
		fmt.Fprintf(stderr, "Failed to load model: %v\n", err)
		return 1
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read %s: %v\n", *imagePath, err)
		return 1
	}
	defer f.Close()
	if info, err := f.Stat(); err == nil {
		fmt.Fprintf(stdout, "Read %s (%s)\n", filepath.Base(*imagePath), humanize.Bytes(uint64(info.Size())))
	}

	if err := s.ReadUpload(f, filepath.Base(*imagePath), ""); err != nil {
		return 1
	}
	ranking, err := s.Detect(ctx)
	if err != nil {
		return 1
	}

	if err := presenter.WriteChart(stdout, presenter.Rows(ranking), *top); err != nil {
		return 1
	}
	return 0
}
