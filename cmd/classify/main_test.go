package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("MODEL_PATH", filepath.Join(dir, "missing.onnx"))
	t.Setenv("METADATA_PATH", "")
	t.Setenv("MODEL_INPUT_SIZE", "48")
	return dir
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 120, A: 255})
		}
	}
	path := filepath.Join(dir, "face.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestRun_FallbackModelClassifies(t *testing.T) {
	dir := setTestEnv(t)
	path := writePNG(t, dir)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-image", path, "-top", "3"}, &stdout, &stderr); code != 0 {
		t.Fatalf("Expected exit 0, got %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"[SUCCESS] Trained model unavailable", "[INFO] Image loaded.", "[SUCCESS] Primary prediction:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
	if rows := strings.Count(out, "|"); rows != 6 {
		t.Errorf("Expected 3 chart rows, got output:\n%s", out)
	}
}

func TestRun_NonImageFails(t *testing.T) {
	dir := setTestEnv(t)
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("not a picture"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-image", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("Expected exit 1, got %d", code)
	}
	if !strings.Contains(stdout.String(), "[ERROR] The selected file is not an image.") {
		t.Errorf("Unexpected output:\n%s", stdout.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("Expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "usage:") {
		t.Errorf("Expected usage, got %q", stderr.String())
	}
}
