package imagesource

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecode_ValidPNG(t *testing.T) {
	src := New(1 << 20)
	img, err := src.Decode(Upload{Name: "face.png", ContentType: "image/png", Data: pngBytes(t, 32, 16)})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.Width != 32 || img.Height != 16 {
		t.Errorf("Expected 32x16, got %dx%d", img.Width, img.Height)
	}
	if img.MIME != "image/png" {
		t.Errorf("Expected image/png, got %s", img.MIME)
	}
	if img.Name != "face.png" {
		t.Errorf("Expected name face.png, got %s", img.Name)
	}
}

func TestDecode_Rejections(t *testing.T) {
	valid := pngBytes(t, 4, 4)
	corrupt := append([]byte{}, valid[:16]...)

	tests := []struct {
		name     string
		maxBytes int64
		upload   Upload
		expected error
	}{
		{"empty", 1 << 20, Upload{ContentType: "image/png"}, ErrEmptyUpload},
		{"text declared", 1 << 20, Upload{ContentType: "text/plain", Data: valid}, ErrNotAnImage},
		{"text content", 1 << 20, Upload{ContentType: "image/png", Data: []byte("hello world")}, ErrNotAnImage},
		{"pdf content, no declared type", 1 << 20, Upload{Data: []byte("%PDF-1.4\n%...")}, ErrNotAnImage},
		{"truncated png", 1 << 20, Upload{ContentType: "image/png", Data: corrupt}, ErrDecode},
		{"too large", 1024, Upload{ContentType: "image/png", Data: bytes.Repeat([]byte{0}, 2048)}, ErrUploadTooLarge},
	}

	for _, tt := range tests {
		_, err := New(tt.maxBytes).Decode(tt.upload)
		if !errors.Is(err, tt.expected) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, err)
		}
	}
}

func TestDecode_OctetStreamIsSniffed(t *testing.T) {
	src := New(1 << 20)
	if _, err := src.Decode(Upload{ContentType: "application/octet-stream", Data: pngBytes(t, 4, 4)}); err != nil {
		t.Errorf("Expected sniffed PNG to be accepted, got %v", err)
	}
}

func TestRead_LimitsSize(t *testing.T) {
	src := New(100)
	_, err := src.Read(bytes.NewReader(bytes.Repeat([]byte{1}, 500)), "big.bin", "image/png")
	if !errors.Is(err, ErrUploadTooLarge) {
		t.Errorf("Expected ErrUploadTooLarge, got %v", err)
	}

	src = New(1 << 20)
	img, err := src.Read(bytes.NewReader(pngBytes(t, 8, 8)), "ok.png", "")
	if err != nil || img.Width != 8 {
		t.Errorf("Expected 8px image, got %v %v", img, err)
	}
}

func TestWritePreview_Fits(t *testing.T) {
	src := New(1 << 20)
	img, err := src.Decode(Upload{Data: pngBytes(t, 200, 100)})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	var buf bytes.Buffer
	if err := WritePreview(&buf, img.Image, 50); err != nil {
		t.Fatalf("WritePreview failed: %v", err)
	}
	out, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("Expected 50x25 preview, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestErrorMessagesAreUserFacing(t *testing.T) {
	_, err := New(1 << 20).Decode(Upload{ContentType: "text/plain", Data: []byte("x")})
	if !strings.HasPrefix(err.Error(), "selected file is not an image") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
