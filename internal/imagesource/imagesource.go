// Package imagesource validates and decodes user uploads.
package imagesource

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmptyUpload    = errors.New("no file selected")
	ErrUploadTooLarge = errors.New("file size exceeds limit")
	ErrNotAnImage     = errors.New("selected file is not an image")
	ErrDecode         = errors.New("failed to read image file")
)

type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

type Image struct {
	Name   string
	MIME   string
	Image  image.Image
	Width  int
	Height int
}

type Source struct {
	maxBytes int64
}

func New(maxBytes int64) *Source {
	return &Source{maxBytes: maxBytes}
}

// Read consumes at most the size limit plus one byte from r so oversized
// uploads are detected without buffering them whole.
func (s *Source) Read(r io.Reader, name, contentType string) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return s.Decode(Upload{Name: name, ContentType: contentType, Data: data})
}

// Decode checks both the declared and the sniffed MIME type before decoding.
// JPEG orientation tags are applied.
func (s *Source) Decode(u Upload) (*Image, error) {
	if len(u.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if int64(len(u.Data)) > s.maxBytes {
		return nil, ErrUploadTooLarge
	}

	declared := strings.ToLower(strings.TrimSpace(u.ContentType))
	if declared != "" && declared != "application/octet-stream" && !strings.HasPrefix(declared, "image/") {
		return nil, fmt.Errorf("%w: declared %s", ErrNotAnImage, declared)
	}
	sniffed := mimetype.Detect(u.Data)
	if !strings.HasPrefix(sniffed.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, sniffed.String())
	}

	img, err := imaging.Decode(bytes.NewReader(u.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	return &Image{
		Name:   u.Name,
		MIME:   sniffed.String(),
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// WritePreview encodes img as PNG, shrunk to fit within maxSide pixels.
func WritePreview(w io.Writer, img image.Image, maxSide int) error {
	b := img.Bounds()
	if b.Dx() > maxSide || b.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}
	return png.Encode(w, img)
}
