package filestore

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"palmledger/internal/core/apperror"
	"palmledger/internal/domain/agents"
)

// MaxUploadBytes bounds accepted photo uploads.
const MaxUploadBytes = 8 << 20

// JPEGProcessor implements agents.ImageProcessor. Photos are oriented by their EXIF tag,
// downscaled to MaxWidth and re-encoded as JPEG.
type JPEGProcessor struct {
	MaxWidth int
	Quality  int
}

var _ agents.ImageProcessor = JPEGProcessor{}

// NewJPEGProcessor creates a processor. Zero values select 1024px and quality 85.
func NewJPEGProcessor(maxWidth, quality int) JPEGProcessor {
	if maxWidth <= 0 {
		maxWidth = 1024
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return JPEGProcessor{MaxWidth: maxWidth, Quality: quality}
}

// Process decodes data and returns the normalized JPEG.
func (p JPEGProcessor) Process(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", apperror.NewInvalidInput("photo", "photo is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, "", apperror.NewInvalidInput("photo", "photo exceeds 8 MB")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", apperror.NewInvalidInput("photo", "photo is not a supported image")
	}
	if img.Bounds().Dx() > p.MaxWidth {
		img = imaging.Resize(img, p.MaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return nil, "", fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
