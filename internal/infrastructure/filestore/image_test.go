package filestore

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palmledger/internal/core/apperror"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestJPEGProcessor_Downscales(t *testing.T) {
	p := NewJPEGProcessor(100, 0)

	out, contentType, err := p.Process(pngOf(t, 400, 200))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestJPEGProcessor_KeepsSmallImages(t *testing.T) {
	out, _, err := NewJPEGProcessor(1024, 90).Process(pngOf(t, 64, 32))
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestJPEGProcessor_RejectsGarbage(t *testing.T) {
	_, _, err := NewJPEGProcessor(0, 0).Process([]byte("not an image"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, _, err = NewJPEGProcessor(0, 0).Process(nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}
