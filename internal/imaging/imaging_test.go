package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfBlack is black on the left half and white on the right
func halfBlack(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetGray(x, y, color.Gray{0})
			} else {
				img.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return img
}

func darkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if rgbToGray(img.At(x, y)) < DefaultThreshold {
				n++
			}
		}
	}
	return n
}

func TestToMonochromePacksMSBFirst(t *testing.T) {
	data := ToMonochrome(halfBlack(16, 2), 16, 2, DefaultThreshold)
	assert.Equal(t, []byte{0xff, 0x00, 0xff, 0x00}, data)
}

func TestToMonochromePadsRows(t *testing.T) {
	data := ToMonochrome(halfBlack(12, 1), 12, 1, DefaultThreshold)
	assert.Equal(t, []byte{0xfc, 0x00}, data)
}

func TestTransparentAreasStayBlank(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 1))
	data := ToMonochrome(img, 8, 1, DefaultThreshold)
	assert.Equal(t, []byte{0x00}, data)
}

func TestPreviewMonochromeRoundTrip(t *testing.T) {
	src := halfBlack(16, 4)
	preview := PreviewMonochrome(ToMonochrome(src, 16, 4, DefaultThreshold), 16, 4)
	assert.Equal(t, src.Pix, preview.Pix)
}

func TestFitWidth(t *testing.T) {
	assert.Equal(t, 192, FitWidth(image.NewGray(image.Rect(0, 0, 200, 100)), 384))
	assert.Equal(t, 1, FitWidth(image.NewGray(image.Rect(0, 0, 1000, 1)), 384))
	assert.Equal(t, 0, FitWidth(image.NewGray(image.Rect(0, 0, 0, 0)), 384))
}

func TestLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, halfBlack(8, 8)))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())

	_, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderReceipt(t *testing.T) {
	lines := []string{"K.POS           05/03/2024 14:07", "--------------------------------", "TOTAL                      10.000"}

	img, err := RenderReceipt(lines, RenderOptions{Columns: 32, Width: 384, Margin: 8})
	require.NoError(t, err)
	assert.Equal(t, 384, img.Bounds().Dx())
	assert.Greater(t, img.Bounds().Dy(), 3*10)
	assert.Greater(t, darkPixels(img), 0)

	withLogo, err := RenderReceipt(lines, RenderOptions{Columns: 32, Width: 384, Margin: 8, Logo: halfBlack(100, 50)})
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dy()+192, withLogo.Bounds().Dy())
}

func TestRenderReceiptNeedsColumns(t *testing.T) {
	_, err := RenderReceipt([]string{"x"}, RenderOptions{Width: 384})
	assert.ErrorIs(t, err, ErrEmptyPaper)
}
