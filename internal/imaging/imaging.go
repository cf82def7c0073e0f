package imaging

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultThreshold splits gray levels into printed and blank dots
const DefaultThreshold uint8 = 128

// LoadImage decodes a png, jpeg, gif, bmp or webp file
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// FitWidth returns the height that keeps img's aspect ratio when scaled to width
func FitWidth(img image.Image, width int) int {
	b := img.Bounds()
	if b.Dx() == 0 || width <= 0 {
		return 0
	}
	h := (b.Dy()*width + b.Dx()/2) / b.Dx()
	if h < 1 {
		h = 1
	}
	return h
}

// Scale draws img onto a white width x height canvas. Transparent areas stay white.
func Scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// ToMonochrome scales img to width x height and packs it into 1-bit rows,
// MSB first, as GS v 0 expects. Rows are padded to whole bytes.
func ToMonochrome(img image.Image, width, height int, threshold uint8) []byte {
	scaled := Scale(img, width, height)

	widthBytes := (width + 7) / 8
	data := make([]byte, widthBytes*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if rgbToGray(scaled.At(x, y)) >= threshold {
				continue
			}
			data[y*widthBytes+x/8] |= 1 << (7 - x%8)
		}
	}
	return data
}

// rgbToGray converts a color to a luminance value
func rgbToGray(c color.Color) uint8 {
	r, g, b, _ := c.RGBA()
	// 16-bit channels
	gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 256
	return uint8(gray)
}

// PreviewMonochrome turns packed raster rows back into a viewable image
func PreviewMonochrome(data []byte, width, height int) *image.Gray {
	widthBytes := (width + 7) / 8
	img := image.NewGray(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*widthBytes + x/8
			if i < len(data) && data[i]>>(7-x%8)&1 == 1 {
				img.SetGray(x, y, color.Gray{0})
			} else {
				img.SetGray(x, y, color.Gray{255})
			}
		}
	}
	return img
}
