package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// ErrEmptyPaper is returned when the render width has no room for text
var ErrEmptyPaper = errors.New("paper has no printable columns")

// RenderOptions describes the paper a receipt is drawn on
type RenderOptions struct {
	Columns int // characters per line
	Width   int // dots
	Logo    image.Image
	Margin  int // blank dots above and below
}

// RenderReceipt draws already laid out receipt lines onto a paper-width strip
// in a monospaced face sized so Columns characters fill Width dots
func RenderReceipt(lines []string, opts RenderOptions) (image.Image, error) {
	if opts.Columns <= 0 || opts.Width <= 0 {
		return nil, ErrEmptyPaper
	}

	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	size := fitFontSize(f, float64(opts.Width)/float64(opts.Columns))
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
	defer face.Close()
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	var logo image.Image
	logoHeight := 0
	if opts.Logo != nil {
		w := opts.Width / 8 * 8
		logoHeight = FitWidth(opts.Logo, w)
		logo = PreviewMonochrome(ToMonochrome(opts.Logo, w, logoHeight, DefaultThreshold), w, logoHeight)
	}

	height := 2*opts.Margin + logoHeight + len(lines)*lineHeight
	if height < 1 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	y := opts.Margin
	if logo != nil {
		draw.Draw(img, image.Rect(0, y, opts.Width, y+logoHeight), logo, image.Point{}, draw.Src)
		y += logoHeight
	}

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(size)
	c.SetClip(img.Bounds())
	c.SetDst(img)
	c.SetSrc(image.NewUniform(color.Black))
	c.SetHinting(font.HintingNone)

	ascent := metrics.Ascent.Ceil()
	for _, line := range lines {
		if _, err := c.DrawString(line, freetype.Pt(0, y+ascent)); err != nil {
			return nil, fmt.Errorf("draw %q: %w", line, err)
		}
		y += lineHeight
	}
	return img, nil
}

// fitFontSize returns the point size at which one glyph advance is cell dots wide
func fitFontSize(f *truetype.Font, cell float64) float64 {
	const probe = 100
	face := truetype.NewFace(f, &truetype.Options{Size: probe, DPI: 72})
	defer face.Close()
	adv, ok := face.GlyphAdvance('0')
	if !ok || adv <= 0 {
		return cell
	}
	return probe * cell * 64 / float64(adv)
}
