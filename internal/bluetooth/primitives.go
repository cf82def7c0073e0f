package bluetooth

import (
	"fmt"
	"image"

	"kpos-print/internal/escpos"
	"kpos-print/internal/imaging"
	"kpos-print/internal/printer"
	"kpos-print/internal/receipt"
)

func (b *Binding) cmd() *escpos.Command {
	return escpos.New(b.enc)
}

// send writes one encoded command to the open link and returns once the
// port has taken every byte
func (b *Binding) send(c *escpos.Command) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.link == nil {
		return printer.ErrNotConnected
	}
	if _, err := b.link.port.Write(data); err != nil {
		return fmt.Errorf("write to %s: %w: %w", b.link.address, printer.ErrNotConnected, err)
	}
	return nil
}

func (b *Binding) PrinterInit() error {
	return b.send(b.cmd().Init())
}

func (b *Binding) SetWidth(dots int) error {
	return b.send(b.cmd().Width(dots))
}

// PrintText prints one line. Magnification is reset afterwards.
func (b *Binding) PrintText(text string, opts printer.TextOptions) error {
	c := b.cmd()
	if opts.Bold {
		c.Bold(true)
	}
	scaled := opts.WidthMultiplier > 1 || opts.HeightMultiplier > 1
	if scaled {
		c.Size(opts.WidthMultiplier, opts.HeightMultiplier)
	}
	c.Text(text)
	if scaled {
		c.Size(1, 1)
	}
	if opts.Bold {
		c.Bold(false)
	}
	return b.send(c)
}

func (b *Binding) PrintColumn(widths []int, aligns []receipt.Align, texts []string, opts printer.TextOptions) error {
	codes := make([]int, len(aligns))
	for i, a := range aligns {
		codes[i] = alignCode(a)
	}
	c := b.cmd()
	if opts.Bold {
		c.Bold(true)
	}
	c.Columns(widths, codes, texts)
	if opts.Bold {
		c.Bold(false)
	}
	return b.send(c)
}

func (b *Binding) PrintAndFeed(lines int) error {
	return b.send(b.cmd().Feed(lines))
}

func (b *Binding) SetBold(on bool) error {
	return b.send(b.cmd().Bold(on))
}

func (b *Binding) PrinterAlign(a receipt.Align) error {
	return b.send(b.cmd().Align(alignCode(a)))
}

// PrintPic scales img to widthDots, rounded down to whole bytes, and prints it
// as a raster image
func (b *Binding) PrintPic(img image.Image, widthDots int) error {
	w := widthDots / 8 * 8
	if img == nil || w == 0 {
		return fmt.Errorf("print picture: nothing to print at %d dots", widthDots)
	}
	h := imaging.FitWidth(img, w)
	data := imaging.ToMonochrome(img, w, h, imaging.DefaultThreshold)
	return b.send(b.cmd().Raster(w/8, h, data))
}

func alignCode(a receipt.Align) int {
	switch a {
	case receipt.AlignCenter:
		return escpos.AlignCenter
	case receipt.AlignRight:
		return escpos.AlignRight
	default:
		return escpos.AlignLeft
	}
}
