package escpos

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

const (
	esc = 0x1b
	gs  = 0x1d
	lf  = 0x0a
)

// Horizontal alignment values understood by ESC a
const (
	AlignLeft   = 0
	AlignCenter = 1
	AlignRight  = 2
)

// Encoding returns the text encoder for a printer encoding name
func Encoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(name) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8, nil
	case "GBK":
		return simplifiedchinese.GBK, nil
	default:
		return nil, fmt.Errorf("unsupported printer encoding %q", name)
	}
}

var cells = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// Command builds an ESC/POS byte stream
type Command struct {
	buf []byte
	enc *encoding.Encoder
	err error
}

// New starts a command stream that encodes text with enc (UTF-8 when nil).
// Runes the encoding cannot represent become its substitute character.
func New(enc encoding.Encoding) *Command {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Command{enc: encoding.ReplaceUnsupported(enc.NewEncoder())}
}

// Init resets the printer (ESC @)
func (c *Command) Init() *Command {
	c.buf = append(c.buf, esc, '@')
	return c
}

// Width sets the printable area in dots (GS W)
func (c *Command) Width(dots int) *Command {
	if dots < 0 {
		dots = 0
	}
	c.buf = append(c.buf, gs, 'W', byte(dots&0xff), byte(dots>>8&0xff))
	return c
}

// Bold toggles emphasized mode (ESC E)
func (c *Command) Bold(on bool) *Command {
	var n byte
	if on {
		n = 1
	}
	c.buf = append(c.buf, esc, 'E', n)
	return c
}

// Align sets justification (ESC a), one of AlignLeft, AlignCenter, AlignRight
func (c *Command) Align(a int) *Command {
	if a < AlignLeft || a > AlignRight {
		a = AlignLeft
	}
	c.buf = append(c.buf, esc, 'a', byte(a))
	return c
}

// Size sets the character magnification (GS !), 1-8 in each direction
func (c *Command) Size(width, height int) *Command {
	width = clamp(width, 1, 8)
	height = clamp(height, 1, 8)
	c.buf = append(c.buf, gs, '!', byte((width-1)<<4|(height-1)))
	return c
}

// Text writes s followed by a line feed
func (c *Command) Text(s string) *Command {
	c.write(s)
	c.buf = append(c.buf, lf)
	return c
}

// Columns lays texts out in fixed columns of the given character widths.
// Cells that do not fit continue on following lines within their column.
func (c *Command) Columns(widths []int, aligns []int, texts []string) *Command {
	if c.err != nil {
		return c
	}
	if len(widths) != len(texts) || len(aligns) != len(texts) {
		c.err = fmt.Errorf("column layout needs matching widths, aligns and texts (%d/%d/%d)",
			len(widths), len(aligns), len(texts))
		return c
	}

	cols := make([][]string, len(texts))
	rows := 0
	for i, t := range texts {
		cols[i] = wrap(t, widths[i])
		if len(cols[i]) > rows {
			rows = len(cols[i])
		}
	}

	for r := 0; r < rows; r++ {
		var line strings.Builder
		for i, w := range widths {
			cell := ""
			if r < len(cols[i]) {
				cell = cols[i][r]
			}
			line.WriteString(place(cell, w, aligns[i]))
		}
		c.Text(line.String())
	}
	return c
}

// Feed prints the buffer and advances n lines (ESC d)
func (c *Command) Feed(lines int) *Command {
	c.buf = append(c.buf, esc, 'd', byte(clamp(lines, 0, 255)))
	return c
}

// Raster prints a 1-bit image (GS v 0). data is MSB-first, widthBytes per row.
func (c *Command) Raster(widthBytes, height int, data []byte) *Command {
	if c.err != nil {
		return c
	}
	if widthBytes*height != len(data) {
		c.err = fmt.Errorf("raster data is %d bytes, want %d", len(data), widthBytes*height)
		return c
	}
	c.buf = append(c.buf, gs, 'v', '0', 0,
		byte(widthBytes&0xff), byte(widthBytes>>8&0xff),
		byte(height&0xff), byte(height>>8&0xff))
	c.buf = append(c.buf, data...)
	return c
}

// Bytes returns the raw stream, or the first encoding error
func (c *Command) Bytes() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.buf, nil
}

func (c *Command) write(s string) {
	if c.err != nil {
		return
	}
	b, err := c.enc.Bytes([]byte(s))
	if err != nil {
		c.err = fmt.Errorf("encode %q: %w", s, err)
		return
	}
	c.buf = append(c.buf, b...)
}

// wrap splits s into chunks of at most w columns
func wrap(s string, w int) []string {
	if w <= 0 {
		return nil
	}
	var out []string
	var cur strings.Builder
	curW := 0
	for _, r := range s {
		rw := cells.RuneWidth(r)
		if curW+rw > w && curW > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curW = 0
		}
		cur.WriteRune(r)
		curW += rw
	}
	if cur.Len() > 0 || len(out) == 0 {
		out = append(out, cur.String())
	}
	return out
}

func place(s string, w, align int) string {
	switch align {
	case AlignRight:
		return cells.FillLeft(s, w)
	case AlignCenter:
		pad := w - cells.StringWidth(s)
		if pad <= 0 {
			return s
		}
		return cells.FillRight(strings.Repeat(" ", pad/2)+s, w)
	default:
		return cells.FillRight(s, w)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
