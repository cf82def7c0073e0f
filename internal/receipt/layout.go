package receipt

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks a truncated item name
const Ellipsis = "..."

// cells measures visible columns independent of the host locale, so a receipt
// renders the same everywhere.
var cells = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

// Width returns the number of printer columns s occupies
func Width(s string) int {
	return cells.StringWidth(s)
}

// Fit truncates or pads s on the right to exactly w columns
func Fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return cells.FillRight(cells.Truncate(s, w, ""), w)
}

// PadLeft right-aligns s within w columns. Wider strings are returned unchanged.
func PadLeft(s string, w int) string {
	return cells.FillLeft(s, w)
}

// PadRight left-aligns s within w columns. Wider strings are returned unchanged.
func PadRight(s string, w int) string {
	return cells.FillRight(s, w)
}

// Ellipsize left-aligns s in exactly w columns, keeping w-3 columns and
// appending "..." when s does not fit.
func Ellipsize(s string, w int) string {
	if Width(s) <= w {
		return PadRight(s, w)
	}
	if w <= len(Ellipsis) {
		return Fit(s, w)
	}
	return Fit(s, w-len(Ellipsis)) + Ellipsis
}

// RenderLine repeats fill to exactly width columns
func RenderLine(fill string, width int) string {
	if width <= 0 {
		return ""
	}
	if Width(fill) == 0 {
		fill = DefaultFill
	}
	n := width/Width(fill) + 1
	return Fit(strings.Repeat(fill, n), width)
}

// RenderRow lays out left and right on one line of exactly width columns
func RenderRow(left, right string, width int) string {
	if width <= 0 {
		return ""
	}
	if width == 1 {
		return " "
	}
	if Width(right) > width-1 {
		right = Fit(right, width-1)
	}
	leftWidth := width - Width(right) - 1
	return Fit(left, leftWidth) + " " + right
}

// RenderText places a text command on a line of width columns. Magnified text
// gets proportionally fewer columns.
func RenderText(t Text, width int) string {
	mw, _ := t.Size.Multipliers()
	avail := width / mw
	w := Width(t.Content)
	if w >= avail {
		return t.Content
	}
	switch t.Align {
	case AlignCenter:
		return strings.Repeat(" ", (avail-w)/2) + t.Content
	case AlignRight:
		return PadLeft(t.Content, avail)
	default:
		return t.Content
	}
}

// Lines renders a command list to the plain text a printer of the given width
// would produce. Feed contributes blank lines.
func Lines(cmds []Command, width int) []string {
	var out []string
	for _, c := range cmds {
		switch c := c.(type) {
		case Text:
			out = append(out, RenderText(c, width))
		case Line:
			out = append(out, RenderLine(c.Fill, width))
		case Row:
			out = append(out, RenderRow(c.Left, c.Right, width))
		case Feed:
			for i := 0; i < c.Lines; i++ {
				out = append(out, "")
			}
		}
	}
	return out
}
