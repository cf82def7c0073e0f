package receipt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var layoutInputs = []string{
	"",
	"K.POS",
	"TOTAL",
	"Toko Sembako Berkah Jaya Abadi Sentosa Makmur",
	"咖啡店",
	"Nasi Goreng 🍳",
	strings.Repeat("x", 60),
}

func TestRenderRowIsAlwaysLineWidth(t *testing.T) {
	for _, width := range []int{32, 48} {
		for _, left := range layoutInputs {
			for _, right := range layoutInputs {
				got := RenderRow(left, right, width)
				assert.Equal(t, width, Width(got), "row %q / %q at %d", left, right, width)
			}
		}
	}
}

func TestRenderRowKeepsRightEdge(t *testing.T) {
	got := RenderRow("TOTAL", "10.000", 32)
	assert.True(t, strings.HasPrefix(got, "TOTAL "))
	assert.True(t, strings.HasSuffix(got, " 10.000"))

	got = RenderRow("Toko Sembako Berkah Jaya Abadi", "05/03/2024 14:07", 32)
	assert.Equal(t, "Toko Sembako Be 05/03/2024 14:07", got)
}

func TestRenderLine(t *testing.T) {
	assert.Equal(t, strings.Repeat("-", 32), RenderLine("-", 32))
	assert.Equal(t, strings.Repeat("=", 48), RenderLine("=", 48))
	assert.Equal(t, strings.Repeat("-", 32), RenderLine("", 32))
	for _, fill := range []string{"-", "=*", "─", "咖"} {
		assert.Equal(t, 32, Width(RenderLine(fill, 32)), fill)
	}
}

func TestEllipsizeNameField(t *testing.T) {
	names := append([]string{"Kopi", "Teh Manis Dingin", "Indomie Goreng Spesial"}, layoutInputs...)
	for _, name := range names {
		field := Ellipsize(name, 14)
		assert.Equal(t, 14, Width(field), name)
		assert.LessOrEqual(t, Width(strings.TrimRight(field, " ")), 14, name)
		if Width(name) > 14 {
			assert.True(t, strings.HasSuffix(field, Ellipsis), name)
		}
	}
	assert.Equal(t, "Teh Manis D...", Ellipsize("Teh Manis Dingin", 14))
}

func TestRenderTextAlignment(t *testing.T) {
	assert.Equal(t, "LUNAS", RenderText(Text{Content: "LUNAS"}, 32))
	assert.Equal(t, strings.Repeat(" ", 13)+"LUNAS", RenderText(Text{Content: "LUNAS", Align: AlignCenter}, 32))
	assert.Equal(t, strings.Repeat(" ", 27)+"LUNAS", RenderText(Text{Content: "LUNAS", Align: AlignRight}, 32))
	// double width halves the usable columns
	assert.Equal(t, strings.Repeat(" ", 11)+"LUNAS", RenderText(Text{Content: "LUNAS", Align: AlignRight, Size: SizeLarge}, 32))
}

func TestLinesExpandsFeed(t *testing.T) {
	lines := Lines([]Command{Text{Content: "a"}, Feed{Lines: 2}, Feed{Lines: -1}}, 32)
	assert.Equal(t, []string{"a", "", ""}, lines)
}

func TestSizeMultipliers(t *testing.T) {
	w, h := SizeTall.Multipliers()
	assert.Equal(t, 1, w)
	assert.Equal(t, 2, h)
	w, h = SizeWide.Multipliers()
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
}
