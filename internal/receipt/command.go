package receipt

// Align is the horizontal placement of a text command
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// Size is the character magnification of a text command
type Size int

const (
	SizeNormal Size = iota
	SizeWide
	SizeTall
	SizeLarge
)

// Multipliers returns the width and height magnification for the size
func (s Size) Multipliers() (width, height int) {
	switch s {
	case SizeWide:
		return 2, 1
	case SizeTall:
		return 1, 2
	case SizeLarge:
		return 2, 2
	default:
		return 1, 1
	}
}

// Command is one printer instruction. The set is closed: Text, Line, Row and Feed.
type Command interface {
	command()
}

// Text prints content on its own line
type Text struct {
	Content string
	Align   Align
	Bold    bool
	Size    Size
}

// Line prints Fill repeated across the full paper width
type Line struct {
	Fill string
}

// Row prints Left and Right on one line, Right flush against the right edge
type Row struct {
	Left  string
	Right string
}

// Feed advances the paper
type Feed struct {
	Lines int
}

func (Text) command() {}
func (Line) command() {}
func (Row) command()  {}
func (Feed) command() {}

// DefaultFill is used when a Line has no fill character
const DefaultFill = "-"
