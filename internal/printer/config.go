package printer

import (
	"fmt"
	"strings"
)

// Config describes the paper a printer is loaded with. It is picked once at
// startup, never negotiated with the device.
type Config struct {
	Paper        int    // mm
	DeviceWidth  int    // dots
	Encoding     string // UTF-8 or GBK
	CharsPerLine int
}

// Supported paper profiles
var (
	Paper58 = Config{Paper: 58, DeviceWidth: 384, Encoding: "UTF-8", CharsPerLine: 32}
	Paper80 = Config{Paper: 80, DeviceWidth: 576, Encoding: "UTF-8", CharsPerLine: 48}
)

// ProfileFor returns the profile for a paper width in millimetres
func ProfileFor(paper int) (Config, error) {
	switch paper {
	case 58:
		return Paper58, nil
	case 80:
		return Paper80, nil
	default:
		return Config{}, fmt.Errorf("unsupported paper width %dmm (want 58 or 80)", paper)
	}
}

// WithEncoding returns a copy of c using the named text encoding
func (c Config) WithEncoding(name string) (Config, error) {
	switch strings.ToUpper(name) {
	case "", "UTF-8", "UTF8":
		c.Encoding = "UTF-8"
	case "GBK":
		c.Encoding = "GBK"
	default:
		return c, fmt.Errorf("unsupported printer encoding %q (want UTF-8 or GBK)", name)
	}
	return c, nil
}
