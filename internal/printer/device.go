package printer

import (
	"strings"
)

// BluetoothDevice is a printer candidate. Address is its identity; Name is for
// display and the allow-list heuristic only.
type BluetoothDevice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (d BluetoothDevice) String() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name + " (" + d.Address + ")"
}

// DefaultKeywords are name fragments seen on common 58mm/80mm receipt printers.
// Matching is a best-effort guess, not a guarantee.
var DefaultKeywords = []string{
	"print",
	"pos",
	"rpp",
	"mpt",
	"mtp",
	"zj-",
	"xp-",
	"thermal",
	"receipt",
	"tm-",
	"pt-",
}

// Matcher decides whether a device name looks like a receipt printer
type Matcher struct {
	keywords []string
}

// NewMatcher builds a matcher from keywords; an empty list means DefaultKeywords
func NewMatcher(keywords []string) *Matcher {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	m := &Matcher{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	return m
}

// Match reports whether name contains any keyword, case-insensitively
func (m *Matcher) Match(name string) bool {
	name = strings.ToLower(name)
	for _, k := range m.keywords {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// Filter returns the devices whose names match, in order
func (m *Matcher) Filter(devices []BluetoothDevice) []BluetoothDevice {
	var out []BluetoothDevice
	for _, d := range devices {
		if m.Match(d.Name) {
			out = append(out, d)
		}
	}
	return out
}

var defaultMatcher = NewMatcher(nil)

// IsReceiptPrinter matches name against DefaultKeywords
func IsReceiptPrinter(name string) bool {
	return defaultMatcher.Match(name)
}

// FilterPrinters keeps the devices IsReceiptPrinter accepts
func FilterPrinters(devices []BluetoothDevice) []BluetoothDevice {
	return defaultMatcher.Filter(devices)
}

// ContainsAddress reports whether devices includes address
func ContainsAddress(devices []BluetoothDevice, address string) bool {
	for _, d := range devices {
		if strings.EqualFold(d.Address, address) {
			return true
		}
	}
	return false
}
