package printer

import (
	"context"
	"image"
	"time"

	"kpos-print/internal/receipt"
)

// TextOptions style a single PrintText or PrintColumn call
type TextOptions struct {
	Bold             bool
	WidthMultiplier  int
	HeightMultiplier int
}

// ScanResult is the outcome of one discovery window
type ScanResult struct {
	Paired []BluetoothDevice
	Found  []BluetoothDevice
}

// Adapter is the platform Bluetooth surface
type Adapter interface {
	// Enabled reports whether the radio is powered
	Enabled(ctx context.Context) (bool, error)
	// EnableBluetooth powers the radio on and returns the paired devices
	EnableBluetooth(ctx context.Context) ([]BluetoothDevice, error)
	PairedDevices(ctx context.Context) ([]BluetoothDevice, error)
	ScanDevices(ctx context.Context, window time.Duration) (ScanResult, error)
	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error
	Unpair(ctx context.Context, address string) error
	// ConnectedAddress is the address of the open link, or ""
	ConnectedAddress() string
}

// Primitives are the ESC/POS calls available on an open link. Each returns
// once the printer has accepted the bytes.
type Primitives interface {
	PrinterInit() error
	SetWidth(dots int) error
	PrintText(text string, opts TextOptions) error
	PrintColumn(widths []int, aligns []receipt.Align, texts []string, opts TextOptions) error
	PrintAndFeed(lines int) error
	SetBold(on bool) error
	PrinterAlign(a receipt.Align) error
	PrintPic(img image.Image, widthDots int) error
}

// Binding is a complete native printer implementation
type Binding interface {
	Adapter
	Primitives
}

// LossNotifier is implemented by bindings that detect a dropped link on their own
type LossNotifier interface {
	NotifyConnectionLost(fn func(address string, err error))
}
