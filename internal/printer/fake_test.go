package printer

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"kpos-print/internal/receipt"
)

// fakeBinding records every native call. Hooks override the default
// always-succeeds behaviour.
type fakeBinding struct {
	mu sync.Mutex

	OnEnabled    func(ctx context.Context) (bool, error)
	OnConnect    func(ctx context.Context, address string) error
	OnDisconnect func(ctx context.Context, address string) error
	OnUnpair     func(ctx context.Context, address string) error
	OnScan       func(ctx context.Context, window time.Duration) (ScanResult, error)
	OnPrintText  func(text string, opts TextOptions) error

	paired    []BluetoothDevice
	connected string
	calls     []string
	lost      func(address string, err error)
}

func newFake() *fakeBinding {
	return &fakeBinding{}
}

func (f *fakeBinding) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBinding) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBinding) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeBinding) Enabled(ctx context.Context) (bool, error) {
	f.record("enabled")
	if f.OnEnabled != nil {
		return f.OnEnabled(ctx)
	}
	return true, nil
}

func (f *fakeBinding) EnableBluetooth(ctx context.Context) ([]BluetoothDevice, error) {
	f.record("enable")
	return f.paired, nil
}

func (f *fakeBinding) PairedDevices(ctx context.Context) ([]BluetoothDevice, error) {
	f.record("paired")
	return f.paired, nil
}

func (f *fakeBinding) ScanDevices(ctx context.Context, window time.Duration) (ScanResult, error) {
	f.record("scan %s", window)
	if f.OnScan != nil {
		return f.OnScan(ctx, window)
	}
	return ScanResult{Paired: f.paired}, nil
}

func (f *fakeBinding) Connect(ctx context.Context, address string) error {
	f.record("connect %s", address)
	if f.OnConnect != nil {
		if err := f.OnConnect(ctx, address); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.connected = address
	f.mu.Unlock()
	return nil
}

func (f *fakeBinding) Disconnect(ctx context.Context, address string) error {
	f.record("disconnect %s", address)
	f.mu.Lock()
	f.connected = ""
	f.mu.Unlock()
	if f.OnDisconnect != nil {
		return f.OnDisconnect(ctx, address)
	}
	return nil
}

func (f *fakeBinding) Unpair(ctx context.Context, address string) error {
	f.record("unpair %s", address)
	if f.OnUnpair != nil {
		return f.OnUnpair(ctx, address)
	}
	return nil
}

func (f *fakeBinding) ConnectedAddress() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBinding) NotifyConnectionLost(fn func(address string, err error)) {
	f.lost = fn
}

func (f *fakeBinding) PrinterInit() error {
	f.record("init")
	return nil
}

func (f *fakeBinding) SetWidth(dots int) error {
	f.record("width %d", dots)
	return nil
}

func (f *fakeBinding) PrintText(text string, opts TextOptions) error {
	f.record("text %q %dx%d", text, opts.WidthMultiplier, opts.HeightMultiplier)
	if f.OnPrintText != nil {
		return f.OnPrintText(text, opts)
	}
	return nil
}

func (f *fakeBinding) PrintColumn(widths []int, aligns []receipt.Align, texts []string, opts TextOptions) error {
	f.record("column %v %v %q", widths, aligns, texts)
	return nil
}

func (f *fakeBinding) PrintAndFeed(lines int) error {
	f.record("feed %d", lines)
	return nil
}

func (f *fakeBinding) SetBold(on bool) error {
	f.record("bold %t", on)
	return nil
}

func (f *fakeBinding) PrinterAlign(a receipt.Align) error {
	f.record("align %s", a)
	return nil
}

func (f *fakeBinding) PrintPic(img image.Image, widthDots int) error {
	f.record("pic %d", widthDots)
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

var (
	printerA = BluetoothDevice{Name: "RPP-02N", Address: "AA:BB:CC:DD:EE:01"}
	printerB = BluetoothDevice{Name: "MPT-II", Address: "AA:BB:CC:DD:EE:02"}
)
