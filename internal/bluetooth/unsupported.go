//go:build !linux && !windows

package bluetooth

import (
	"context"
	"time"

	"kpos-print/internal/printer"
)

func (b *Binding) Enabled(ctx context.Context) (bool, error) {
	return false, printer.ErrNotSupported
}

func (b *Binding) EnableBluetooth(ctx context.Context) ([]printer.BluetoothDevice, error) {
	return nil, printer.ErrNotSupported
}

func (b *Binding) PairedDevices(ctx context.Context) ([]printer.BluetoothDevice, error) {
	return nil, printer.ErrNotSupported
}

func (b *Binding) ScanDevices(ctx context.Context, window time.Duration) (printer.ScanResult, error) {
	return printer.ScanResult{}, printer.ErrNotSupported
}

func (b *Binding) Unpair(ctx context.Context, address string) error {
	return printer.ErrNotSupported
}

func (b *Binding) dial(ctx context.Context, address string) (*link, error) {
	return nil, printer.ErrNotSupported
}
