//go:build windows

package bluetooth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/windows/registry"

	"kpos-print/internal/printer"
)

// On Windows a paired SPP printer shows up as a COM port. The port name is
// the device address for everything above the binding.

const (
	serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`
	bthPortKey    = `SYSTEM\CurrentControlSet\Services\BTHPORT\Parameters`
)

// Enabled reports whether the Bluetooth stack is installed. Windows keeps
// the radio switch out of reach of desktop programs.
func (b *Binding) Enabled(ctx context.Context) (bool, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, bthPortKey, registry.READ)
	if err != nil {
		return false, nil
	}
	key.Close()
	return true, nil
}

// EnableBluetooth cannot switch the radio on Windows, it only lists the ports
func (b *Binding) EnableBluetooth(ctx context.Context) ([]printer.BluetoothDevice, error) {
	on, _ := b.Enabled(ctx)
	if !on {
		return nil, fmt.Errorf("bluetooth stack missing: %w", printer.ErrBluetoothDisabled)
	}
	return b.PairedDevices(ctx)
}

// PairedDevices lists Bluetooth COM ports from the registry
func (b *Binding) PairedDevices(ctx context.Context) ([]printer.BluetoothDevice, error) {
	ports, err := bluetoothCOMPorts()
	if err != nil {
		return nil, err
	}
	devices := make([]printer.BluetoothDevice, 0, len(ports))
	for name, port := range ports {
		devices = append(devices, printer.BluetoothDevice{Name: name, Address: port})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })
	return devices, nil
}

// ScanDevices has no discovery on Windows; pairing happens in system settings
func (b *Binding) ScanDevices(ctx context.Context, window time.Duration) (printer.ScanResult, error) {
	paired, err := b.PairedDevices(ctx)
	if err != nil {
		return printer.ScanResult{}, err
	}
	return printer.ScanResult{Paired: paired}, nil
}

// Unpair is left to the system settings
func (b *Binding) Unpair(ctx context.Context, address string) error {
	return fmt.Errorf("unpair %s: %w", address, printer.ErrNotSupported)
}

// bluetoothCOMPorts reads the serial port map and keeps the Bluetooth entries
func bluetoothCOMPorts() (map[string]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.READ)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", serialCommKey, err)
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", serialCommKey, err)
	}

	ports := make(map[string]string)
	for _, name := range names {
		val, _, err := key.GetStringValue(name)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "bth") || strings.Contains(lower, "bluetooth") {
			ports[name] = val
		}
	}
	return ports, nil
}

// dial opens the COM port. The OS owns the RFCOMM channel, so there is
// nothing to release and no way to watch it.
func (b *Binding) dial(ctx context.Context, address string) (*link, error) {
	if !strings.HasPrefix(strings.ToUpper(address), "COM") {
		return nil, fmt.Errorf("invalid COM port %q: %w", address, printer.ErrDeviceNotFound)
	}
	path := address
	// COM10 and up need the device namespace
	if len(address) > 4 {
		path = `\\.\` + address
	}

	type result struct {
		l   *link
		err error
	}
	done := make(chan result, 1)
	go func() {
		port, err := openPort(path)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{l: &link{address: address, path: path, port: port}}
	}()

	select {
	case r := <-done:
		return r.l, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.l != nil {
				r.l.port.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
