//go:build linux

package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"kpos-print/internal/printer"
)

const (
	bluez         = "org.bluez"
	adapterIface  = "org.bluez.Adapter1"
	deviceIface   = "org.bluez.Device1"
	objectManager = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	propertiesSet = "org.freedesktop.DBus.Properties.Set"
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// bluezDevice is a Device1 object with the properties we care about
type bluezDevice struct {
	path   dbus.ObjectPath
	device printer.BluetoothDevice
	paired bool
}

func systemBus() (*dbus.Conn, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	return conn, nil
}

// objects fetches the BlueZ object tree
func objects(ctx context.Context) (managedObjects, error) {
	conn, err := systemBus()
	if err != nil {
		return nil, err
	}
	var out managedObjects
	call := conn.Object(bluez, "/").CallWithContext(ctx, objectManager, 0)
	if err := call.Store(&out); err != nil {
		return nil, fmt.Errorf("list bluez objects: %w", bluezError(err))
	}
	return out, nil
}

// adapter returns the first adapter path and whether it is powered
func (o managedObjects) adapter() (dbus.ObjectPath, bool, error) {
	paths := make([]string, 0, len(o))
	for p, ifaces := range o {
		if _, ok := ifaces[adapterIface]; ok {
			paths = append(paths, string(p))
		}
	}
	if len(paths) == 0 {
		return "", false, fmt.Errorf("no bluetooth adapter: %w", printer.ErrBluetoothDisabled)
	}
	sort.Strings(paths)
	path := dbus.ObjectPath(paths[0])
	powered, _ := o[path][adapterIface]["Powered"].Value().(bool)
	return path, powered, nil
}

// devices lists every Device1 under adapter, sorted by address
func (o managedObjects) devices(adapter dbus.ObjectPath) []bluezDevice {
	var out []bluezDevice
	for p, ifaces := range o {
		props, ok := ifaces[deviceIface]
		if !ok || !strings.HasPrefix(string(p), string(adapter)+"/") {
			continue
		}
		address, _ := props["Address"].Value().(string)
		if address == "" {
			continue
		}
		name, _ := props["Name"].Value().(string)
		if name == "" {
			name, _ = props["Alias"].Value().(string)
		}
		paired, _ := props["Paired"].Value().(bool)
		out = append(out, bluezDevice{
			path:   p,
			device: printer.BluetoothDevice{Name: name, Address: address},
			paired: paired,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].device.Address < out[j].device.Address })
	return out
}

func (o managedObjects) find(adapter dbus.ObjectPath, address string) (bluezDevice, bool) {
	for _, d := range o.devices(adapter) {
		if strings.EqualFold(d.device.Address, address) {
			return d, true
		}
	}
	return bluezDevice{}, false
}

func split(devs []bluezDevice) (paired, found []printer.BluetoothDevice) {
	for _, d := range devs {
		if d.paired {
			paired = append(paired, d.device)
		} else {
			found = append(found, d.device)
		}
	}
	return paired, found
}

// bluezError maps well-known BlueZ and bus errors onto printer sentinels
func bluezError(err error) error {
	var de dbus.Error
	if !errors.As(err, &de) {
		return err
	}
	switch de.Name {
	case "org.freedesktop.DBus.Error.AccessDenied", "org.bluez.Error.NotAuthorized", "org.bluez.Error.NotPermitted":
		return fmt.Errorf("%w: %w", printer.ErrPermissionDenied, err)
	case "org.bluez.Error.NotReady", "org.freedesktop.DBus.Error.ServiceUnknown":
		return fmt.Errorf("%w: %w", printer.ErrBluetoothDisabled, err)
	case "org.bluez.Error.DoesNotExist", "org.freedesktop.DBus.Error.UnknownObject":
		return fmt.Errorf("%w: %w", printer.ErrDeviceNotFound, err)
	}
	return err
}

// Enabled reports whether the first adapter is powered
func (b *Binding) Enabled(ctx context.Context) (bool, error) {
	objs, err := objects(ctx)
	if err != nil {
		return false, err
	}
	_, powered, err := objs.adapter()
	if errors.Is(err, printer.ErrBluetoothDisabled) {
		return false, nil
	}
	return powered, err
}

// EnableBluetooth powers the adapter on and returns the paired devices
func (b *Binding) EnableBluetooth(ctx context.Context) ([]printer.BluetoothDevice, error) {
	objs, err := objects(ctx)
	if err != nil {
		return nil, err
	}
	adapter, powered, err := objs.adapter()
	if err != nil {
		return nil, err
	}
	if !powered {
		conn, err := systemBus()
		if err != nil {
			return nil, err
		}
		call := conn.Object(bluez, adapter).CallWithContext(ctx, propertiesSet, 0, adapterIface, "Powered", dbus.MakeVariant(true))
		if call.Err != nil {
			return nil, fmt.Errorf("power on %s: %w", adapter, bluezError(call.Err))
		}
		b.log.Info("adapter powered on", "adapter", adapter)
	}
	return b.PairedDevices(ctx)
}

// PairedDevices lists devices bonded with the adapter
func (b *Binding) PairedDevices(ctx context.Context) ([]printer.BluetoothDevice, error) {
	objs, err := objects(ctx)
	if err != nil {
		return nil, err
	}
	adapter, _, err := objs.adapter()
	if err != nil {
		return nil, err
	}
	paired, _ := split(objs.devices(adapter))
	return paired, nil
}

// ScanDevices runs discovery for window and reports paired and newly seen devices
func (b *Binding) ScanDevices(ctx context.Context, window time.Duration) (printer.ScanResult, error) {
	objs, err := objects(ctx)
	if err != nil {
		return printer.ScanResult{}, err
	}
	adapter, powered, err := objs.adapter()
	if err != nil {
		return printer.ScanResult{}, err
	}
	if !powered {
		return printer.ScanResult{}, fmt.Errorf("scan: %w", printer.ErrBluetoothDisabled)
	}

	conn, err := systemBus()
	if err != nil {
		return printer.ScanResult{}, err
	}
	obj := conn.Object(bluez, adapter)
	if call := obj.CallWithContext(ctx, adapterIface+".StartDiscovery", 0); call.Err != nil {
		return printer.ScanResult{}, fmt.Errorf("start discovery: %w", bluezError(call.Err))
	}
	b.log.Debug("discovery started", "adapter", adapter, "window", window)

	timer := time.NewTimer(window)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}

	// stop even when ctx is gone, discovery would otherwise keep the radio busy
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if call := obj.CallWithContext(stopCtx, adapterIface+".StopDiscovery", 0); call.Err != nil {
		b.log.Warn("stop discovery", "adapter", adapter, "err", call.Err)
	}
	if err := ctx.Err(); err != nil {
		return printer.ScanResult{}, err
	}

	objs, err = objects(ctx)
	if err != nil {
		return printer.ScanResult{}, err
	}
	paired, found := split(objs.devices(adapter))
	return printer.ScanResult{Paired: paired, Found: found}, nil
}

// Unpair removes the bond with address
func (b *Binding) Unpair(ctx context.Context, address string) error {
	objs, err := objects(ctx)
	if err != nil {
		return err
	}
	adapter, _, err := objs.adapter()
	if err != nil {
		return err
	}
	dev, ok := objs.find(adapter, address)
	if !ok {
		return fmt.Errorf("unpair %s: %w", address, printer.ErrDeviceNotFound)
	}

	conn, err := systemBus()
	if err != nil {
		return err
	}
	call := conn.Object(bluez, adapter).CallWithContext(ctx, adapterIface+".RemoveDevice", 0, dev.path)
	if call.Err != nil {
		return fmt.Errorf("unpair %s: %w", address, bluezError(call.Err))
	}
	b.log.Info("device removed", "address", address)
	return nil
}
