// Package registry remembers which printer the user picked, across restarts
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"kpos-print/internal/printer"
)

// Key holds the selected printer JSON in the store
const Key = "kpos.selectedPrinter"

// ErrNoAddress is returned when saving a device without an address
var ErrNoAddress = errors.New("printer has no address")

// Store is a durable string key-value store
type Store interface {
	// Get returns the value and whether the key exists
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// PairedLister reports the devices the OS is bonded with
type PairedLister interface {
	PairedDevices(ctx context.Context) ([]printer.BluetoothDevice, error)
}

// Registry persists the selected printer
type Registry struct {
	store  Store
	paired PairedLister
	log    *log.Logger
}

// New creates a registry over store. paired is consulted by IsStillPaired and Load.
func New(store Store, paired PairedLister, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{store: store, paired: paired, log: logger.WithPrefix("registry")}
}

// Save records dev as the selected printer, replacing any earlier choice
func (r *Registry) Save(dev printer.BluetoothDevice) error {
	if strings.TrimSpace(dev.Address) == "" {
		return ErrNoAddress
	}
	data, err := json.Marshal(dev)
	if err != nil {
		return fmt.Errorf("encode selected printer: %w", err)
	}
	if err := r.store.Set(Key, string(data)); err != nil {
		return fmt.Errorf("save selected printer: %w", err)
	}
	r.log.Debug("selected printer saved", "address", dev.Address)
	return nil
}

// Get returns the selected printer, or nil when none is stored. A record that
// no longer decodes is dropped and reported as no selection.
func (r *Registry) Get() (*printer.BluetoothDevice, error) {
	raw, ok, err := r.store.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("read selected printer: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var dev printer.BluetoothDevice
	if err := json.Unmarshal([]byte(raw), &dev); err != nil || strings.TrimSpace(dev.Address) == "" {
		r.log.Warn("discarding unreadable selected printer", "record", raw, "err", err)
		if rmErr := r.store.Remove(Key); rmErr != nil {
			r.log.Warn("removing unreadable record", "err", rmErr)
		}
		return nil, nil
	}
	return &dev, nil
}

// Clear forgets the selected printer
func (r *Registry) Clear() error {
	if err := r.store.Remove(Key); err != nil {
		return fmt.Errorf("clear selected printer: %w", err)
	}
	r.log.Debug("selected printer cleared")
	return nil
}

// IsStillPaired asks the OS whether address is still bonded
func (r *Registry) IsStillPaired(ctx context.Context, address string) (bool, error) {
	devices, err := r.paired.PairedDevices(ctx)
	if err != nil {
		return false, fmt.Errorf("list paired devices: %w", err)
	}
	return printer.ContainsAddress(devices, address), nil
}

// Load validates the stored selection at startup. A device the OS no longer
// lists is cleared and nil is returned. When the paired list cannot be read
// the stored device is kept.
func (r *Registry) Load(ctx context.Context) (*printer.BluetoothDevice, error) {
	dev, err := r.Get()
	if err != nil || dev == nil {
		return nil, err
	}

	paired, err := r.IsStillPaired(ctx, dev.Address)
	if err != nil {
		r.log.Warn("cannot verify selected printer, keeping it", "address", dev.Address, "err", err)
		return dev, nil
	}
	if paired {
		return dev, nil
	}

	r.log.Info("selected printer is no longer paired", "address", dev.Address)
	if err := r.Clear(); err != nil {
		return nil, err
	}
	return nil, nil
}
