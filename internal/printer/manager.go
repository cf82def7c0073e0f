package printer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// State of the printer link
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// StateChange is delivered to subscribers after every transition
type StateChange struct {
	State  State
	Device *BluetoothDevice
	Err    *Error
}

const (
	DefaultConnectTimeout = 2500 * time.Millisecond
	DefaultScanWindow     = 8 * time.Second
	DefaultAdapterPoll    = 100 * time.Millisecond
	DefaultAdapterWait    = 3 * time.Second
)

// ManagerOptions tune a Manager. Zero values take the defaults above.
type ManagerOptions struct {
	ConnectTimeout time.Duration
	ScanWindow     time.Duration
	// WaitForAdapter polls the radio before scanning and fails with
	// BLUETOOTH_DISABLED if it does not come up in time
	WaitForAdapter bool
	AdapterPoll    time.Duration
	AdapterWait    time.Duration
	Logger         *log.Logger
}

type subscriber struct {
	id int
	fn func(StateChange)
}

// Manager owns the single printer link. Only the Manager and the Executor
// touch the binding's connection.
type Manager struct {
	binding Binding
	opts    ManagerOptions
	log     *log.Logger

	// op serializes native connection operations
	op sync.Mutex

	mu      sync.Mutex
	state   State
	current *BluetoothDevice
	subs    []subscriber
	nextSub int
}

// NewManager creates a Manager in the Disconnected state
func NewManager(b Binding, opts ManagerOptions) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = DefaultScanWindow
	}
	if opts.AdapterPoll <= 0 {
		opts.AdapterPoll = DefaultAdapterPoll
	}
	if opts.AdapterWait <= 0 {
		opts.AdapterWait = DefaultAdapterWait
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Manager{
		binding: b,
		opts:    opts,
		log:     logger.WithPrefix("printer"),
	}
	if ln, ok := b.(LossNotifier); ok {
		ln.NotifyConnectionLost(m.connectionLost)
	}
	return m
}

// State returns the current link state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the device the link belongs to, or nil
func (m *Manager) Current() *BluetoothDevice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyDevice(m.current)
}

// Subscribe registers fn for state changes. Call the returned function to stop.
func (m *Manager) Subscribe(fn func(StateChange)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Connect opens a link to dev. Connecting to the device that is already
// connected is a no-op.
func (m *Manager) Connect(ctx context.Context, dev BluetoothDevice) error {
	m.op.Lock()
	defer m.op.Unlock()

	if dev.Address == "" {
		return NewError(CodeDeviceNotFound, nil)
	}

	state, cur := m.snapshot()
	if state == Connected && cur != nil && sameAddress(cur.Address, dev.Address) {
		m.log.Debug("already connected", "address", dev.Address)
		return nil
	}
	if state == Connected && cur != nil {
		m.nativeDisconnect(ctx, cur.Address)
	}

	m.set(Connecting, &dev, nil)
	if err := m.establish(ctx, dev); err != nil {
		return err
	}
	return nil
}

// Disconnect closes the link. It always ends in Disconnected; native failures
// are logged and dropped.
func (m *Manager) Disconnect(ctx context.Context) {
	m.op.Lock()
	defer m.op.Unlock()
	m.disconnectLocked(ctx)
}

// Reconnect tears down any existing link and connects to dev again. The result
// is advisory: false means the device could not be reached.
func (m *Manager) Reconnect(ctx context.Context, dev BluetoothDevice) bool {
	m.op.Lock()
	defer m.op.Unlock()

	if dev.Address == "" {
		return false
	}

	_, cur := m.snapshot()
	if cur != nil {
		m.nativeDisconnect(ctx, cur.Address)
	} else if addr := m.binding.ConnectedAddress(); addr != "" {
		m.nativeDisconnect(ctx, addr)
	}

	m.set(Reconnecting, &dev, nil)
	if err := m.establish(ctx, dev); err != nil {
		m.log.Warn("reconnect failed", "device", dev, "err", err)
		return false
	}
	return true
}

// Unpair drops the link to address if it is open and asks the platform to
// forget the pairing. Callers clear their stored selection whatever the result.
func (m *Manager) Unpair(ctx context.Context, address string) error {
	m.op.Lock()
	defer m.op.Unlock()

	_, cur := m.snapshot()
	if (cur != nil && sameAddress(cur.Address, address)) || sameAddress(m.binding.ConnectedAddress(), address) {
		m.disconnectLocked(ctx)
	}

	if err := m.binding.Unpair(ctx, address); err != nil {
		m.log.Warn("unpair failed", "address", address, "err", err)
		return NewError(CodeUnpairFailed, err)
	}
	m.log.Info("unpaired", "address", address)
	return nil
}

// Enabled reports whether the Bluetooth radio is on
func (m *Manager) Enabled(ctx context.Context) (bool, error) {
	on, err := m.binding.Enabled(ctx)
	if err != nil {
		return false, wrap(CodeUnknown, err)
	}
	return on, nil
}

// EnableBluetooth powers the radio on and returns the paired devices
func (m *Manager) EnableBluetooth(ctx context.Context) ([]BluetoothDevice, error) {
	devices, err := m.binding.EnableBluetooth(ctx)
	if err != nil {
		return nil, wrap(CodeBluetoothDisabled, err)
	}
	return devices, nil
}

// PairedDevices lists the devices the operating system has bonded with
func (m *Manager) PairedDevices(ctx context.Context) ([]BluetoothDevice, error) {
	devices, err := m.binding.PairedDevices(ctx)
	if err != nil {
		return nil, wrap(CodeScanFailed, err)
	}
	return devices, nil
}

// ScanDevices runs one discovery window. Found never repeats a paired device.
func (m *Manager) ScanDevices(ctx context.Context) (ScanResult, error) {
	m.op.Lock()
	defer m.op.Unlock()

	if m.opts.WaitForAdapter {
		if err := m.waitForAdapter(ctx); err != nil {
			return ScanResult{}, err
		}
	}

	res, err := m.binding.ScanDevices(ctx, m.opts.ScanWindow)
	if err != nil {
		return ScanResult{}, wrap(CodeScanFailed, err)
	}

	seen := make(map[string]bool, len(res.Paired)+len(res.Found))
	for _, d := range res.Paired {
		seen[strings.ToUpper(d.Address)] = true
	}
	found := res.Found[:0:0]
	for _, d := range res.Found {
		key := strings.ToUpper(d.Address)
		if d.Address == "" || seen[key] {
			continue
		}
		seen[key] = true
		found = append(found, d)
	}
	res.Found = found

	m.log.Debug("scan finished", "paired", len(res.Paired), "found", len(res.Found))
	return res, nil
}

// Primitives exposes the printing calls of the open link to the Executor
func (m *Manager) Primitives() Primitives {
	return m.binding
}

func (m *Manager) establish(ctx context.Context, dev BluetoothDevice) *Error {
	if err := m.dial(ctx, dev.Address); err != nil {
		pe := wrap(CodeConnectionFailed, err)
		m.set(Disconnected, nil, pe)
		return pe
	}
	m.set(Connected, &dev, nil)
	m.log.Info("connected", "device", dev)
	return nil
}

// dial runs the native connect under the connect budget. A connect that
// completes after the budget ran out is closed again in the background.
func (m *Manager) dial(ctx context.Context, address string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.binding.Connect(ctx, address)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		go m.discardLateLink(address, done)
		return fmt.Errorf("connect %s: %w", address, ctx.Err())
	}
}

func (m *Manager) discardLateLink(address string, done <-chan error) {
	if err := <-done; err != nil {
		return
	}
	m.op.Lock()
	defer m.op.Unlock()
	state, cur := m.snapshot()
	if state == Connected && cur != nil && sameAddress(cur.Address, address) {
		return
	}
	m.log.Debug("closing link that connected after timeout", "address", address)
	m.nativeDisconnect(context.Background(), address)
}

func (m *Manager) disconnectLocked(ctx context.Context) {
	_, cur := m.snapshot()
	addr := m.binding.ConnectedAddress()
	if cur != nil {
		addr = cur.Address
	}
	if addr != "" {
		m.nativeDisconnect(ctx, addr)
	}
	m.set(Disconnected, nil, nil)
}

// nativeDisconnect never fails; a panicking binding is treated like an error
func (m *Manager) nativeDisconnect(ctx context.Context, address string) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("disconnect panicked", "address", address, "panic", r)
		}
	}()
	if err := m.binding.Disconnect(ctx, address); err != nil {
		m.log.Warn("disconnect failed", "address", address, "err", err)
	}
}

func (m *Manager) waitForAdapter(ctx context.Context) *Error {
	deadline := time.NewTimer(m.opts.AdapterWait)
	defer deadline.Stop()
	tick := time.NewTicker(m.opts.AdapterPoll)
	defer tick.Stop()

	var lastErr error
	for {
		on, err := m.binding.Enabled(ctx)
		if err == nil && on {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return NewError(CodeBluetoothDisabled, ctx.Err())
		case <-deadline.C:
			if lastErr == nil {
				lastErr = ErrBluetoothDisabled
			}
			return wrap(CodeBluetoothDisabled, lastErr)
		case <-tick.C:
		}
	}
}

func (m *Manager) connectionLost(address string, err error) {
	_, cur := m.snapshot()
	if cur == nil || !sameAddress(cur.Address, address) {
		return
	}
	m.log.Warn("connection lost", "address", address, "err", err)
	m.set(Disconnected, nil, NewError(CodeConnectionLost, err))
}

func (m *Manager) snapshot() (State, *BluetoothDevice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, copyDevice(m.current)
}

// set records a transition and notifies subscribers outside the lock
func (m *Manager) set(s State, dev *BluetoothDevice, err *Error) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.current = copyDevice(dev)
	subs := make([]func(StateChange), len(m.subs))
	for i, sub := range m.subs {
		subs[i] = sub.fn
	}
	m.mu.Unlock()

	m.log.Debug("state", "from", prev, "to", s)
	change := StateChange{State: s, Device: copyDevice(dev), Err: err}
	for _, fn := range subs {
		fn(change)
	}
}

func copyDevice(d *BluetoothDevice) *BluetoothDevice {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
