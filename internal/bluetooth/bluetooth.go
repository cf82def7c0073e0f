// Package bluetooth is the native printer binding: it finds paired receipt
// printers, opens a serial link to one of them and speaks ESC/POS over it.
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.bug.st/serial"
	"golang.org/x/text/encoding"

	"kpos-print/internal/escpos"
	"kpos-print/internal/printer"
)

// Errors raised while setting up a link
var (
	ErrRFCOMMFailed      = errors.New("failed to establish RFCOMM connection")
	ErrPrivilegeRequired = errors.New("root privileges required for RFCOMM")
)

// DefaultChannel is the RFCOMM channel SPP printers listen on
const DefaultChannel = 1

// Options configure a Binding
type Options struct {
	Encoding string // printer code page, UTF-8 or GBK
	Channel  int    // RFCOMM channel
	Logger   *log.Logger
}

// link is one open serial connection to a printer
type link struct {
	address string
	path    string
	port    io.ReadWriteCloser
	release func() error // tears down the OS side, may be nil
	alive   func() bool  // nil when loss cannot be detected
	done    chan struct{}
}

// Binding implements printer.Binding and printer.LossNotifier
type Binding struct {
	channel   int
	enc       encoding.Encoding
	log       *log.Logger
	pollEvery time.Duration

	mu   sync.Mutex
	link *link
	lost func(address string, err error)
}

var _ printer.Binding = (*Binding)(nil)
var _ printer.LossNotifier = (*Binding)(nil)

// New creates a binding with nothing connected
func New(opts Options) (*Binding, error) {
	enc, err := escpos.Encoding(opts.Encoding)
	if err != nil {
		return nil, err
	}
	if opts.Channel <= 0 {
		opts.Channel = DefaultChannel
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Binding{
		channel:   opts.Channel,
		enc:       enc,
		log:       opts.Logger.WithPrefix("bluetooth"),
		pollEvery: time.Second,
	}, nil
}

// serialMode is what SPP printers expect on the virtual port
var serialMode = &serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

func openPort(path string) (serial.Port, error) {
	port, err := serial.Open(path, serialMode)
	if err != nil {
		var pe *serial.PortError
		if errors.As(err, &pe) && pe.Code() == serial.PermissionDenied {
			return nil, fmt.Errorf("open port %s: %w: %w", path, printer.ErrPermissionDenied, err)
		}
		if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
			return nil, fmt.Errorf("open port %s: %w: %w", path, printer.ErrDeviceNotFound, err)
		}
		return nil, fmt.Errorf("open port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(3 * time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("configure port %s: %w", path, err)
	}
	return port, nil
}

// Connect opens a link to address. A link to another device is closed first.
func (b *Binding) Connect(ctx context.Context, address string) error {
	b.mu.Lock()
	cur := b.link
	b.mu.Unlock()
	if cur != nil {
		if strings.EqualFold(cur.address, address) {
			return nil
		}
		if err := b.Disconnect(ctx, cur.address); err != nil {
			b.log.Warn("closing previous link", "address", cur.address, "err", err)
		}
	}

	l, err := b.dial(ctx, address)
	if err != nil {
		return err
	}
	return b.adopt(ctx, l)
}

// adopt makes a freshly dialled link current. A link that comes up after the
// caller stopped waiting has no owner and is closed.
func (b *Binding) adopt(ctx context.Context, l *link) error {
	if err := ctx.Err(); err != nil {
		if cerr := l.close(); cerr != nil {
			b.log.Debug("closing late link", "address", l.address, "err", cerr)
		}
		return fmt.Errorf("connect %s: %w", l.address, err)
	}
	b.attach(l)
	b.log.Info("link open", "address", l.address, "port", l.path)
	return nil
}

// attach makes l the current link and starts watching it. A link it replaces
// is closed.
func (b *Binding) attach(l *link) {
	l.done = make(chan struct{})
	b.mu.Lock()
	prev := b.link
	b.link = l
	b.mu.Unlock()
	if prev != nil && prev != l {
		if err := prev.close(); err != nil {
			b.log.Warn("closing replaced link", "address", prev.address, "err", err)
		}
	}
	if l.alive != nil {
		go b.watch(l)
	}
}

// watch polls the link until it is closed or disappears underneath us
func (b *Binding) watch(l *link) {
	ticker := time.NewTicker(b.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if l.alive() {
				continue
			}
			b.mu.Lock()
			current := b.link == l
			if current {
				b.link = nil
			}
			notify := b.lost
			b.mu.Unlock()
			if !current {
				return
			}
			if err := l.close(); err != nil {
				b.log.Debug("closing dropped link", "address", l.address, "err", err)
			}
			b.log.Warn("link dropped", "address", l.address, "port", l.path)
			if notify != nil {
				notify(l.address, fmt.Errorf("%s vanished: %w", l.path, printer.ErrNotConnected))
			}
			return
		}
	}
}

// Disconnect closes the link to address. Closing an unknown address is a no-op.
func (b *Binding) Disconnect(ctx context.Context, address string) error {
	b.mu.Lock()
	l := b.link
	if l == nil || !strings.EqualFold(l.address, address) {
		b.mu.Unlock()
		return nil
	}
	b.link = nil
	b.mu.Unlock()

	if err := l.close(); err != nil {
		return fmt.Errorf("disconnect %s: %w", address, err)
	}
	b.log.Debug("link closed", "address", address)
	return nil
}

// ConnectedAddress returns the address of the open link, or ""
func (b *Binding) ConnectedAddress() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.link == nil {
		return ""
	}
	return b.link.address
}

// NotifyConnectionLost registers the callback fired when an open link drops
func (b *Binding) NotifyConnectionLost(fn func(address string, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lost = fn
}

func (l *link) close() error {
	if l.done != nil {
		select {
		case <-l.done:
		default:
			close(l.done)
		}
	}
	var errs []error
	if l.port != nil {
		errs = append(errs, l.port.Close())
	}
	if l.release != nil {
		errs = append(errs, l.release())
	}
	return errors.Join(errs...)
}
