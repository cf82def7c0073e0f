package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"kpos-print/internal/receipt"
)

// Result is what a print attempt reports. A failed print never surfaces as a
// panic or a bare platform error.
type Result struct {
	Success bool
	Err     *Error
}

// Job is a sequence of primitive calls run against a fresh link
type Job func(s *Session) error

// Executor runs print jobs with reconnect-before-print and
// disconnect-after-print semantics
type Executor struct {
	mgr *Manager
	cfg Config
	log *log.Logger

	// one job owns the link at a time
	mu sync.Mutex
}

// NewExecutor creates an executor printing through mgr with paper profile cfg
func NewExecutor(mgr *Manager, cfg Config, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Executor{mgr: mgr, cfg: cfg, log: logger.WithPrefix("print")}
}

// Config returns the paper profile the executor prints with
func (e *Executor) Config() Config {
	return e.cfg
}

// PrintWithReconnect reconnects to dev, runs job and always disconnects
// afterwards
func (e *Executor) PrintWithReconnect(ctx context.Context, dev *BluetoothDevice, job Job) Result {
	if dev == nil || dev.Address == "" {
		return Result{Err: NewError(CodeDeviceNotFound, nil)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mgr.Reconnect(ctx, *dev) {
		return Result{Err: NewError(CodeConnectionFailed, fmt.Errorf("reconnect to %s failed", dev))}
	}
	defer e.mgr.Disconnect(context.WithoutCancel(ctx))

	if err := e.run(job); err != nil {
		e.log.Error("print failed", "device", dev, "err", err)
		return Result{Err: err}
	}
	e.log.Info("printed", "device", dev)
	return Result{Success: true}
}

// PrintReceipt prints a command list, preceded by logo when it is not nil
func (e *Executor) PrintReceipt(ctx context.Context, dev *BluetoothDevice, cmds []receipt.Command, logo image.Image) Result {
	return e.PrintWithReconnect(ctx, dev, func(s *Session) error {
		if err := s.InitPrinter(); err != nil {
			return err
		}
		if logo != nil {
			if err := s.PrintImage(logo); err != nil {
				return err
			}
		}
		return s.Run(cmds)
	})
}

func (e *Executor) run(job Job) (pe *Error) {
	defer func() {
		if r := recover(); r != nil {
			pe = NewError(CodeUnknown, fmt.Errorf("print job panicked: %v", r))
		}
	}()
	s := &Session{p: e.mgr.Primitives(), cfg: e.cfg}
	if err := job(s); err != nil {
		var existing *Error
		if errors.As(err, &existing) {
			return existing
		}
		return wrap(CodeUnknown, err)
	}
	return nil
}

// Session is the primitive call surface handed to a Job. Calls run strictly
// in order, each finishing before the next starts.
type Session struct {
	p   Primitives
	cfg Config
}

// InitPrinter resets the printer and sets the paper width
func (s *Session) InitPrinter() error {
	if err := s.p.PrinterInit(); err != nil {
		return fmt.Errorf("init printer: %w", err)
	}
	if err := s.p.SetWidth(s.cfg.DeviceWidth); err != nil {
		return fmt.Errorf("set width: %w", err)
	}
	return nil
}

// PrintText prints one line of text
func (s *Session) PrintText(content string, opts TextOptions) error {
	if err := s.p.PrintText(content, normalize(opts)); err != nil {
		return fmt.Errorf("print text: %w", err)
	}
	return nil
}

// PrintColumn prints texts in fixed character columns
func (s *Session) PrintColumn(widths []int, aligns []receipt.Align, texts []string) error {
	if err := s.p.PrintColumn(widths, aligns, texts, normalize(TextOptions{})); err != nil {
		return fmt.Errorf("print column: %w", err)
	}
	return nil
}

// PrintLine prints char repeated across the paper
func (s *Session) PrintLine(char string) error {
	return s.PrintText(receipt.RenderLine(char, s.cfg.CharsPerLine), TextOptions{})
}

// Feed advances the paper n lines
func (s *Session) Feed(n int) error {
	if n < 0 {
		n = 0
	}
	if err := s.p.PrintAndFeed(n); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// PrintImage prints img scaled to the paper width
func (s *Session) PrintImage(img image.Image) error {
	if err := s.p.PrintPic(img, s.cfg.DeviceWidth); err != nil {
		return fmt.Errorf("print image: %w", err)
	}
	return nil
}

// Run replays a command list in order
func (s *Session) Run(cmds []receipt.Command) error {
	for i, c := range cmds {
		if err := s.apply(c); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func (s *Session) apply(c receipt.Command) error {
	switch c := c.(type) {
	case receipt.Text:
		return s.text(c)
	case receipt.Line:
		return s.PrintLine(c.Fill)
	case receipt.Row:
		return s.PrintText(receipt.RenderRow(c.Left, c.Right, s.cfg.CharsPerLine), TextOptions{})
	case receipt.Feed:
		return s.Feed(c.Lines)
	default:
		return fmt.Errorf("unknown command %T", c)
	}
}

// text applies alignment and weight around the line and restores the defaults
// so the next command starts clean
func (s *Session) text(t receipt.Text) error {
	if t.Align != receipt.AlignLeft {
		if err := s.p.PrinterAlign(t.Align); err != nil {
			return fmt.Errorf("align: %w", err)
		}
	}
	if t.Bold {
		if err := s.p.SetBold(true); err != nil {
			return fmt.Errorf("bold: %w", err)
		}
	}

	w, h := t.Size.Multipliers()
	content := strings.TrimRight(t.Content, "\n")
	if err := s.PrintText(content, TextOptions{Bold: t.Bold, WidthMultiplier: w, HeightMultiplier: h}); err != nil {
		return err
	}

	if t.Bold {
		if err := s.p.SetBold(false); err != nil {
			return fmt.Errorf("bold: %w", err)
		}
	}
	if t.Align != receipt.AlignLeft {
		if err := s.p.PrinterAlign(receipt.AlignLeft); err != nil {
			return fmt.Errorf("align: %w", err)
		}
	}
	return nil
}

func normalize(o TextOptions) TextOptions {
	if o.WidthMultiplier < 1 {
		o.WidthMultiplier = 1
	}
	if o.HeightMultiplier < 1 {
		o.HeightMultiplier = 1
	}
	return o
}
