package bluetooth

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpos-print/internal/printer"
	"kpos-print/internal/receipt"
)

// fakePort captures written bytes
type fakePort struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	closed   bool
	writeErr error
}

func (p *fakePort) Read(b []byte) (int, error) { return 0, io.EOF }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.buf.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buf.Bytes()...)
}

func newTestBinding(t *testing.T, encoding string) *Binding {
	t.Helper()
	b, err := New(Options{Encoding: encoding, Logger: log.New(io.Discard)})
	require.NoError(t, err)
	b.pollEvery = time.Millisecond
	return b
}

func attachFake(b *Binding, address string) *fakePort {
	p := &fakePort{}
	b.attach(&link{address: address, path: "/dev/null", port: p})
	return p
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	_, err := New(Options{Encoding: "EBCDIC"})
	assert.Error(t, err)
}

func TestPrimitivesWithoutLink(t *testing.T) {
	b := newTestBinding(t, "")
	assert.ErrorIs(t, b.PrinterInit(), printer.ErrNotConnected)
	assert.ErrorIs(t, b.PrintText("x", printer.TextOptions{}), printer.ErrNotConnected)
	assert.Equal(t, "", b.ConnectedAddress())
}

func TestPrimitivesEncodeESCPOS(t *testing.T) {
	b := newTestBinding(t, "")
	p := attachFake(b, "AA:BB")

	require.NoError(t, b.PrinterInit())
	require.NoError(t, b.SetWidth(384))
	require.NoError(t, b.PrinterAlign(receipt.AlignCenter))
	require.NoError(t, b.SetBold(true))
	require.NoError(t, b.PrintText("LUNAS", printer.TextOptions{WidthMultiplier: 2, HeightMultiplier: 2}))
	require.NoError(t, b.PrintAndFeed(3))

	want := []byte{
		0x1b, '@',
		0x1d, 'W', 0x80, 0x01,
		0x1b, 'a', 1,
		0x1b, 'E', 1,
		0x1d, '!', 0x11, 'L', 'U', 'N', 'A', 'S', '\n', 0x1d, '!', 0x00,
		0x1b, 'd', 3,
	}
	assert.Equal(t, want, p.bytes())
}

func TestPrintTextBoldIsScoped(t *testing.T) {
	b := newTestBinding(t, "")
	p := attachFake(b, "AA:BB")

	require.NoError(t, b.PrintText("hi", printer.TextOptions{Bold: true, WidthMultiplier: 1, HeightMultiplier: 1}))
	assert.Equal(t, []byte{0x1b, 'E', 1, 'h', 'i', '\n', 0x1b, 'E', 0}, p.bytes())
}

func TestPrintColumn(t *testing.T) {
	b := newTestBinding(t, "")
	p := attachFake(b, "AA:BB")

	err := b.PrintColumn([]int{6, 6}, []receipt.Align{receipt.AlignLeft, receipt.AlignRight}, []string{"Kopi", "5.000"}, printer.TextOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Kopi   5.000\n", string(p.bytes()))

	err = b.PrintColumn([]int{6}, []receipt.Align{receipt.AlignLeft}, []string{"a", "b"}, printer.TextOptions{})
	assert.Error(t, err)
}

func TestPrintPicSendsRaster(t *testing.T) {
	b := newTestBinding(t, "")
	p := attachFake(b, "AA:BB")

	require.NoError(t, b.PrintPic(image.NewGray(image.Rect(0, 0, 20, 10)), 20))
	out := p.bytes()
	// width rounds down to 16 dots, 2 bytes per row, height 8
	assert.Equal(t, []byte{0x1d, 'v', '0', 0, 2, 0, 8, 0}, out[:8])
	assert.Len(t, out, 8+2*8)

	assert.Error(t, b.PrintPic(nil, 384))
}

func TestGBKText(t *testing.T) {
	b := newTestBinding(t, "GBK")
	p := attachFake(b, "AA:BB")

	require.NoError(t, b.PrintText("中文", printer.TextOptions{}))
	assert.Equal(t, []byte{0xd6, 0xd0, 0xce, 0xc4, '\n'}, p.bytes())
}

func TestWriteFailureIsConnectionLoss(t *testing.T) {
	b := newTestBinding(t, "")
	p := attachFake(b, "AA:BB")
	p.writeErr = errors.New("broken pipe")

	err := b.PrintAndFeed(1)
	assert.ErrorIs(t, err, printer.ErrNotConnected)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestDisconnect(t *testing.T) {
	b := newTestBinding(t, "")
	released := 0
	p := &fakePort{}
	b.attach(&link{address: "AA:BB", port: p, release: func() error { released++; return nil }})

	require.NoError(t, b.Disconnect(context.Background(), "CC:DD"))
	assert.Equal(t, "AA:BB", b.ConnectedAddress(), "other address is left alone")

	require.NoError(t, b.Disconnect(context.Background(), "aa:bb"))
	assert.Equal(t, "", b.ConnectedAddress())
	assert.True(t, p.closed)
	assert.Equal(t, 1, released)

	require.NoError(t, b.Disconnect(context.Background(), "AA:BB"))
	assert.Equal(t, 1, released)
}

func TestLateLinkIsClosed(t *testing.T) {
	b := newTestBinding(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	released := 0
	p := &fakePort{}
	err := b.adopt(ctx, &link{address: "AA:BB", port: p, release: func() error { released++; return nil }})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, p.closed)
	assert.Equal(t, 1, released)
	assert.Equal(t, "", b.ConnectedAddress())
}

func TestReplacedLinkIsClosed(t *testing.T) {
	b := newTestBinding(t, "")
	first := attachFake(b, "AA:BB")

	second := &fakePort{}
	require.NoError(t, b.adopt(context.Background(), &link{address: "AA:BB", port: second}))
	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.Equal(t, "AA:BB", b.ConnectedAddress())

	require.NoError(t, b.PrinterInit())
	assert.NotEmpty(t, second.bytes())
	assert.Empty(t, first.bytes())
}

func TestConnectToCurrentAddressIsNoop(t *testing.T) {
	b := newTestBinding(t, "")
	attachFake(b, "AA:BB")
	require.NoError(t, b.Connect(context.Background(), "aa:bb"))
	assert.Equal(t, "AA:BB", b.ConnectedAddress())
}

func TestDroppedLinkIsReported(t *testing.T) {
	b := newTestBinding(t, "")
	var alive atomic.Bool
	alive.Store(true)

	type loss struct {
		address string
		err     error
	}
	lost := make(chan loss, 1)
	b.NotifyConnectionLost(func(address string, err error) { lost <- loss{address, err} })

	p := &fakePort{}
	b.attach(&link{address: "AA:BB", path: "/dev/rfcomm0", port: p, alive: alive.Load})
	alive.Store(false)

	select {
	case l := <-lost:
		assert.Equal(t, "AA:BB", l.address)
		assert.ErrorIs(t, l.err, printer.ErrNotConnected)
	case <-time.After(time.Second):
		t.Fatal("loss was not reported")
	}
	assert.Equal(t, "", b.ConnectedAddress())
	assert.True(t, p.closed)
}

func TestClosedLinkStopsWatching(t *testing.T) {
	b := newTestBinding(t, "")
	var polls atomic.Int32
	called := false
	b.NotifyConnectionLost(func(string, error) { called = true })

	b.attach(&link{address: "AA:BB", port: &fakePort{}, alive: func() bool { polls.Add(1); return true }})
	require.NoError(t, b.Disconnect(context.Background(), "AA:BB"))

	n := polls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.LessOrEqual(t, polls.Load(), n+1)
	assert.False(t, called)
}
