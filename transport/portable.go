package transport

import (
	"context"
	"fmt"
	"io"
	"sync"

	bugst "go.bug.st/serial"

	serial "github.com/luhtfiimanal/serialfeed"
	"github.com/luhtfiimanal/serialfeed/feed"
)

// Portable opens a serial device through go.bug.st/serial at 8N1.
//
// That library can only interrupt a blocked Read by closing the port, so
// closing the read handle closes the port as well.
type Portable struct {
	Device   string
	BaudRate int
}

func (t Portable) Open(ctx context.Context) (feed.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := t.BaudRate
	if baud == 0 {
		baud = serial.DefaultBaudRate
	}
	p, err := bugst.Open(t.Device, &bugst.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.Device, err)
	}
	return &portablePort{port: p}, nil
}

type portablePort struct {
	port bugst.Port

	mu      sync.Mutex
	reading bool

	closeOnce sync.Once
}

func (p *portablePort) Reader() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reading {
		return nil, serial.ErrReaderBusy
	}
	p.reading = true
	return &portableReader{port: p, done: make(chan struct{})}, nil
}

// closePort closes the device once; only the call that closed it gets the
// error.
func (p *portablePort) closePort() (err error) {
	p.closeOnce.Do(func() {
		err = p.port.Close()
	})
	return err
}

func (p *portablePort) Close() error {
	return p.closePort()
}

type portableReader struct {
	port *portablePort
	done chan struct{}
	once sync.Once
}

func (r *portableReader) Read(b []byte) (int, error) {
	select {
	case <-r.done:
		return 0, serial.ErrClosed
	default:
	}
	n, err := r.port.port.Read(b)
	if err != nil {
		select {
		case <-r.done:
			return n, serial.ErrClosed
		default:
		}
	}
	return n, err
}

func (r *portableReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.port.closePort()
	})
	return err
}
