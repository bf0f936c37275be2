//go:build linux

package transport

import (
	"context"
	"io"

	serial "github.com/luhtfiimanal/serialfeed"
	"github.com/luhtfiimanal/serialfeed/feed"
)

const defaultDriver = DriverTermios

func termios(device string, baud int) (feed.Transport, error) {
	return Termios{Config: serial.Config{Device: device, BaudRate: baud}}, nil
}

// Termios opens a Linux serial device in raw mode.
type Termios struct {
	Config serial.Config
}

func (t Termios) Open(ctx context.Context) (feed.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := serial.Open(t.Config)
	if err != nil {
		return nil, err
	}
	return termiosPort{port: p}, nil
}

type termiosPort struct {
	port *serial.Port
}

func (p termiosPort) Reader() (io.ReadCloser, error) {
	r, err := p.port.Reader()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (p termiosPort) Close() error {
	return p.port.Close()
}
