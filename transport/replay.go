package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	serial "github.com/luhtfiimanal/serialfeed"
	"github.com/luhtfiimanal/serialfeed/feed"
)

// Replay serves the contents of a capture file as if a device were sending
// it. ChunkSize limits how many bytes one read returns (0: no limit) and
// Interval paces reads. End of file is end of stream.
type Replay struct {
	Path      string
	ChunkSize int
	Interval  time.Duration
}

func (t Replay) Open(ctx context.Context) (feed.Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	return &streamPort{src: f, chunk: t.ChunkSize, interval: t.Interval}, nil
}

// streamPort turns any io.ReadCloser into a feed.Port.
type streamPort struct {
	src      io.ReadCloser
	chunk    int
	interval time.Duration

	mu      sync.Mutex
	reading bool
}

func (p *streamPort) Reader() (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reading {
		return nil, serial.ErrReaderBusy
	}
	p.reading = true
	return &streamReader{port: p, done: make(chan struct{})}, nil
}

func (p *streamPort) Close() error {
	return p.src.Close()
}

type streamReader struct {
	port    *streamPort
	done    chan struct{}
	once    sync.Once
	started bool
}

func (r *streamReader) Read(b []byte) (int, error) {
	if r.started && r.port.interval > 0 {
		t := time.NewTimer(r.port.interval)
		select {
		case <-r.done:
			t.Stop()
			return 0, serial.ErrClosed
		case <-t.C:
		}
	}
	r.started = true

	select {
	case <-r.done:
		return 0, serial.ErrClosed
	default:
	}
	if r.port.chunk > 0 && len(b) > r.port.chunk {
		b = b[:r.port.chunk]
	}
	return r.port.src.Read(b)
}

func (r *streamReader) Close() error {
	r.once.Do(func() {
		close(r.done)
		r.port.mu.Lock()
		r.port.reading = false
		r.port.mu.Unlock()
	})
	return nil
}
