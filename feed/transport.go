package feed

import (
	"context"
	"io"
)

// Transport opens the device once per generation.
type Transport interface {
	Open(ctx context.Context) (Port, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context) (Port, error)

func (f TransportFunc) Open(ctx context.Context) (Port, error) {
	return f(ctx)
}

// Port is an open transport handle, owned by exactly one generation.
type Port interface {
	// Reader acquires the read handle. Its Close must unblock a pending Read
	// promptly and be safe to call more than once and concurrently with Read.
	Reader() (io.ReadCloser, error)
	// Close releases the transport. It is called after the read handle has
	// been closed.
	Close() error
}

// Sink consumes decoded fields, one call per field, in line and token order.
// OnField is called from the read loop; a slow sink slows the loop down.
type Sink interface {
	OnField(key, value string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(key, value string)

func (f SinkFunc) OnField(key, value string) {
	f(key, value)
}
