package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Connect while a generation is active.
	ErrAlreadyConnected = errors.New("already connected or connecting")
	// ErrNotConnected is returned by Disconnect when no generation is active.
	ErrNotConnected = errors.New("not connected")
	// ErrNoTransport is reported when the controller has no transport.
	ErrNoTransport = errors.New("no transport available")
	// ErrCanceled is returned by Connect when Disconnect interrupted it.
	ErrCanceled = errors.New("connection canceled")
)

// OpenError reports a failure to open the transport or acquire its reader.
type OpenError struct {
	Generation uint64
	Err        error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("generation %d: open transport: %v", e.Generation, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ReadError reports a read failure that ended a generation.
type ReadError struct {
	Generation uint64
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("generation %d: read: %v", e.Generation, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// CleanupError reports a failure releasing the read handle or closing the
// transport. It never prevents the controller from reaching Disconnected.
type CleanupError struct {
	Generation uint64
	Step       string
	Err        error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("generation %d: %s: %v", e.Generation, e.Step, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
