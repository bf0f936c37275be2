package serial

import "errors"

// DefaultBaudRate is used when Config.BaudRate is zero.
const DefaultBaudRate = 115200

var (
	// ErrClosed is returned by Reader.Read after the reader or its port was closed.
	ErrClosed = errors.New("serial: closed")
	// ErrReaderBusy is returned by Port.Reader while another reader holds the port.
	ErrReaderBusy = errors.New("serial: reader already active")
)

// Config holds configuration parameters for opening a serial port.
type Config struct {
	Device   string
	BaudRate int
}
