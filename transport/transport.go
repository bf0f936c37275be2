// Package transport adapts serial drivers to feed.Transport.
//
// Termios uses this module's raw Linux driver and is the default on Linux; it
// is not built elsewhere. Portable uses go.bug.st/serial and runs wherever
// that library does. Replay serves a capture file, which is useful for
// testing a pipeline without hardware.
package transport

import (
	"fmt"

	"github.com/luhtfiimanal/serialfeed/feed"
)

// Driver names accepted by ForDriver.
const (
	DriverTermios  = "termios"
	DriverPortable = "portable"
)

// ForDriver returns the transport for a named driver. An empty name selects
// DriverTermios on Linux and DriverPortable elsewhere; DriverTermios fails
// with errors.ErrUnsupported off Linux.
func ForDriver(driver, device string, baud int) (feed.Transport, error) {
	if driver == "" {
		driver = defaultDriver
	}
	switch driver {
	case DriverTermios:
		return termios(device, baud)
	case DriverPortable:
		return Portable{Device: device, BaudRate: baud}, nil
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}
