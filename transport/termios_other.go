//go:build !linux

package transport

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/luhtfiimanal/serialfeed/feed"
)

const defaultDriver = DriverPortable

func termios(string, int) (feed.Transport, error) {
	return nil, fmt.Errorf("%s driver on %s: %w", DriverTermios, runtime.GOOS, errors.ErrUnsupported)
}
