//go:build linux

package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Port is a Linux serial device opened in raw 8N1 mode.
// Reading goes through a Reader obtained from Port.Reader; at most one
// Reader may be active at a time.
type Port struct {
	file   *os.File
	config Config

	mu        sync.Mutex
	reader    *Reader
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens a serial port using the provided Config and returns a Port.
// The port is configured for raw, low-latency, non-buffered operation.
func Open(cfg Config) (*Port, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	baud, ok := baudToUnix(cfg.BaudRate)
	if !ok {
		return nil, fmt.Errorf("unsupported baud rate %d", cfg.BaudRate)
	}

	fd, err := unix.Open(cfg.Device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0666)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	if err := configure(fd, baud); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// Turn back into blocking mode now that config is done
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set blocking: %w", err)
	}

	return &Port{
		file:   os.NewFile(uintptr(fd), cfg.Device),
		config: cfg,
	}, nil
}

func configure(fd int, baud uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}

	// Raw mode
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL

	termios.Cflag &^= unix.CBAUD
	termios.Cflag |= baud

	// VMIN=1, VTIME=0: a read returns as soon as one byte is available
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, termios); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// Name returns the device path the port was opened with.
func (p *Port) Name() string {
	return p.config.Device
}

// BaudRate returns the configured bit rate.
func (p *Port) BaudRate() int {
	return p.config.BaudRate
}

// Reader acquires the port's read side. The returned Reader must be closed
// before another one can be acquired.
func (p *Port) Reader() (*Reader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	if p.reader != nil {
		return nil, ErrReaderBusy
	}

	// Self-pipe so Close can wake a reader blocked in poll
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	p.reader = &Reader{
		port:  p,
		done:  make(chan struct{}),
		pipeR: fds[0],
		pipeW: fds[1],
	}
	return p.reader, nil
}

func (p *Port) release(r *Reader) {
	p.mu.Lock()
	if p.reader == r {
		p.reader = nil
	}
	p.mu.Unlock()
}

// Close closes the active reader, if any, and then the device.
// Safe to call multiple times; subsequent calls return the first result.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		r := p.reader
		p.mu.Unlock()

		var readerErr error
		if r != nil {
			readerErr = r.Close()
		}
		p.closeErr = errors.Join(readerErr, p.file.Close())
	})
	return p.closeErr
}

// Reader is the exclusive, killable read side of a Port.
// Read blocks until data arrives; Close unblocks a pending Read promptly.
type Reader struct {
	port  *Port
	done  chan struct{}
	pipeR int // self-pipe read fd
	pipeW int // self-pipe write fd

	// held for the whole duration of a Read; one read in flight at a time
	readMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Read reads whatever bytes are available, blocking until at least one byte
// arrives, the device reports an error or hangup, or the reader is closed.
func (r *Reader) Read(b []byte) (int, error) {
	r.readMu.Lock()
	defer r.readMu.Unlock()

	if len(b) == 0 {
		return 0, nil
	}
	fd := int32(r.port.file.Fd())
	for {
		select {
		case <-r.done:
			return 0, ErrClosed
		default:
		}

		pfd := []unix.PollFd{
			{Fd: fd, Events: unix.POLLIN},
			{Fd: int32(r.pipeR), Events: unix.POLLIN},
		}
		if _, err := unix.Poll(pfd, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll: %w", err)
		}
		if pfd[1].Revents != 0 {
			return 0, ErrClosed
		}
		if pfd[0].Revents&unix.POLLNVAL != 0 {
			return 0, ErrClosed
		}
		if pfd[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			n, err := r.port.file.Read(b)
			if n == 0 && err == nil {
				err = io.EOF
			}
			return n, err
		}
	}
}

// Close wakes any pending Read, waits for it to return and releases the
// reader's resources. The port stays open. Safe to call multiple times.
func (r *Reader) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		// Wake up poll using self-pipe
		if _, err := unix.Write(r.pipeW, []byte{1}); err != nil {
			r.closeErr = fmt.Errorf("wake reader: %w", err)
		}

		r.readMu.Lock()
		r.closeErr = errors.Join(r.closeErr, unix.Close(r.pipeR), unix.Close(r.pipeW))
		r.readMu.Unlock()

		r.port.release(r)
	})
	return r.closeErr
}

func baudToUnix(baud int) (uint32, bool) {
	switch baud {
	case 1200:
		return unix.B1200, true
	case 2400:
		return unix.B2400, true
	case 4800:
		return unix.B4800, true
	case 9600:
		return unix.B9600, true
	case 19200:
		return unix.B19200, true
	case 38400:
		return unix.B38400, true
	case 57600:
		return unix.B57600, true
	case 115200:
		return unix.B115200, true
	case 230400:
		return unix.B230400, true
	case 460800:
		return unix.B460800, true
	case 921600:
		return unix.B921600, true
	default:
		return 0, false
	}
}
