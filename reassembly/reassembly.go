// Package reassembly turns arbitrarily fragmented text chunks into complete,
// newline-terminated lines.
//
// A Reassembler holds at most one partial line between calls. Whether that
// partial line may grow without bound is an explicit choice made at
// construction time:
//
//   - WithMaxLine(0): unbounded. The device is trusted to send newlines;
//     Feed never returns an error.
//   - WithMaxLine(n), n > 0: capped. A line longer than n bytes is dropped,
//     Feed reports an *OverflowError, and everything up to the next newline
//     is discarded so the stream resynchronizes on the following line.
//
// New uses DefaultMaxLine.
package reassembly

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxLine is the cap applied when no WithMaxLine option is given.
const DefaultMaxLine = 64 * 1024

// ErrOverflow is wrapped by every *OverflowError.
var ErrOverflow = errors.New("line exceeds maximum length")

// OverflowError reports lines dropped during one Feed call because they
// exceeded the configured maximum.
type OverflowError struct {
	Limit int
	Lines int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%d line(s) dropped: %v (limit %d bytes)", e.Lines, ErrOverflow, e.Limit)
}

func (e *OverflowError) Unwrap() error {
	return ErrOverflow
}

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithMaxLine caps a single line at n bytes. Zero disables the cap.
func WithMaxLine(n int) Option {
	return func(r *Reassembler) {
		if n < 0 {
			n = 0
		}
		r.maxLine = n
	}
}

// Reassembler accumulates text and yields complete lines.
// It is not safe for concurrent use; each connection owns its own instance.
type Reassembler struct {
	buf        []byte
	maxLine    int
	discarding bool
}

// New returns an empty Reassembler.
func New(opts ...Option) *Reassembler {
	r := &Reassembler{maxLine: DefaultMaxLine}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed appends chunk and returns every line it completed, in order.
// Lines are trimmed of surrounding whitespace; lines empty after trimming are
// not returned. The text after the last newline is kept for the next call.
//
// With a cap configured, the returned error is a non-nil *OverflowError when
// one or more lines were dropped; lines completed in the same call are still
// returned.
func (r *Reassembler) Feed(chunk string) ([]string, error) {
	var lines []string
	dropped := 0

	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			if r.hold(chunk) {
				dropped++
			}
			break
		}

		segment := chunk[:i]
		chunk = chunk[i+1:]

		if r.discarding {
			r.discarding = false
			continue
		}
		if r.maxLine > 0 && len(r.buf)+len(segment) > r.maxLine {
			r.buf = r.buf[:0]
			dropped++
			continue
		}

		line := segment
		if len(r.buf) > 0 {
			r.buf = append(r.buf, segment...)
			line = string(r.buf)
			r.buf = r.buf[:0]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	if dropped > 0 {
		return lines, &OverflowError{Limit: r.maxLine, Lines: dropped}
	}
	return lines, nil
}

// hold keeps an unterminated segment and reports whether doing so overflowed.
func (r *Reassembler) hold(segment string) bool {
	if r.discarding || segment == "" {
		return false
	}
	if r.maxLine > 0 && len(r.buf)+len(segment) > r.maxLine {
		r.buf = r.buf[:0]
		r.discarding = true
		return true
	}
	r.buf = append(r.buf, segment...)
	return false
}

// Pending returns the number of bytes of partial line currently held.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Reset drops any partial line.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
	r.discarding = false
}
