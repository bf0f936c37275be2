package feed

import "log/slog"

// DefaultReadBuffer is the size of the buffer handed to each transport read.
const DefaultReadBuffer = 4096

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records controller activity into m. A nil m records nothing.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithReadBuffer sets how many bytes a single read may return.
func WithReadBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.readBuffer = n
		}
	}
}

// WithMaxLine caps a line at n bytes; 0 makes the line buffer unbounded.
// See the reassembly package.
func WithMaxLine(n int) Option {
	return func(c *Controller) {
		c.maxLine = n
	}
}

// WithOverflowPolicy decides whether an oversized line ends the generation.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(c *Controller) {
		c.overflow = p
	}
}

// WithStateHook calls fn on every state transition, in order. fn runs with
// the controller locked and must not call back into the Controller.
func WithStateHook(fn func(gen uint64, from, to State)) Option {
	return func(c *Controller) {
		c.stateHook = fn
	}
}

// WithEndHook calls fn once per generation after it reached Disconnected.
// err is nil for a clean end.
func WithEndHook(fn func(gen uint64, reason EndReason, err error)) Option {
	return func(c *Controller) {
		c.endHook = fn
	}
}
