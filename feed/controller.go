package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/text/encoding/unicode"

	"github.com/luhtfiimanal/serialfeed/lineproto"
	"github.com/luhtfiimanal/serialfeed/reassembly"
)

// Controller owns a transport and drives one generation at a time through
// open, read loop and cleanup. It is safe for concurrent use.
type Controller struct {
	transport Transport
	sink      Sink
	logger    *slog.Logger
	metrics   *Metrics

	readBuffer int
	maxLine    int
	overflow   OverflowPolicy
	stateHook  func(gen uint64, from, to State)
	endHook    func(gen uint64, reason EndReason, err error)

	mu    sync.Mutex
	state State
	gen   uint64
	cur   *generation
	last  *generation
}

type generation struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	reason EndReason
	err    error
	// cleanupErr holds only the teardown failures; Disconnect returns it.
	cleanupErr error
}

// New returns a disconnected Controller reading from t and dispatching to s.
func New(t Transport, s Sink, opts ...Option) *Controller {
	c := &Controller{
		transport:  t,
		sink:       s,
		readBuffer: DefaultReadBuffer,
		maxLine:    reassembly.DefaultMaxLine,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "feed")
	}
	if c.sink == nil {
		c.sink = SinkFunc(func(string, string) {})
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the identifier of the most recent generation, 0 if
// Connect was never called.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel closed when the active generation has fully ended.
// With no active generation the channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil {
		return c.cur.done
	}
	return closedChan
}

// Err returns the terminal error of the last finished generation, nil if it
// ended cleanly or none has finished.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	return c.last.err
}

// Connect starts a new generation: it opens the transport, acquires its
// reader and starts the read loop, returning once the controller is Reading.
// ctx bounds the open only; the generation lives until end of stream, a
// read error or Disconnect.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrAlreadyConnected, state)
	}
	c.gen++
	gctx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	g := &generation{id: c.gen, ctx: gctx, cancel: cancel, done: make(chan struct{})}
	c.cur = g
	c.setStateLocked(g, Opening)
	c.mu.Unlock()

	c.metrics.started()
	c.logger.Info("connecting", "generation", g.id)

	port, err := c.open(ctx, g)
	if err != nil {
		if g.ctx.Err() != nil {
			c.shutdown(g, nil, nil, Canceled, nil)
			return fmt.Errorf("generation %d: %w", g.id, ErrCanceled)
		}
		oerr := &OpenError{Generation: g.id, Err: err}
		c.logger.Error("open failed", "generation", g.id, "error", err)
		c.end(g, OpenFailed, oerr)
		return oerr
	}
	c.transition(g, Open)

	if g.ctx.Err() != nil {
		c.shutdown(g, port, nil, Canceled, nil)
		return fmt.Errorf("generation %d: %w", g.id, ErrCanceled)
	}

	reader, err := port.Reader()
	if err != nil {
		oerr := &OpenError{Generation: g.id, Err: fmt.Errorf("acquire reader: %w", err)}
		c.logger.Error("open failed", "generation", g.id, "error", oerr.Err)
		c.shutdown(g, port, nil, OpenFailed, oerr)
		return oerr
	}

	// Cancellation closes the reader, which unblocks a pending read.
	stop := context.AfterFunc(g.ctx, func() { _ = reader.Close() })

	c.transition(g, Reading)
	go c.run(g, port, reader, stop)
	return nil
}

// Disconnect cancels the active generation and waits until its cleanup has
// completed and the controller is Disconnected, or ctx is done. A failure to
// release the reader or close the transport is returned as *CleanupError;
// the controller is Disconnected regardless.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	g := c.cur
	c.mu.Unlock()
	if g == nil {
		return ErrNotConnected
	}

	g.cancel(ErrCanceled)
	select {
	case <-g.done:
		return g.cleanupErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel interrupts the active generation without waiting for cleanup.
// It is a no-op when disconnected.
func (c *Controller) Cancel() {
	c.mu.Lock()
	g := c.cur
	c.mu.Unlock()
	if g != nil {
		g.cancel(ErrCanceled)
	}
}

func (c *Controller) open(ctx context.Context, g *generation) (Port, error) {
	if c.transport == nil {
		return nil, ErrNoTransport
	}

	openCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(g.ctx, func() { cancel(context.Cause(g.ctx)) })
	defer stop()

	port, err := c.transport.Open(openCtx)
	if err == nil && port == nil {
		err = errors.New("transport returned no port")
	}
	return port, err
}

func (c *Controller) run(g *generation, port Port, reader io.ReadCloser, stopInterrupt func() bool) {
	reason, err := Canceled, error(nil)
	defer func() {
		if r := recover(); r != nil {
			reason, err = ReadFailed, &ReadError{Generation: g.id, Err: fmt.Errorf("panic: %v", r)}
		}
		stopInterrupt()
		c.shutdown(g, port, reader, reason, err)
	}()

	reason, err = c.readLoop(g, reader)
}

func (c *Controller) readLoop(g *generation, reader io.Reader) (EndReason, error) {
	src := unicode.UTF8BOM.NewDecoder().Reader(reader)
	lines := reassembly.New(reassembly.WithMaxLine(c.maxLine))
	parser := lineproto.NewParser(lineproto.WithSkipHook(func(s lineproto.Skip) {
		c.metrics.skip(s.Reason.String())
		c.logger.Debug("token skipped", "generation", g.id, "token", s.Token, "reason", s.Reason)
	}))

	buf := make([]byte, c.readBuffer)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if ferr := c.dispatch(g, lines, parser, string(buf[:n])); ferr != nil {
				return Overflowed, ferr
			}
		}
		if err == nil {
			continue
		}

		switch {
		case g.ctx.Err() != nil:
			return Canceled, nil
		case errors.Is(err, io.EOF):
			return EndOfStream, nil
		default:
			return ReadFailed, &ReadError{Generation: g.id, Err: err}
		}
	}
}

// dispatch feeds one chunk through reassembly and parsing into the sink.
func (c *Controller) dispatch(g *generation, lines *reassembly.Reassembler, parser *lineproto.Parser, chunk string) error {
	c.metrics.chunk(len(chunk))

	complete, err := lines.Feed(chunk)
	for _, line := range complete {
		c.metrics.line()
		for _, f := range parser.Parse(line) {
			c.metrics.field()
			c.sink.OnField(f.Key, f.Value)
		}
	}
	if err == nil {
		return nil
	}

	var oe *reassembly.OverflowError
	if errors.As(err, &oe) {
		c.metrics.overflow(oe.Lines)
	}
	c.logger.Warn("line dropped", "generation", g.id, "error", err, "policy", c.overflow)
	if c.overflow == OverflowDisconnect {
		return err
	}
	return nil
}

// shutdown moves g through Closing, releases the reader and then the port,
// and ends the generation. Cleanup failures are logged and joined into the
// result; they never keep the controller from reaching Disconnected.
func (c *Controller) shutdown(g *generation, port Port, reader io.ReadCloser, reason EndReason, err error) {
	c.transition(g, Closing)

	var cleanup []error
	if reader != nil {
		cleanup = append(cleanup, c.release(g, "release reader", reader.Close))
	}
	if port != nil {
		cleanup = append(cleanup, c.release(g, "close transport", port.Close))
	}
	g.cleanupErr = errors.Join(cleanup...)
	c.end(g, reason, errors.Join(err, g.cleanupErr))
}

func (c *Controller) release(g *generation, step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = &CleanupError{Generation: g.id, Step: step, Err: err}
			c.metrics.cleanupFailed()
			c.logger.Warn("cleanup failed", "generation", g.id, "step", step, "error", err)
		}
	}()
	return fn()
}

func (c *Controller) end(g *generation, reason EndReason, err error) {
	g.reason, g.err = reason, err
	g.cancel(nil)

	c.mu.Lock()
	c.setStateLocked(g, Disconnected)
	c.cur = nil
	c.last = g
	c.mu.Unlock()

	c.metrics.ended(reason)
	if err != nil {
		c.logger.Warn("generation ended", "generation", g.id, "reason", reason, "error", err)
	} else {
		c.logger.Info("generation ended", "generation", g.id, "reason", reason)
	}

	if c.endHook != nil {
		c.endHook(g.id, reason, err)
	}
	close(g.done)
}

func (c *Controller) transition(g *generation, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(g, to)
}

func (c *Controller) setStateLocked(g *generation, to State) {
	from := c.state
	c.state = to
	c.metrics.setState(to)
	c.logger.Debug("state changed", "generation", g.id, "from", from, "to", to)
	if c.stateHook != nil {
		c.stateHook(g.id, from, to)
	}
}
