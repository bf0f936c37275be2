package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(tint.NewHandler(t.Output(), &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05",
	}))
}

var errReaderClosed = errors.New("fake reader closed")

// fakePort is an in-memory port: the test writes device output into w.
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	readerErr      error
	readerCloseErr error
	closeErr       error

	mu     sync.Mutex
	events []string
}

func newFakePort() *fakePort {
	r, w := io.Pipe()
	return &fakePort{r: r, w: w}
}

func (p *fakePort) record(event string) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *fakePort) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePort) Reader() (io.ReadCloser, error) {
	if p.readerErr != nil {
		return nil, p.readerErr
	}
	p.record("acquire reader")
	return &fakeReader{port: p}, nil
}

func (p *fakePort) Close() error {
	p.record("close port")
	p.w.CloseWithError(io.ErrClosedPipe)
	return p.closeErr
}

type fakeReader struct {
	port *fakePort
	once sync.Once
}

func (r *fakeReader) Read(b []byte) (int, error) {
	return r.port.r.Read(b)
}

func (r *fakeReader) Close() error {
	r.once.Do(func() {
		r.port.record("release reader")
		r.port.r.CloseWithError(errReaderClosed)
	})
	return r.port.readerCloseErr
}

// fakeTransport hands out a fresh fakePort per Open.
type fakeTransport struct {
	mu      sync.Mutex
	ports   []*fakePort
	openErr error
	block   bool // Open waits for ctx to be canceled
	prepare func(*fakePort)
}

func (t *fakeTransport) Open(ctx context.Context) (Port, error) {
	if t.block {
		<-ctx.Done()
		return nil, context.Cause(ctx)
	}
	if t.openErr != nil {
		return nil, t.openErr
	}
	p := newFakePort()
	if t.prepare != nil {
		t.prepare(p)
	}
	t.mu.Lock()
	t.ports = append(t.ports, p)
	t.mu.Unlock()
	return p, nil
}

func (t *fakeTransport) port(i int) *fakePort {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ports[i]
}

type kv struct{ Key, Value string }

type recordingSink struct {
	mu     sync.Mutex
	fields []kv
}

func (s *recordingSink) OnField(key, value string) {
	s.mu.Lock()
	s.fields = append(s.fields, kv{key, value})
	s.mu.Unlock()
}

func (s *recordingSink) Fields() []kv {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]kv(nil), s.fields...)
}

type transition struct {
	Gen      uint64
	From, To State
}

type recorder struct {
	mu          sync.Mutex
	transitions []transition
	reasons     map[uint64]EndReason
}

func newRecorder() *recorder {
	return &recorder{reasons: make(map[uint64]EndReason)}
}

func (r *recorder) options() []Option {
	return []Option{
		WithStateHook(func(gen uint64, from, to State) {
			r.mu.Lock()
			r.transitions = append(r.transitions, transition{gen, from, to})
			r.mu.Unlock()
		}),
		WithEndHook(func(gen uint64, reason EndReason, _ error) {
			r.mu.Lock()
			r.reasons[gen] = reason
			r.mu.Unlock()
		}),
	}
}

func (r *recorder) Transitions() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.transitions...)
}

func (r *recorder) Reason(gen uint64) EndReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reasons[gen]
}

func fullCycle(gen uint64) []transition {
	return []transition{
		{gen, Disconnected, Opening},
		{gen, Opening, Open},
		{gen, Open, Reading},
		{gen, Reading, Closing},
		{gen, Closing, Disconnected},
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for generation to end")
	}
}

func write(t *testing.T, p *fakePort, s string) {
	t.Helper()
	_, err := p.w.Write([]byte(s))
	require.NoError(t, err)
}
