// Package sink provides consumers for decoded telemetry fields.
//
// Every type here satisfies feed.Sink. Router dispatches by key, Table keeps
// the latest value of every key for display, Fanout copies fields to several
// sinks and Logger writes them to a slog.Logger.
package sink

import (
	"log/slog"
	"sync"

	"github.com/luhtfiimanal/serialfeed/feed"
)

// Handler receives the value of one key.
type Handler func(value string)

// Router dispatches each field to the handler registered for its key.
// Fields whose key has no handler are logged at debug level and dropped.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRouter returns an empty Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default().With("component", "router")
	}
	return &Router{handlers: make(map[string]Handler), logger: logger}
}

// Handle registers h for key, replacing any previous handler.
func (r *Router) Handle(key string, h Handler) {
	r.mu.Lock()
	r.handlers[key] = h
	r.mu.Unlock()
}

func (r *Router) OnField(key, value string) {
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("no handler for key", "key", key)
		return
	}
	h(value)
}

// Fanout forwards every field to each sink in order.
type Fanout []feed.Sink

func (f Fanout) OnField(key, value string) {
	for _, s := range f {
		s.OnField(key, value)
	}
}

// Logger returns a sink that logs every field at info level.
func Logger(logger *slog.Logger) feed.Sink {
	return feed.SinkFunc(func(key, value string) {
		logger.Info("field", "key", key, "value", value)
	})
}
