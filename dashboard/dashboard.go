// Package dashboard serves a small web UI and JSON API for a feed.Controller.
//
// Routes:
//
//	GET  /            embedded HTML dashboard
//	GET  /state       controller state, generation and latest fields
//	POST /connect     start a generation
//	POST /disconnect  end the active generation
//	GET  /ws          websocket: a snapshot, then one message per field
//	GET  /metrics     Prometheus exposition, when a gatherer is configured
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luhtfiimanal/serialfeed/feed"
	"github.com/luhtfiimanal/serialfeed/sink"
)

//go:embed static/index.html
var static embed.FS

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Controller is the part of *feed.Controller the dashboard drives.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	State() feed.State
	Generation() uint64
	Err() error
}

var _ Controller = (*feed.Controller)(nil)

// Status is the body of GET /state.
type Status struct {
	State      string        `json:"state"`
	Generation uint64        `json:"generation"`
	Error      string        `json:"error,omitempty"`
	Fields     []sink.Update `json:"fields"`
}

// Message is one websocket frame. Type is "snapshot" or "update".
type Message struct {
	Type   string        `json:"type"`
	Fields []sink.Update `json:"fields,omitempty"`
	Field  *sink.Update  `json:"field,omitempty"`
}

// Server is an http.Handler for the dashboard.
type Server struct {
	ctrl     Controller
	table    *sink.Table
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	buffer   int

	router   chi.Router
	upgrader websocket.Upgrader

	quit     chan struct{}
	quitOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithSubscriberBuffer sets how many updates a websocket client may lag
// before it starts missing them.
func WithSubscriberBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// New returns a Server for ctrl showing the fields collected in table.
func New(ctrl Controller, table *sink.Table, opts ...Option) *Server {
	s := &Server{
		ctrl:   ctrl,
		table:  table,
		buffer: 64,
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "dashboard")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.serveIndex)
	r.Get("/state", s.serveState)
	r.Post("/connect", s.serveConnect)
	r.Post("/disconnect", s.serveDisconnect)
	r.Get("/ws", s.serveWS)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close ends every open websocket session. http.Server.Shutdown does not
// track hijacked connections, so call Close alongside it.
func (s *Server) Close() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	st := Status{
		State:      s.ctrl.State().String(),
		Generation: s.ctrl.Generation(),
		Fields:     s.table.Snapshot(),
	}
	if err := s.ctrl.Err(); err != nil {
		st.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) serveConnect(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Connect(r.Context())
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.logger.Warn("connect", "error", err, "request_id", middleware.GetReqID(r.Context()))

	var oerr *feed.OpenError
	switch {
	case errors.Is(err, feed.ErrAlreadyConnected):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, feed.ErrNoTransport):
		s.writeError(w, http.StatusServiceUnavailable, err)
	case errors.As(err, &oerr):
		s.writeError(w, http.StatusBadGateway, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) serveDisconnect(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Disconnect(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, feed.ErrNotConnected):
		s.writeError(w, http.StatusConflict, err)
	default:
		// cleanup failed, but the controller is disconnected anyway
		s.logger.Warn("disconnect", "error", err, "request_id", middleware.GetReqID(r.Context()))
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	// subscribe before the snapshot so no update falls in between
	updates, cancel := s.table.Subscribe(s.buffer)
	defer cancel()

	if err := writeFrame(conn, Message{Type: "snapshot", Fields: s.table.Snapshot()}); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeWait))
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeFrame(conn, Message{Type: "update", Field: &u}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(m)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
