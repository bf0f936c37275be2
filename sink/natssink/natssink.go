// Package natssink publishes telemetry fields to NATS.
//
// Each field becomes one JSON message on a fixed subject:
//
//	{"key":"SW1","value":"true","time":"2026-10-17T09:00:00Z"}
//
// Publishing never blocks the read loop on errors: a failed publish is
// logged and counted, and the field is dropped.
package natssink

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when New is given an empty subject.
const DefaultSubject = "serialfeed.fields"

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Message is the JSON payload published for each field.
type Message struct {
	Key   string    `json:"key"`
	Value string    `json:"value"`
	Time  time.Time `json:"time"`
}

// Sink publishes fields to a NATS subject.
type Sink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
	now     func() time.Time

	published atomic.Int64
	failures  atomic.Int64
}

// New returns a Sink publishing through pub.
func New(pub Publisher, subject string, logger *slog.Logger) *Sink {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default().With("component", "natssink")
	}
	return &Sink{pub: pub, subject: subject, logger: logger, now: time.Now}
}

// Subject returns the subject fields are published to.
func (s *Sink) Subject() string {
	return s.subject
}

func (s *Sink) OnField(key, value string) {
	data, err := json.Marshal(Message{Key: key, Value: value, Time: s.now().UTC()})
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("encode field", "key", key, "error", err)
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.failures.Add(1)
		s.logger.Warn("publish field", "subject", s.subject, "key", key, "error", err)
		return
	}
	s.published.Add(1)
}

// Published returns the number of fields published successfully.
func (s *Sink) Published() int64 {
	return s.published.Load()
}

// Failures returns the number of fields that could not be published.
func (s *Sink) Failures() int64 {
	return s.failures.Load()
}

// Connect dials a NATS server with reconnect handling that logs through
// logger. The caller owns the returned connection.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default().With("component", "natssink")
	}
	nc, err := nats.Connect(url,
		nats.Name("serialfeed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}
