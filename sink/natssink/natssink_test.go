package natssink

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(tint.NewHandler(t.Output(), &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05",
	}))
}

type published struct {
	subject string
	data    []byte
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, published{subject, data})
	return nil
}

func TestSink_PublishesJSON(t *testing.T) {
	pub := &mockPublisher{}
	s := New(pub, "plant.switches", testLogger(t))
	fixed := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.OnField("SW1", "true")
	s.OnField("SW2", "false")

	require.Len(t, pub.messages, 2)
	assert.Equal(t, "plant.switches", pub.messages[0].subject)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.messages[1].data, &msg))
	assert.Equal(t, Message{Key: "SW2", Value: "false", Time: fixed}, msg)
	assert.Equal(t, int64(2), s.Published())
	assert.Zero(t, s.Failures())
}

func TestSink_DefaultSubject(t *testing.T) {
	s := New(&mockPublisher{}, "", nil)
	assert.Equal(t, DefaultSubject, s.Subject())
}

func TestSink_PublishErrorIsCountedNotPropagated(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats: connection closed")}
	s := New(pub, "", testLogger(t))

	s.OnField("SW1", "true")
	s.OnField("SW1", "false")

	assert.Equal(t, int64(2), s.Failures())
	assert.Zero(t, s.Published())
}
