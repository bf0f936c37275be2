package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luhtfiimanal/serialfeed/config"
	"github.com/luhtfiimanal/serialfeed/feed"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := config.Default()
	assert.Empty(t, c.Driver, "empty picks the platform default")
	assert.Equal(t, 115200, c.BaudRate)
	assert.Equal(t, 4096, c.ReadBuffer)
	assert.Equal(t, 65536, c.MaxLine())
	assert.Equal(t, feed.OverflowDiscard, c.OverflowPolicy())
	assert.Equal(t, "serialfeed.fields", c.NATS.Subject)
	assert.NoError(t, c.Validate())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "serialfeed.yaml", `
device: /dev/ttyUSB0
baud_rate: 9600
max_line_bytes: 0
overflow: disconnect
log_level: debug
nats:
  url: nats://localhost:4222
http:
  addr: ":8080"
`)
	c, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", c.Device)
	assert.Equal(t, 9600, c.BaudRate)
	assert.Equal(t, 0, c.MaxLine(), "0 keeps the line buffer unbounded")
	assert.Equal(t, feed.OverflowDisconnect, c.OverflowPolicy())
	assert.Equal(t, "nats://localhost:4222", c.NATS.URL)
	assert.Equal(t, "serialfeed.fields", c.NATS.Subject)
	assert.Equal(t, ":8080", c.HTTP.Addr)

	level, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "serialfeed.json", `{"device": "/dev/ttyACM0", "driver": "portable"}`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", c.Device)
	assert.Equal(t, "portable", c.Driver)
	assert.Equal(t, 65536, c.MaxLine())
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, "serialfeed.cue", `
device:    "/dev/ttyS1"
baud_rate: 57600 * 2
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", c.Device)
	assert.Equal(t, 115200, c.BaudRate)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "devise: /dev/ttyUSB0\n"},
		{"bad driver", "driver: bluetooth\n"},
		{"negative max line", "max_line_bytes: -1\n"},
		{"bad overflow", "overflow: truncate\n"},
		{"wrong type", "baud_rate: fast\n"},
		{"bad level", "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, "c.yaml", tt.content))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadReader(t *testing.T) {
	c, err := config.LoadReader(strings.NewReader("device: /dev/ttyUSB1\nread_buffer: 256\n"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", c.Device)
	assert.Equal(t, 256, c.ReadBuffer)
}
