package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

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

func TestParseStream(t *testing.T) {
	in := "\uFEFFKey1: 1\tKey2: 0\nTemp:21.5 junk a:b:c\nPartial:1"
	var out bytes.Buffer

	require.NoError(t, parseStream(strings.NewReader(in), &out, 0, false, testLogger(t)))
	assert.Equal(t, "Key1=true\nKey2=false\nTemp=21.5\n", out.String())
}

func TestParseStream_Raw(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, parseStream(strings.NewReader("A:1 B:0\n"), &out, 0, true, testLogger(t)))
	assert.Equal(t, "A=1\nB=0\n", out.String())
}

func TestParseStream_OverflowSkipsLine(t *testing.T) {
	in := "Long:" + strings.Repeat("x", 64) + "\nShort:1\n"
	var out bytes.Buffer

	require.NoError(t, parseStream(strings.NewReader(in), &out, 16, false, testLogger(t)))
	assert.Equal(t, "Short=true\n", out.String())
}
