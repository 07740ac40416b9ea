package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hsgames/tcplib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.WithWriter(&buf), log.WithSource(false),
		log.WithAttrs("service", "echo"))

	logger.Info("tcp: server listen", slog.String("addr", "127.0.0.1:0"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "tcp: server listen", rec["msg"])
	assert.Equal(t, "echo", rec["service"])
	assert.Equal(t, "127.0.0.1:0", rec["addr"])
	assert.NotContains(t, rec, "source")
}

func TestNewTextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.WithWriter(&buf), log.WithFormat(log.FormatText),
		log.WithLevel(slog.LevelWarn))

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	level, err := log.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = log.ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = log.ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := log.ParseFormat("TEXT")
	require.NoError(t, err)
	assert.Equal(t, log.FormatText, f)

	f, err = log.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, log.FormatJSON, f)

	_, err = log.ParseFormat("xml")
	assert.Error(t, err)
}
