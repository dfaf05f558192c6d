package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("chatty"))
}

func TestNewLoggerToWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "info")
	log.Debug("hidden")
	log.Info("session authorized", slog.String("user_id", "7"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session authorized", entry["msg"])
	assert.Equal(t, "7", entry["user_id"])
}
