package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tingo/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("model", "User").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "User", entry["model"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "warn", Format: "console"}, &buf)
	require.NoError(t, err)

	log.Warn().Msg("careful")
	assert.Contains(t, buf.String(), "careful")
	assert.Contains(t, buf.String(), "WRN")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestVerbose(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "error", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("before")
	assert.Empty(t, buf.String())

	verbose := Verbose(log, false)
	verbose.Debug().Msg("after")
	assert.Contains(t, buf.String(), `"after"`)

	assert.Equal(t, zerolog.TraceLevel, Verbose(log, true).GetLevel())
}
