package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("chatty"))
}

func TestNewJSONOutput(t *testing.T) {
	defer SetLevel("info")

	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Out: &buf})
	l.Debug().Str("component", "registry").Msg("Asset added")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "registry", line["component"])
	assert.Equal(t, "Asset added", line["message"])
}

func TestLevelFilters(t *testing.T) {
	defer SetLevel("info")

	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "json", Out: &buf})
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}
