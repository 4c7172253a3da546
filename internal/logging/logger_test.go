package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Info().Str("key", "value").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "info", entry["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Debug().Msg("debug line")
	log.Info().Msg("info line")
	assert.Zero(t, buf.Len(), "debug and info should be filtered at warn level")

	log.Warn().Msg("warn line")
	assert.Contains(t, buf.String(), "warn line")
}

func TestSubTagsSubsystem(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json").Sub("engine")

	log.Info().Msg("tagged")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine", entry["subsystem"])
}

func TestSilentDiscards(t *testing.T) {
	log := Silent()
	// Must not panic and must not emit anywhere observable.
	log.Error().Msg("dropped")
	log.Sub("x").Info().Msg("dropped too")
}

func TestParseLevelUnknownDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "bogus", "json")
	log.Info().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}
