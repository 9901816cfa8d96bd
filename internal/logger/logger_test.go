package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/pulse/internal/errors"
	"codeberg.org/mutker/pulse/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSON(&buf, logger.DebugLevel).With("health")

	log.Info().Str("probe", "db").Msg("probe registered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "health", line["component"])
	assert.Equal(t, "db", line["probe"])
	assert.Equal(t, "probe registered", line["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSON(&buf, logger.WarnLevel)

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewJSON(&buf, logger.DebugLevel)

	log.ErrorWithCode(errors.New().New(errors.ErrProbeTimeout)).Msg("probe failed")
	assert.Contains(t, buf.String(), `"error_code":"probe_timeout"`)
}

func TestParseLevel(t *testing.T) {
	lvl, err := logger.ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logger.DebugLevel, lvl)

	lvl, err = logger.ParseLevel("warning")
	require.NoError(t, err)
	assert.Equal(t, logger.WarnLevel, lvl)

	_, err = logger.ParseLevel("loud")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		logger.Nop().With("x").Error().Msg("nothing")
	})
}
