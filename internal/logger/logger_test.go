package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter(t *testing.T) {
	t.Setenv("ENV", "")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitWithWriter("warn", &buf)

	log := WithComponent("pipeline")
	log.Info().Msg("hidden")
	log.Warn().Str("file", "a.txt.zst").Msg("skipping line")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "a.txt.zst", entry["file"])
	assert.Equal(t, "warn", entry["level"])
}

func TestInitBadLevel(t *testing.T) {
	t.Setenv("ENV", "")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitWithWriter("loud", &buf)

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestWithRun(t *testing.T) {
	t.Setenv("ENV", "")
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	InitWithWriter("info", &buf)

	l := WithRun("run-1")
	l.Info().Msg("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "run-1", entry["run_id"])
}
