package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatfiling/internal/logger"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	saved, level, format := log.Logger, zerolog.GlobalLevel(), zerolog.TimeFieldFormat
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = format
	})
}

func TestSetup_JSONFile(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "vatfiling.log")

	require.NoError(t, logger.Setup(logger.LogConfig{
		Level:  "debug",
		Format: "json",
		Output: path,
	}))

	l := logger.WithFiling(logger.WithComponent("filing"), "100000000001")
	l.Debug().Int("invoices", 2).Msg("Filing created")
	l.Trace().Msg("below the level")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "filing", entry["component"])
	assert.Equal(t, "100000000001", entry["vat_id"])
	assert.Equal(t, "Filing created", entry["message"])
	assert.EqualValues(t, 2, entry["invoices"])
}

func TestSetup_InvalidLevel(t *testing.T) {
	restoreGlobals(t)
	err := logger.Setup(logger.LogConfig{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := logger.DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "stderr", cfg.Output)
}
