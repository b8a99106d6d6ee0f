package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestNewWritesStructuredJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := New(nil, Config{
		ServiceName: "stripe-migrate",
		Environment: "test",
		Version:     "0.1.0",
		Level:       "debug",
		OutputPaths: []string{path},
	})
	require.NoError(t, err)

	log.Named("catalog.phase").Debug("price created", zap.String("source_id", "pr_1"))
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry))
	assert.Equal(t, "price created", entry["msg"])
	assert.Equal(t, "catalog.phase", entry["logger"])
	assert.Equal(t, "stripe-migrate", entry["service"])
	assert.Equal(t, "pr_1", entry["source_id"])
	assert.Contains(t, entry, "ts")
}

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "console", normalizeFormat(" Console "))
	assert.Equal(t, "json", normalizeFormat("logfmt"))
	assert.Equal(t, "json", normalizeFormat(""))
}
