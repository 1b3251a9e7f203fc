package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "interchange.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", Encoding: "json", FilePath: path})
	require.NoError(t, err)

	logger.Infow("room was created", string(RoomID), "r1")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"roomId":"r1"`)
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Desugar().Core().Enabled(zap.InfoLevel))
}

func TestWithAndFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := With(zap.New(core).Sugar(), Adapter, Lifecycle)

	logger.Infow("joined", Fields(map[ExtraKey]any{RoomID: "r1"})...)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "Adapter", fields["category"])
	assert.Equal(t, "Lifecycle", fields["subCategory"])
	assert.Equal(t, "r1", fields["roomId"])
}
