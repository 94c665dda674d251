// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/riskgate/internal/config"
)

// -- Test Helper Functions --

// setupBuffer resets the global logger and returns a buffer wired in as console output.
func setupBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("console logger colors the level", func(t *testing.T) {
		buf := setupBuffer(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "riskgate",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Named("nvd").Info("fetching CVEs")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "fetching CVEs")
		assert.Contains(t, out, ansiColors["green"]+"INFO"+ansiReset)
		assert.Contains(t, out, "riskgate.nvd.")
	})

	t.Run("json logger emits structured fields", func(t *testing.T) {
		buf := setupBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "riskgate"})

		GetLogger().Warn("soft failure", zap.String("software", "Slack"))
		Sync()

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "riskgate", entry["logger"])
		assert.Equal(t, "soft failure", entry["msg"])
		assert.Equal(t, "Slack", entry["software"])
	})

	t.Run("level filtering", func(t *testing.T) {
		buf := setupBuffer(t, config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Info("hidden")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := setupBuffer(t, config.LoggerConfig{Level: "loud", Format: "json"})

		GetLogger().Debug("hidden")
		GetLogger().Info("visible")
		Sync()
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("writes a rotated file copy", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "riskgate.log")
		setupBuffer(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1})

		GetLogger().Error("persisted entry")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "persisted entry")
	})

	t.Run("only initializes once", func(t *testing.T) {
		buf := setupBuffer(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"})
		first := GetLogger()

		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "second"}, zapcore.AddSync(&bytes.Buffer{}))
		assert.Same(t, first, GetLogger())

		GetLogger().Info("test")
		Sync()
		assert.Contains(t, buf.String(), "first")
		assert.NotContains(t, buf.String(), "second")
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	l := GetLogger()
	require.NotNil(t, l)
	assert.Nil(t, global.Load(), "fallback must not be stored globally")
}
