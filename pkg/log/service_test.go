package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	config "github.com/mwantia/chansync/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(level string) config.LogServerConfig {
	return config.LogServerConfig{
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

func TestLoggerService_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLoggerService("test", testConfig("WARN"), &buf)

	logger.Debug("hidden %d", 1)
	logger.Info("hidden %d", 2)
	logger.Warn("visible %d", 3)
	logger.Error("visible %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 3")
	assert.Contains(t, out, "visible 4")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestLoggerService_Named(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLoggerService("agent", testConfig("DEBUG"), &buf)

	logger.Named("ingest").Info("file received")

	assert.Contains(t, buf.String(), "[agent/ingest] file received")
}

func TestLoggerService_JSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := testConfig("INFO")
	cfg.JSON = true
	logger := NewWriterLoggerService("agent", cfg, &buf)

	logger.Info("cycle %s done", "abc")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "agent", entry.Service)
	assert.Equal(t, "cycle abc done", entry.Message)
}

func TestLoggerService_PercentWithoutArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLoggerService("", testConfig("INFO"), &buf)

	logger.Info("100% done")

	assert.Contains(t, buf.String(), "100% done")
}

func TestParse(t *testing.T) {
	assert.Equal(t, Debug, Parse("debug"))
	assert.Equal(t, Warn, Parse("WARNING"))
	assert.Equal(t, Error, Parse(" error "))
	assert.Equal(t, Info, Parse("unknown"))
}
