// File: internal/observability/logger_test.go
package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/flightcheck/internal/config"
)

func TestInitializeLoggerOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	InitializeLogger(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "flightcheck-test"})
	first := GetLogger()
	require.NotNil(t, first)

	// A second call must not replace the logger.
	InitializeLogger(config.LoggerConfig{Level: "error", Format: "console", ServiceName: "other"})
	assert.Same(t, first, GetLogger())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	// Must never return nil, even before initialization.
	logger := GetLogger()
	require.NotNil(t, logger)
	logger.Debug("fallback logger is usable")
}

func TestInitializeLoggerInvalidLevelFallsBack(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	InitializeLogger(config.LoggerConfig{Level: "shouting", Format: "json", ServiceName: "flightcheck-test"})
	logger := GetLogger()
	require.NotNil(t, logger)

	// Info must be enabled under the fallback level.
	assert.NotNil(t, logger.Check(zapcore.InfoLevel, "probe"))
}

func TestInitializeLoggerWritesFile(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	logFile := filepath.Join(t.TempDir(), "flightcheck.log")
	InitializeLogger(config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "flightcheck-test",
		LogFile:     logFile,
		MaxSize:     1,
	})

	GetLogger().Info("scenario engine boot probe")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "scenario engine boot probe"))
}
