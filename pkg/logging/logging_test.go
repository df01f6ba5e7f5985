package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetupVerbosityLevels(t *testing.T) {
	quiet, err := Setup(0, "")
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	verbose, err := Setup(1, "")
	require.NoError(t, err)
	assert.True(t, verbose.Core().Enabled(zapcore.DebugLevel))

	trace, err := Setup(2, "")
	require.NoError(t, err)
	assert.True(t, trace.Core().Enabled(zapcore.DebugLevel))
}

func TestSetupLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := Setup(0, path)
	require.NoError(t, err)

	logger.Info("hello from the test")
	// Sync can fail on the stderr sink when it is a pipe; the file sink is
	// flushed regardless.
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
}

func TestSafeSyncNilLogger(t *testing.T) {
	assert.NotPanics(t, func() { SafeSync(nil) })
}
