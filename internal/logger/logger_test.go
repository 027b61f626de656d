package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	// 未知级别回退到 info
	log, err = NewLogger(Config{Level: "nonsense"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "app.log")

	log, err := NewLogger(Config{Level: "info", LogFile: logFile, MaxSize: 1})
	require.NoError(t, err)

	log.Info("startup")
	_ = log.Sync() // stdout 的 sync 在部分平台会报 EINVAL，忽略


	assert.FileExists(t, logFile)
}
