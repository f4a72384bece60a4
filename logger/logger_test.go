package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { SetLevel(zapcore.InfoLevel) })

	require.NoError(t, InitLogger("debug", "rock_pattern", dir, time.Hour, time.Hour, 1024*1024, ""))
	Debugf("label %s done", "a")
	Infof("rules: %d", 3)
	Sync()

	data, err := os.ReadFile(filepath.Join(dir, "rock_pattern.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "label a done")
	require.Contains(t, string(data), "rules: 3")
}

func TestInitLoggerBadLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel(zapcore.InfoLevel) })
	require.NoError(t, InitLogger("verbose", "rock_pattern", t.TempDir(), time.Hour, time.Hour, 1024*1024, ""))
	Info("falls back to info")
}
