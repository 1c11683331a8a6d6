package utilities

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromString(tt.in))
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")
	cfg := ConfigFromEnv()
	assert.True(t, cfg.Dev)
	assert.Equal(t, "debug", cfg.Level)

	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_FILE", "/tmp/fieldmate.log")
	cfg = ConfigFromEnv()
	assert.False(t, cfg.Dev)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "/tmp/fieldmate.log", cfg.File)
}

func TestInit_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldmate.log")
	lg, err := Init(Config{Level: "debug", File: path})
	require.NoError(t, err)

	lg.Sugar().Infow("hello", "k", "v")
	require.NoError(t, lg.Sync())

	// the link name points at today's file
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"hello"`)
	assert.Contains(t, string(b), `"k":"v"`)
}

func TestInit_Stdout(t *testing.T) {
	lg, err := Init(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, lg.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, lg.Core().Enabled(zapcore.WarnLevel))

	dev, err := Init(Config{Level: "debug", Dev: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}

func TestRotatingWriterDefaultsMaxAge(t *testing.T) {
	w, err := rotatingWriter(filepath.Join(t.TempDir(), "x.log"), 0)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Write([]byte("line\n"))
	assert.NoError(t, err)
}

func TestIDs(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)

	s1, s2 := NewSnowflakeID(), NewSnowflakeID()
	n1, err := strconv.ParseInt(s1, 10, 64)
	require.NoError(t, err)
	n2, err := strconv.ParseInt(s2, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, n2, n1, "ids from one node increase")

	_, err = strconv.ParseInt(NewSnowflakeIDWithNode(3), 10, 64)
	assert.NoError(t, err)
	// node ids above 1023 are rejected by snowflake
	assert.Len(t, NewSnowflakeIDWithNode(5000), 27)
}
