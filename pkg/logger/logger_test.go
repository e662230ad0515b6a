package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWriter_SimpleFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(slog.LevelInfo, &buf, "simple", false)

	GetLogger().With("run", "abc").Info("workflow completed", "steps", 2)
	GetLogger().Debug("hidden")

	assert.Equal(t, "INFO workflow completed run=abc steps=2\n", buf.String())
}

func TestInitWriter_ColorWrapsLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(slog.LevelInfo, &buf, "simple", true)

	GetLogger().Warn("slow call")

	assert.Contains(t, buf.String(), "\033[33mWARN\033[0m slow call")
}

func TestOptions_ResolveFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvFile, "")

	opts := Options{}.resolve()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, DefaultFormat, opts.Format)

	opts = Options{Level: "error"}.resolve()
	assert.Equal(t, "error", opts.Level)
}

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.log")

	cleanup, err := Setup(Options{Level: "info", File: path})
	require.NoError(t, err)
	defer cleanup()

	_, err = Setup(Options{Level: "nope"})
	assert.Error(t, err)
}
