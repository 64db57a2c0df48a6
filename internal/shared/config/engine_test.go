package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEngine_Defaults(t *testing.T) {
	cfg, err := LoadEngine("")
	require.NoError(t, err)

	require.Equal(t, 4, cfg.Workers.Count)
	require.Equal(t, time.Second, cfg.Workers.TickInterval)
	require.Equal(t, 4, cfg.Job.NumReducers)
	require.Equal(t, 3, cfg.Job.MaxAttempts)
	require.Equal(t, 30*time.Second, cfg.Job.TaskTimeout)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEngine_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "engine.yaml")
	content := []byte("workers:\n  count: 8\njob:\n  num_reducers: 2\n  task_timeout: 5s\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadEngine(path)
	require.NoError(t, err)

	require.Equal(t, 8, cfg.Workers.Count)
	require.Equal(t, 2, cfg.Job.NumReducers)
	require.Equal(t, 5*time.Second, cfg.Job.TaskTimeout)
	require.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep defaults
	require.Equal(t, 3, cfg.Job.MaxAttempts)
}

func TestLoadEngine_EnvOverride(t *testing.T) {
	t.Setenv("MRENGINE_WORKERS_COUNT", "16")
	t.Setenv("MRENGINE_JOB_MAX_ATTEMPTS", "5")

	cfg, err := LoadEngine("")
	require.NoError(t, err)

	require.Equal(t, 16, cfg.Workers.Count)
	require.Equal(t, 5, cfg.Job.MaxAttempts)
}
