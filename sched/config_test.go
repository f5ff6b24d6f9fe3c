// Copyright 2026 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// config_test.go: Defaults, validation, and TOML loading.
package sched

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-co/api"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, runtime.NumCPU(), cfg.Workers)
	require.Equal(t, api.DefaultStackSize, cfg.StackSize)
	require.Positive(t, cfg.ParkInterval)
	require.Positive(t, cfg.BatchSize)
}

func TestConfig_Validate(t *testing.T) {
	bad := DefaultConfig()
	bad.Workers = 0
	require.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)

	bad = DefaultConfig()
	bad.StackSize = -1
	require.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)

	bad = DefaultConfig()
	bad.ParkInterval = 0
	require.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)

	bad = DefaultConfig()
	bad.BatchSize = 0
	require.ErrorIs(t, bad.Validate(), api.ErrInvalidArgument)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.toml")
	body := `
name = "test-runtime"
workers = 3
stack_size = 16384
local_commit = true
park_interval = 5000000
batch_size = 8
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "test-runtime", cfg.Name)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, 16384, cfg.StackSize)
	require.True(t, cfg.LocalCommit)
	require.Equal(t, 5*time.Millisecond, cfg.ParkInterval)
	require.Equal(t, 8, cfg.BatchSize)
	// unset keys keep their defaults
	require.False(t, cfg.PinWorkers)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("workers = 0"), 0o644))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}
