// File: sched/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime configuration. All parameters are immutable once the runtime
// is created; there is deliberately no mutation surface afterward.

package sched

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/momentics/hioload-co/api"
)

// Config holds parameters fixed at runtime creation.
type Config struct {
	// Name labels the runtime instance in stats and metrics.
	Name string `toml:"name"`

	// Workers is the number of worker threads. Defaults to the
	// available CPU count.
	Workers int `toml:"workers"`

	// StackSize is the default usable stack segment size in bytes,
	// rounded up to the pool's allocation class.
	StackSize int `toml:"stack_size"`

	// LocalCommit makes spawns from inside a coroutine commit directly
	// to the spawning worker's local queue instead of the shared
	// injector. Lower latency, but the new coroutine is only
	// steal-eligible, not fairly visible to all workers.
	LocalCommit bool `toml:"local_commit"`

	// PinWorkers locks each worker to its OS thread.
	PinWorkers bool `toml:"pin_workers"`

	// ParkInterval bounds how long an idle worker sleeps before
	// re-checking the queues, in nanoseconds when read from TOML.
	ParkInterval time.Duration `toml:"park_interval"`

	// BatchSize is the maximum number of handles a worker drains from
	// the injector in one pull.
	BatchSize int `toml:"batch_size"`

	// MaxPooledStacks bounds retained stacks per size class.
	MaxPooledStacks int `toml:"max_pooled_stacks"`
}

// DefaultConfig returns the defaults used by the global runtime.
func DefaultConfig() Config {
	return Config{
		Name:            "hioload-co",
		Workers:         runtime.NumCPU(),
		StackSize:       api.DefaultStackSize,
		ParkInterval:    2 * time.Millisecond,
		BatchSize:       16,
		MaxPooledStacks: 0, // pool default
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("sched: workers must be >= 1: %w", api.ErrInvalidArgument)
	}
	if c.StackSize < 0 {
		return fmt.Errorf("sched: negative stack size: %w", api.ErrInvalidArgument)
	}
	if c.ParkInterval <= 0 {
		return fmt.Errorf("sched: park interval must be positive: %w", api.ErrInvalidArgument)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("sched: batch size must be >= 1: %w", api.ErrInvalidArgument)
	}
	return nil
}

// LoadConfig reads a TOML file over DefaultConfig. Durations are plain
// integer nanoseconds in the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("sched: read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("sched: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
