// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorePath points at the SQLite database file. Empty selects the
	// in-memory store.
	StorePath string `koanf:"store_path"`

	// ClickQueueSize bounds the in-memory click queue.
	ClickQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of click recording workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the click deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MinShareScore is the personal trust score required to share links,
	// view shared content, and sit on verification panels.
	MinShareScore float64 `koanf:"min_share_score"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:       "info",
		Addr:           ":9080",
		StorePath:      "",
		ClickQueueSize: 10_000,
		WorkerCount:    runtime.NumCPU(),
		DedupeSize:     50_000,
		MinShareScore:  0.5,
	}
}
