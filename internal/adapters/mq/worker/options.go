// Package worker defines the workers that drain the click queue into the
// store and refresh the derived trust scores.
package worker

import "github.com/okian/vouch/pkg/logger"

// Option applies a configuration option to the ClickWorker.
type Option func(*ClickWorker)

// WithName sets the worker's name, used in logs.
func WithName(name string) Option {
	return func(w *ClickWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(log logger.Logger) Option {
	return func(w *ClickWorker) {
		if log != nil {
			w.log = log
		}
	}
}
