package worker

import "github.com/jasonherngwang/peoples-court/pkg/logger"

// Option configures an InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName labels the worker in logs. Pools name workers by slot.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the parent logger; the worker logs under its name.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l == nil {
			return
		}
		w.logger = l
	}
}
