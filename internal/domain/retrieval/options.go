package retrieval

import (
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/fusion"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Default engine parameters.
const (
	DefaultPool              = 20
	DefaultK                 = 3
	DefaultMaxK              = 10
	DefaultBranchTimeout     = 5 * time.Second
	DefaultClassifierTimeout = 5 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier enables the consensus branch.
func WithClassifier(c consensus.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithPool sets how many hits each retrieval branch returns.
func WithPool(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pool = n
		}
	}
}

// WithK sets the default and the largest accepted precedent count.
func WithK(def, limit int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultK = def
		}
		if limit > 0 {
			e.maxK = limit
		}
	}
}

// WithFusion sets the rank fusion parameters.
func WithFusion(f fusion.RRF) Option {
	return func(e *Engine) { e.rrf = f }
}

// WithBranchTimeout bounds each of the dense and sparse branches.
func WithBranchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.branchTimeout = d
		}
	}
}

// WithClassifierTimeout bounds the consensus branch.
func WithClassifierTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.classifierTimeout = d
		}
	}
}

// WithFailOnUpstream makes any failed retrieval branch fail the request.
func WithFailOnUpstream(strict bool) Option {
	return func(e *Engine) { e.failOnUpstream = strict }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
