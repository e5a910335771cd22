// Package pipeline runs the offline corpus stages against the working corpus:
// ingest, label, embed, index and training export. Each stage is resumable;
// rows a stage has already written are skipped by the next run.
package pipeline

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

const defaultPageSize = 1000

// Pipeline binds the stages to one corpus store.
type Pipeline struct {
	store    repository.Store
	pageSize int
	log      logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPageSize sets how many rows a stage reads per page.
func WithPageSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New creates a Pipeline over store.
func New(store repository.Store, opts ...Option) *Pipeline {
	p := &Pipeline{store: store, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Get().Named("pipeline")
	}
	return p
}

func (p *Pipeline) each(ctx context.Context, sel repository.Selection, withComments bool, fn func(page []model.Submission) error) error {
	q := repository.PageQuery{Selection: sel, Limit: p.pageSize, WithComments: withComments}
	return repository.Each(ctx, p.store, q, fn)
}
