package pipeline

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Index rebuilds idx from the indexable corpus and swaps it in.
func (p *Pipeline) Index(ctx context.Context, idx search.Index) (search.BuildInfo, error) {
	info, err := idx.Rebuild(ctx)
	if err != nil {
		return info, err
	}
	p.log.Info(ctx, "index published",
		logger.Int("documents", info.Documents),
		logger.Int("dim", info.Dim),
		logger.Duration("took", info.Took),
	)
	return info, nil
}
