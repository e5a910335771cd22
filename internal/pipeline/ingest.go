package pipeline

import (
	"context"
	"errors"

	"github.com/jasonherngwang/peoples-court/internal/adapters/source"
	"github.com/jasonherngwang/peoples-court/internal/domain/ingest"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Ingest streams submission dumps, then comment dumps, into the corpus.
func (p *Pipeline) Ingest(ctx context.Context, postPaths, commentPaths []string, opts ...ingest.Option) (ingest.Report, error) {
	if len(postPaths) == 0 && len(commentPaths) == 0 {
		return ingest.Report{}, ErrNoSources
	}
	posts, closePosts, err := openAll(postPaths)
	if err != nil {
		return ingest.Report{}, err
	}
	defer closePosts()
	comments, closeComments, err := openAll(commentPaths)
	if err != nil {
		return ingest.Report{}, err
	}
	defer closeComments()

	p.log.Info(ctx, "ingest starting",
		logger.Int("submission_sources", len(posts)),
		logger.Int("comment_sources", len(comments)),
	)
	opts = append([]ingest.Option{ingest.WithLogger(p.log.Named("ingest"))}, opts...)
	return ingest.New(p.store, opts...).Run(ctx, posts, comments)
}

func openAll(paths []string) ([]ingest.Lines, func(), error) {
	var (
		lines   []ingest.Lines
		readers []*source.Reader
	)
	closeAll := func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}
	for _, path := range paths {
		r, err := source.Open(path)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		readers = append(readers, r)
		lines = append(lines, r)
	}
	return lines, closeAll, nil
}

// ErrNoSources is returned when a stage is given nothing to read.
var ErrNoSources = errors.New("pipeline: no sources")
