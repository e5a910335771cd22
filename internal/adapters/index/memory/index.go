package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// Index publishes Snapshots built from a Loader. Queries read the current
// Snapshot without locking; Rebuild swaps in a new one atomically.
type Index struct {
	loader search.Loader
	dim    int
	params BM25
	log    logger.Logger

	current atomic.Pointer[Snapshot]
	build   sync.Mutex // one rebuild at a time
}

var _ search.Index = (*Index)(nil)

// New creates an empty Index for vectors of dim entries. Call Rebuild to load it.
func New(loader search.Loader, dim int, opts ...Option) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDim, dim)
	}
	x := &Index{loader: loader, dim: dim, params: DefaultBM25()}
	for _, opt := range opts {
		opt(x)
	}
	if x.log == nil {
		x.log = logger.Get().Named("memory_index")
	}
	x.current.Store(NewBuilder(dim, x.params).Finish())
	return x, nil
}

// Snapshot returns the published generation.
func (x *Index) Snapshot() *Snapshot { return x.current.Load() }

// Publish replaces the published generation. snap must have the index dimension.
func (x *Index) Publish(snap *Snapshot) error {
	if snap.Dim() != x.dim {
		return fmt.Errorf("%w: snapshot %d, index %d", ErrInvalidDim, snap.Dim(), x.dim)
	}
	x.current.Store(snap)
	metrics.UpdateIndexDocuments(snap.Len())
	return nil
}

// Rebuild loads every indexable document and publishes the result. On error
// the previous generation stays published.
func (x *Index) Rebuild(ctx context.Context) (search.BuildInfo, error) {
	x.build.Lock()
	defer x.build.Unlock()

	start := time.Now()
	b := NewBuilder(x.dim, x.params)
	if err := x.loader.Documents(ctx, b.Add); err != nil {
		return search.BuildInfo{}, fmt.Errorf("load documents: %w", err)
	}
	snap := b.Finish()
	if err := x.Publish(snap); err != nil {
		return search.BuildInfo{}, err
	}

	took := time.Since(start)
	metrics.RecordIndexSwap(snap.Len(), float64(took.Milliseconds()))
	x.log.Info(ctx, "index rebuilt",
		logger.Int("documents", snap.Len()),
		logger.Int("dim", x.dim),
		logger.Duration("took", took))

	return search.BuildInfo{Documents: snap.Len(), Dim: x.dim, Took: took, BuiltAt: snap.BuiltAt()}, nil
}

// Dense implements search.Dense.
func (x *Index) Dense(_ context.Context, vec []float32, n int) ([]search.Hit, error) {
	return x.current.Load().Dense(vec, n)
}

// Sparse implements search.Sparse.
func (x *Index) Sparse(_ context.Context, query string, n int) ([]search.Hit, error) {
	return x.current.Load().Sparse(query, n), nil
}

// Dim implements search.Dense.
func (x *Index) Dim() int { return x.dim }

// Size returns the number of documents in the published generation.
func (x *Index) Size() int { return x.current.Load().Len() }

// Close implements search.Index. The memory index holds no resources.
func (x *Index) Close() error { return nil }
