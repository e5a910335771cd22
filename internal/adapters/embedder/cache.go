package embedder

import (
	"context"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// QueryEmbedder embeds a single scenario.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Cached memoises query vectors by exact scenario text.
type Cached struct {
	inner QueryEmbedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with an LRU of size entries. A size of zero or less
// returns inner's results uncached.
func NewCached(inner QueryEmbedder, size int) (*Cached, error) {
	c := &Cached{inner: inner}
	if size > 0 {
		cache, err := lru.New[string, []float32](size)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// Dim returns the inner embedder's dimension.
func (c *Cached) Dim() int { return c.inner.Dim() }

// EmbedOne returns the cached vector for text, embedding it on a miss.
// Callers must not modify the returned slice.
func (c *Cached) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if c.cache == nil {
		return c.inner.EmbedOne(ctx, text)
	}
	if v, ok := c.cache.Get(text); ok {
		metrics.RecordEmbedCache(true)
		return v, nil
	}
	metrics.RecordEmbedCache(false)
	v, err := c.inner.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
