package postgres

import (
	"errors"
	"fmt"

	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// ErrInvalidDim is returned for a non-positive dimension.
var ErrInvalidDim = errors.New("invalid index dimension")

// ANN index types.
const (
	ANNFlat    = "flat"
	ANNHNSW    = "hnsw"
	ANNIVFFlat = "ivfflat"
)

// ANN configures the approximate nearest neighbour index on the vector column.
type ANN struct {
	Type           string
	M              int
	EfConstruction int
	EfSearch       int
	Lists          int
}

// DefaultANN returns an HNSW index with pgvector's default parameters.
func DefaultANN() ANN {
	return ANN{Type: ANNHNSW, M: 16, EfConstruction: 64, EfSearch: 40, Lists: 100}
}

func (a ANN) createIndex(table string) string {
	switch a.Type {
	case ANNHNSW:
		return fmt.Sprintf(`CREATE INDEX %s_dense ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			table, table, a.M, a.EfConstruction)
	case ANNIVFFlat:
		return fmt.Sprintf(`CREATE INDEX %s_dense ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
			table, table, a.Lists)
	}
	return ""
}

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithANN sets the vector index type and parameters. Non-positive parameters
// keep their defaults.
func WithANN(a ANN) Option {
	return func(x *Index) {
		switch a.Type {
		case ANNFlat, ANNHNSW, ANNIVFFlat:
			x.ann.Type = a.Type
		}
		if a.M > 0 {
			x.ann.M = a.M
		}
		if a.EfConstruction > 0 {
			x.ann.EfConstruction = a.EfConstruction
		}
		if a.EfSearch > 0 {
			x.ann.EfSearch = a.EfSearch
		}
		if a.Lists > 0 {
			x.ann.Lists = a.Lists
		}
	}
}

// WithLogger sets a custom logger for the index.
func WithLogger(l logger.Logger) Option {
	return func(x *Index) {
		if l != nil {
			x.log = l
		}
	}
}
