package memory

import (
	"errors"

	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// ErrInvalidDim is returned for a non-positive or mismatched dimension.
var ErrInvalidDim = errors.New("invalid index dimension")

// Option applies a configuration option to the Index.
type Option func(*Index)

// WithBM25 sets the term saturation and length normalisation parameters.
func WithBM25(k1, b float64) Option {
	return func(x *Index) {
		if k1 > 0 {
			x.params.K1 = k1
		}
		if b >= 0 && b <= 1 {
			x.params.B = b
		}
	}
}

// WithFieldWeights sets the title and body field weights.
func WithFieldWeights(title, body float64) Option {
	return func(x *Index) {
		if title > 0 {
			x.params.TitleWeight = title
		}
		if body > 0 {
			x.params.BodyWeight = body
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
