package service

import (
	"context"

	"github.com/jasonherngwang/peoples-court/internal/adapters/embedder"
	"github.com/jasonherngwang/peoples-court/internal/adapters/index/memory"
	"github.com/jasonherngwang/peoples-court/internal/adapters/index/postgres"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/config"
	"github.com/jasonherngwang/peoples-court/internal/domain/embedding"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

const loaderPageSize = 1000

// NewEncoder builds the configured embedding provider, truncated and
// normalised to cfg.EmbedDim.
func NewEncoder(cfg *config.Config) (*embedding.Embedder, error) {
	enc, err := embedder.New(embedder.Config{
		Provider: cfg.EmbedProvider,
		Model:    cfg.EmbedModel,
		Endpoint: cfg.EmbedEndpoint,
		APIKey:   cfg.EmbedAPIKey,
		Timeout:  cfg.EmbedTimeout(),
	})
	if err != nil {
		return nil, err
	}
	trunc, err := embedding.NewTruncator(cfg.EmbedDim)
	if err != nil {
		return nil, err
	}
	return embedding.NewEmbedder(enc, trunc), nil
}

// OpenIndex creates the index backend named by cfg.IndexBackend over the
// indexable rows of store. A memory index starts empty. A postgres index is
// prepared and exposes whatever generation it last published.
func OpenIndex(ctx context.Context, cfg *config.Config, store repository.Store, log logger.Logger) (search.Index, error) {
	if log == nil {
		log = logger.Get()
	}
	loader := repository.NewLoader(store, loaderPageSize)

	switch cfg.IndexBackend {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		idx, err := postgres.New(pool, loader, cfg.EmbedDim,
			postgres.WithANN(postgres.ANN{
				Type:           cfg.ANNIndexType,
				M:              cfg.ANNM,
				EfConstruction: cfg.ANNEfConstruction,
				EfSearch:       cfg.ANNEfSearch,
				Lists:          cfg.ANNLists,
			}),
			postgres.WithLogger(log.Named("postgres_index")),
		)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := idx.Prepare(ctx); err != nil {
			_ = idx.Close()
			return nil, err
		}
		return idx, nil
	default:
		return memory.New(loader, cfg.EmbedDim,
			memory.WithBM25(cfg.BM25K1, cfg.BM25B),
			memory.WithFieldWeights(cfg.BM25TitleWeight, cfg.BM25BodyWeight),
			memory.WithLogger(log.Named("memory_index")),
		)
	}
}
