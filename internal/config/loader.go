package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "COURT_"
	envFileVar = "COURT_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if COURT_CONFIG is set
//  3. env (prefix COURT_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(envFileVar))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file layer.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// COURT_EMBED_DIM -> embed_dim; underscores are preserved to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.CorpusPath == "":
		return invalid("corpus_path must not be empty")
	case c.CommentsPerSubmission <= 0:
		return invalid("ingest_comments_per_submission must be positive, got %d", c.CommentsPerSubmission)
	case c.IngestBatchSize <= 0:
		return invalid("ingest_batch_size must be positive, got %d", c.IngestBatchSize)
	case c.EmbedDim <= 0:
		return invalid("embed_dim must be positive, got %d", c.EmbedDim)
	case c.EmbedNominalDim < c.EmbedDim:
		return invalid("embed_dim %d exceeds embed_nominal_dim %d", c.EmbedDim, c.EmbedNominalDim)
	case c.EmbedBatchSize <= 0:
		return invalid("embed_batch_size must be positive, got %d", c.EmbedBatchSize)
	case c.PoolSize <= 0:
		return invalid("retrieval_pool_size must be positive, got %d", c.PoolSize)
	case c.RRFC <= 0:
		return invalid("rrf_c must be positive, got %v", c.RRFC)
	case c.TopRankBonus < 0:
		return invalid("rrf_top_rank_bonus must not be negative, got %v", c.TopRankBonus)
	case c.MaxK <= 0:
		return invalid("retrieval_max_k must be positive, got %d", c.MaxK)
	case c.DefaultK <= 0 || c.DefaultK > c.MaxK:
		return invalid("retrieval_k must be in [1, %d], got %d", c.MaxK, c.DefaultK)
	case c.BM25K1 < 0 || c.BM25B < 0 || c.BM25B > 1:
		return invalid("bm25 parameters out of range: k1=%v b=%v", c.BM25K1, c.BM25B)
	}

	switch c.EmbedProvider {
	case "ollama", "openai":
	default:
		return invalid("unknown embed_provider %q", c.EmbedProvider)
	}
	switch c.IndexBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return invalid("database_url is required for the postgres backend")
		}
	default:
		return invalid("unknown index_backend %q", c.IndexBackend)
	}
	switch c.ANNIndexType {
	case "flat", "hnsw", "ivfflat":
	default:
		return invalid("unknown ann_index_type %q", c.ANNIndexType)
	}
	switch c.JudgeProvider {
	case "gemini", "openai", "none":
	default:
		return invalid("unknown judge_provider %q", c.JudgeProvider)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("unknown log_format %q", c.LogFormat)
	}
	return nil
}
