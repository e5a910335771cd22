// Package config defines process configuration for the pipeline and the
// retrieval service, and how it is loaded.
//
// Conventions:
// - Keys are flat snake_case so they map 1:1 onto COURT_ environment variables.
// - New(ctx) returns the defaults; Load(ctx) layers file and env on top.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CorpusPath is the SQLite file holding the working corpus.
	CorpusPath          string `koanf:"corpus_path"`
	CorpusBusyTimeoutMS int    `koanf:"corpus_busy_timeout_ms"`

	// Ingestion.
	IngestMinScore        int `koanf:"ingest_min_score"`
	CommentsPerSubmission int `koanf:"ingest_comments_per_submission"`
	IngestBatchSize       int `koanf:"ingest_batch_size"`
	// DedupeSize bounds the id set used while ingesting; <= 0 keeps every id.
	DedupeSize int `koanf:"dedupe_size"`

	// Labeling.
	LabelVoteWeightCap int `koanf:"label_vote_weight_cap"`
	LabelBatchSize     int `koanf:"label_batch_size"`

	// Embedding.
	EmbedProvider   string `koanf:"embed_provider"`
	EmbedModel      string `koanf:"embed_model"`
	EmbedEndpoint   string `koanf:"embed_endpoint"` // empty uses the provider default
	EmbedAPIKey     string `koanf:"embed_api_key"`
	EmbedNominalDim int    `koanf:"embed_nominal_dim"`
	EmbedDim        int    `koanf:"embed_dim"`
	EmbedBatchSize  int    `koanf:"embed_batch_size"`
	EmbedWorkers    int    `koanf:"embed_worker_count"`
	EmbedQueueSize  int    `koanf:"embed_queue_size"`
	EmbedTimeoutMS  int    `koanf:"embed_timeout_ms"`
	QueryCacheSize  int    `koanf:"query_cache_size"`

	// Indexing.
	IndexBackend         string  `koanf:"index_backend"`
	IndexReloadIntervalS int     `koanf:"index_reload_interval_s"`
	DatabaseURL          string  `koanf:"database_url"`
	ANNIndexType         string  `koanf:"ann_index_type"`
	ANNM                 int     `koanf:"ann_m"`
	ANNEfConstruction    int     `koanf:"ann_ef_construction"`
	ANNEfSearch          int     `koanf:"ann_ef_search"`
	ANNLists             int     `koanf:"ann_lists"`
	BM25K1               float64 `koanf:"bm25_k1"`
	BM25B                float64 `koanf:"bm25_b"`
	BM25TitleWeight      float64 `koanf:"bm25_title_weight"`
	BM25BodyWeight       float64 `koanf:"bm25_body_weight"`

	// Retrieval and fusion.
	PoolSize            int     `koanf:"retrieval_pool_size"`
	RRFC                float64 `koanf:"rrf_c"`
	TopRankBonus        float64 `koanf:"rrf_top_rank_bonus"`
	DefaultK            int     `koanf:"retrieval_k"`
	MaxK                int     `koanf:"retrieval_max_k"`
	BranchTimeoutMS     int     `koanf:"branch_timeout_ms"`
	FailOnUpstreamError bool    `koanf:"retrieval_fail_on_upstream"`

	// Consensus classifier.
	ClassifierEndpoint  string `koanf:"classifier_endpoint"`
	ClassifierRawScores bool   `koanf:"classifier_raw_scores"`
	ClassifierTimeoutMS int    `koanf:"classifier_timeout_ms"`

	// Judge.
	JudgeProvider  string `koanf:"judge_provider"`
	JudgeModel     string `koanf:"judge_model"`
	JudgeAPIKey    string `koanf:"judge_api_key"`
	JudgeEndpoint  string `koanf:"judge_endpoint"` // empty uses the provider default
	JudgeTimeoutMS int    `koanf:"judge_timeout_ms"`

	// Context assembly excerpt bounds, in runes.
	BodyExcerptChars    int `koanf:"assembly_body_chars"`
	CommentExcerptChars int `koanf:"assembly_comment_chars"`

	// Rate limiting. RateLimitRequests <= 0 disables the limiter.
	RateLimitRequests   int  `koanf:"rate_limit_requests"`
	RateLimitWindowS    int  `koanf:"rate_limit_window_s"`
	RateLimitTrustProxy bool `koanf:"rate_limit_trust_proxy"`

	// Training export.
	ExportOutput      string `koanf:"export_output"`
	ExportMaxPerClass int    `koanf:"export_max_per_class"`
	ExportSeed        int64  `koanf:"export_seed"`

	// Object storage used for s3:// export destinations.
	S3Endpoint  string `koanf:"s3_endpoint"`
	S3Region    string `koanf:"s3_region"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
	S3UseSSL    bool   `koanf:"s3_use_ssl"`
}

// New returns a Config populated with defaults. Context is accepted first to
// follow the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",

		CorpusPath:          "data/corpus.db",
		CorpusBusyTimeoutMS: 5000,

		IngestMinScore:        50,
		CommentsPerSubmission: 3,
		IngestBatchSize:       5000,
		DedupeSize:            0,

		LabelVoteWeightCap: 0,
		LabelBatchSize:     1000,

		EmbedProvider:   "ollama",
		EmbedModel:      "nomic-embed-text",
		EmbedNominalDim: 768,
		EmbedDim:        256,
		EmbedBatchSize:  32,
		EmbedWorkers:    runtime.NumCPU(),
		EmbedQueueSize:  64,
		EmbedTimeoutMS:  5000,
		QueryCacheSize:  1024,

		IndexBackend:      "memory",
		ANNIndexType:      "hnsw",
		ANNM:              16,
		ANNEfConstruction: 64,
		ANNEfSearch:       40,
		ANNLists:          100,
		BM25K1:            1.2,
		BM25B:             0.75,
		BM25TitleWeight:   2,
		BM25BodyWeight:    1,

		PoolSize:        20,
		RRFC:            60,
		TopRankBonus:    0.01,
		DefaultK:        3,
		MaxK:            10,
		BranchTimeoutMS: 5000,

		ClassifierTimeoutMS: 5000,

		JudgeProvider:  "gemini",
		JudgeModel:     "gemini-2.5-flash",
		JudgeTimeoutMS: 30000,

		BodyExcerptChars:    1000,
		CommentExcerptChars: 200,

		RateLimitRequests: 10,
		RateLimitWindowS:  60,

		ExportOutput:      "training_data.jsonl",
		ExportMaxPerClass: 15000,

		S3Region: "us-east-1",
		S3UseSSL: true,
	}
}

// EmbedTimeout returns the per-call embedding timeout.
func (c *Config) EmbedTimeout() time.Duration { return ms(c.EmbedTimeoutMS) }

// CorpusBusyTimeout returns how long a corpus writer waits on a locked database.
func (c *Config) CorpusBusyTimeout() time.Duration { return ms(c.CorpusBusyTimeoutMS) }

// BranchTimeout returns the per-branch retrieval timeout.
func (c *Config) BranchTimeout() time.Duration { return ms(c.BranchTimeoutMS) }

// ClassifierTimeout returns the classifier call timeout.
func (c *Config) ClassifierTimeout() time.Duration { return ms(c.ClassifierTimeoutMS) }

// JudgeTimeout returns the judge call timeout.
func (c *Config) JudgeTimeout() time.Duration { return ms(c.JudgeTimeoutMS) }

// RateLimitWindow returns the fixed rate limit window.
func (c *Config) RateLimitWindow() time.Duration { return time.Duration(c.RateLimitWindowS) * time.Second }

// IndexReloadInterval returns how often the server rebuilds its index; zero disables it.
func (c *Config) IndexReloadInterval() time.Duration {
	return time.Duration(c.IndexReloadIntervalS) * time.Second
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
