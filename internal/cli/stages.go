package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jasonherngwang/peoples-court/internal/adapters/objectstore"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	app "github.com/jasonherngwang/peoples-court/internal/app"
	"github.com/jasonherngwang/peoples-court/internal/domain/ingest"
	"github.com/jasonherngwang/peoples-court/internal/domain/training"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/internal/pipeline"
)

func newIngestCommand(r *root) *cobra.Command {
	var posts, comments []string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stream submission and comment dumps into the corpus",
		Long: `Ingest reads NDJSON dumps, plain or zstd-compressed. Submissions below the
score floor, removed or deleted posts, bot authors and malformed lines are
skipped and counted. Each submission keeps its highest scoring top-level
comments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := r.cfg
			return r.withPipeline(ctx, cfg.IngestBatchSize, func(p *pipeline.Pipeline, _ *repository.SQLiteStore) error {
				report, err := p.Ingest(ctx, posts, comments,
					ingest.WithMinScore(cfg.IngestMinScore),
					ingest.WithCommentsPerSubmission(cfg.CommentsPerSubmission),
					ingest.WithBatchSize(cfg.IngestBatchSize),
					ingest.WithDedupeSize(cfg.DedupeSize),
				)
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
	cmd.Flags().StringSliceVar(&posts, "posts", nil, "submission dump paths")
	cmd.Flags().StringSliceVar(&comments, "comments", nil, "comment dump paths")
	return cmd
}

func newLabelCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "label",
		Short: "Resolve a verdict for every unlabeled submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return r.withPipeline(ctx, r.cfg.LabelBatchSize, func(p *pipeline.Pipeline, _ *repository.SQLiteStore) error {
				report, err := p.Label(ctx, verdict.NewLabeler(verdict.WithWeightCap(r.cfg.LabelVoteWeightCap)))
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
}

func newEmbedCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed labeled submissions that have no vector yet",
		Long: `Embed sends labeled submissions to the configured provider in batches over
a worker pool. A failed batch stays pending for the next run. A provider
that returns fewer dimensions than embed_dim stops the stage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			enc, err := app.NewEncoder(r.cfg)
			if err != nil {
				return err
			}
			return r.withPipeline(ctx, 0, func(p *pipeline.Pipeline, _ *repository.SQLiteStore) error {
				report, err := p.Embed(ctx, enc, pipeline.EmbedOptions{
					BatchSize: r.cfg.EmbedBatchSize,
					Workers:   r.cfg.EmbedWorkers,
					QueueSize: r.cfg.EmbedQueueSize,
				})
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
}

func newIndexCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the dense and sparse index from the embedded corpus",
		Long: `Index builds the configured index_backend. A postgres build is published
to the database and picked up by the server. A memory build only checks
that the corpus indexes cleanly; the server builds its own at start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return r.withPipeline(ctx, 0, func(p *pipeline.Pipeline, store *repository.SQLiteStore) error {
				idx, err := app.OpenIndex(ctx, r.cfg, store, r.log)
				if err != nil {
					return err
				}
				defer func() { _ = idx.Close() }()

				info, err := p.Index(ctx, idx)
				if err != nil {
					return err
				}
				return printReport(cmd, map[string]any{
					"backend":   r.cfg.IndexBackend,
					"documents": info.Documents,
					"dim":       info.Dim,
					"took_ms":   float64(info.Took.Microseconds()) / 1000,
				})
			})
		},
	}
}

func newExportCommand(r *root) *cobra.Command {
	var (
		output      string
		maxPerClass int
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a class-balanced training set as JSONL",
		Long: `Export samples at most --max-per-class labeled submissions per verdict and
writes them shuffled to a local path or an s3://bucket/key destination.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := r.cfg
			if !cmd.Flags().Changed("output") {
				output = cfg.ExportOutput
			}
			if !cmd.Flags().Changed("max-per-class") {
				maxPerClass = cfg.ExportMaxPerClass
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.ExportSeed
			}
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			w := objectstore.NewRouter(objectstore.S3Config{
				Endpoint:  cfg.S3Endpoint,
				Region:    cfg.S3Region,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
				UseSSL:    cfg.S3UseSSL,
			})
			return r.withPipeline(ctx, 0, func(p *pipeline.Pipeline, _ *repository.SQLiteStore) error {
				report, err := p.Export(ctx, training.NewSampler(maxPerClass, uint64(seed)), w, output)
				if err != nil {
					return err
				}
				return printReport(cmd, report)
			})
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "destination path or s3://bucket/key (default: export_output)")
	cmd.Flags().IntVar(&maxPerClass, "max-per-class", 0, "sample cap per verdict (default: export_max_per_class)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "sampling seed; 0 is time based (default: export_seed)")
	return cmd
}

func newStatsCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print corpus counts by stage, label and labeling status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return r.withPipeline(ctx, 0, func(_ *pipeline.Pipeline, store *repository.SQLiteStore) error {
				stats, err := store.Stats(ctx)
				if err != nil {
					return err
				}
				return printReport(cmd, stats)
			})
		},
	}
}
