// Package cli implements the offline corpus pipeline as cobra subcommands:
// ingest, label, embed, index, export and stats. Every subcommand runs one
// resumable stage against the SQLite working corpus and prints its report as
// JSON on stdout; logs go to stderr.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/config"
	"github.com/jasonherngwang/peoples-court/internal/pipeline"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// root carries the flags and the state shared by every subcommand.
type root struct {
	configPath string
	corpusPath string

	cfg *config.Config
	log logger.Logger
}

// NewRootCommand builds the pipeline command tree.
func NewRootCommand() *cobra.Command {
	r := &root{}
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Prepare the People's Court precedent corpus",
		Long: `pipeline turns raw community dumps into a searchable precedent corpus.

Stages run in order and each one only touches rows the previous run left
undone, so any stage can be re-run after a failure:

  pipeline ingest --posts submissions.zst --comments comments.zst
  pipeline label
  pipeline embed
  pipeline index
  pipeline export --output s3://training/train.jsonl`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: r.setup,
	}

	cmd.PersistentFlags().StringVar(&r.configPath, "config", "", "YAML config file (default: $COURT_CONFIG)")
	cmd.PersistentFlags().StringVar(&r.corpusPath, "corpus", "", "SQLite corpus path (overrides corpus_path)")

	cmd.AddCommand(
		newIngestCommand(r),
		newLabelCommand(r),
		newEmbedCommand(r),
		newIndexCommand(r),
		newExportCommand(r),
		newStatsCommand(r),
	)
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (r *root) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	var (
		cfg *config.Config
		err error
	)
	if r.configPath != "" {
		cfg, err = config.LoadFile(ctx, r.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return err
	}
	if r.corpusPath != "" {
		cfg.CorpusPath = r.corpusPath
	}

	if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	r.cfg = cfg
	r.log = logger.Get().Named("pipeline")
	return nil
}

// withPipeline opens the corpus, runs fn over a pipeline reading pageSize
// rows at a time, and closes the corpus.
func (r *root) withPipeline(ctx context.Context, pageSize int, fn func(*pipeline.Pipeline, *repository.SQLiteStore) error) error {
	store, err := repository.Open(ctx, r.cfg.CorpusPath, repository.WithBusyTimeout(r.cfg.CorpusBusyTimeout()))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p := pipeline.New(store, pipeline.WithPageSize(pageSize), pipeline.WithLogger(r.log))
	return fn(p, store)
}

func printReport(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
