package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/mq/queue"
	"github.com/jasonherngwang/peoples-court/internal/adapters/mq/worker"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// Encoder turns texts into vectors of the index dimension.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOptions sizes the embed stage.
type EmbedOptions struct {
	BatchSize int
	Workers   int
	QueueSize int
}

// EmbedReport summarises an embed run.
type EmbedReport struct {
	Batches int
	Failed  int64
	Written int64
}

// Embed encodes every labeled submission without a vector. Batches flow
// through a bounded queue to a worker pool; a failed batch is logged and its
// submissions stay pending. A consistency error stops the stage.
func (p *Pipeline) Embed(ctx context.Context, enc Encoder, opts EmbedOptions) (EmbedReport, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := &embedHandler{store: p.store, enc: enc, cancel: cancel}
	q := queue.NewInMemoryQueue(queue.WithCapacity(opts.QueueSize))
	pool := worker.NewPool(opts.Workers, q, h, worker.WithLogger(p.log.Named("embed")))
	pool.Start(ctx)

	p.log.Info(ctx, "embed starting",
		logger.Int("batch_size", opts.BatchSize),
		logger.Int("workers", pool.Size()),
	)

	var report EmbedReport
	produceErr := p.each(ctx, repository.SelectPendingEmbedding, false, func(page []model.Submission) error {
		for start := 0; start < len(page); start += opts.BatchSize {
			end := min(start+opts.BatchSize, len(page))
			j := queue.Job{Seq: report.Batches}
			for _, s := range page[start:end] {
				j.IDs = append(j.IDs, s.ID)
				j.Texts = append(j.Texts, s.Text())
			}
			if err := q.Put(ctx, j); err != nil {
				return err
			}
			report.Batches++
		}
		return nil
	})
	_ = q.Close()
	stats := pool.Wait()

	report.Failed = stats.Failed
	report.Written = h.written.Load()
	p.log.Info(ctx, "embed complete",
		logger.Int("batches", report.Batches),
		logger.Int64("failed", report.Failed),
		logger.Int64("written", report.Written),
	)

	if err := h.fatalErr(); err != nil {
		return report, err
	}
	if produceErr != nil && !errors.Is(produceErr, context.Canceled) {
		return report, produceErr
	}
	return report, ctx.Err()
}

type embedHandler struct {
	store  repository.Store
	enc    Encoder
	cancel context.CancelFunc

	written atomic.Int64
	mu      sync.Mutex
	fatal   error
}

func (h *embedHandler) Handle(ctx context.Context, j queue.Job) error {
	start := time.Now()
	vecs, err := h.enc.Embed(ctx, j.Texts)
	metrics.RecordEmbedBatch(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordEmbedError()
		if errs.IsConsistency(err) {
			h.stop(err)
		}
		return err
	}
	if len(vecs) != len(j.IDs) {
		err := errs.NewKind("pipeline.embed", errs.ErrConsistency)
		h.stop(err)
		return err
	}

	updates := make([]repository.VectorUpdate, len(j.IDs))
	for i, id := range j.IDs {
		updates[i] = repository.VectorUpdate{ID: id, Embedding: vecs[i]}
	}
	n, err := h.store.SetEmbeddings(ctx, updates)
	if err != nil {
		metrics.RecordErrorByComponent("embed", "write")
		return err
	}
	h.written.Add(int64(n))
	metrics.RecordVectorsWritten(n)
	return nil
}

func (h *embedHandler) stop(err error) {
	h.mu.Lock()
	if h.fatal == nil {
		h.fatal = err
	}
	h.mu.Unlock()
	h.cancel()
}

func (h *embedHandler) fatalErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}
