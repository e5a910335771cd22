// Package ingest filters raw community dumps into the working corpus.
//
// Ingestion runs in two passes. The first streams submissions, applies the
// quality filters and persists accepted posts in batches. The second streams
// comments, keeps the top-N top-level comments per accepted submission in a
// bounded min-heap, and writes them once the stream is exhausted.
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/jasonherngwang/peoples-court/internal/domain/dedupe"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// Lines yields one record per call; *bufio.Scanner and *source.Reader
// satisfy it. An empty record counts as malformed.
type Lines interface {
	Scan() bool
	Bytes() []byte
	Err() error
}

// Store persists ingest results.
type Store interface {
	// SubmissionIDs returns the ids already in the corpus.
	SubmissionIDs(ctx context.Context) ([]string, error)
	// InsertSubmissions inserts posts, ignoring ids that already exist, and
	// returns the number of rows written.
	InsertSubmissions(ctx context.Context, subs []model.Submission) (int, error)
	// ReplaceComments replaces the stored comments of every submission
	// present in comments, in one transaction.
	ReplaceComments(ctx context.Context, comments []model.Comment) error
}

// Report summarises an ingest run.
type Report struct {
	PostsRead      int
	CommentsRead   int
	Accepted       int
	Inserted       int
	Retained       int
	SourcesFailed  int
	PostsSkipped   map[Reason]int
	CommentSkipped map[Reason]int
}

func newReport() Report {
	return Report{PostsSkipped: make(map[Reason]int), CommentSkipped: make(map[Reason]int)}
}

// Ingestor runs the two ingest passes against a Store.
type Ingestor struct {
	store       Store
	filter      Filter
	perPost     int
	batchSize   int
	dedupeSize  int
	log         logger.Logger
	posts       dedupe.Deduper
	known       map[string]struct{}
	retainer    *Retainer
	report      Report
	pendingPost []model.Submission
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithMinScore sets the submission score floor.
func WithMinScore(score int) Option {
	return func(in *Ingestor) { in.filter.MinScore = score }
}

// WithCommentsPerSubmission sets how many comments are retained per submission.
func WithCommentsPerSubmission(n int) Option {
	return func(in *Ingestor) {
		if n > 0 {
			in.perPost = n
		}
	}
}

// WithBatchSize sets the submission insert batch size.
func WithBatchSize(n int) Option {
	return func(in *Ingestor) {
		if n > 0 {
			in.batchSize = n
		}
	}
}

// WithDedupeSize bounds the submission id set; zero or less keeps every id.
func WithDedupeSize(n int) Option {
	return func(in *Ingestor) { in.dedupeSize = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(in *Ingestor) {
		if l != nil {
			in.log = l
		}
	}
}

// New creates an Ingestor. Without WithLogger it logs through logger.Get().
func New(store Store, opts ...Option) *Ingestor {
	in := &Ingestor{
		store:     store,
		filter:    Filter{MinScore: 50},
		perPost:   model.MaxComments,
		batchSize: 5000,
		known:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.log == nil {
		in.log = logger.Get().Named("ingest")
	}
	in.posts = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(in.dedupeSize))
	in.retainer = NewRetainer(in.perPost)
	in.report = newReport()
	return in
}

// Run performs both passes: every post source, then every comment source.
func (in *Ingestor) Run(ctx context.Context, posts, comments []Lines) (Report, error) {
	ids, err := in.store.SubmissionIDs(ctx)
	if err != nil {
		return in.report, fmt.Errorf("ingest: load existing ids: %w", err)
	}
	for _, id := range ids {
		in.known[id] = struct{}{}
		in.posts.SeenAndRecord(ctx, id)
	}
	in.log.Info(ctx, "loaded existing submission ids", logger.Int("count", len(ids)))

	for i, src := range posts {
		if err := in.IngestPosts(ctx, src); err != nil {
			if ctx.Err() != nil {
				return in.report, err
			}
			in.sourceFailed(ctx, "submission", i, src, err)
		}
	}
	in.FlushPosts(ctx)
	in.log.Info(ctx, "submission pass complete",
		logger.Int("read", in.report.PostsRead),
		logger.Int("accepted", in.report.Accepted),
		logger.Int("inserted", in.report.Inserted),
	)

	for i, src := range comments {
		if err := in.IngestComments(ctx, src); err != nil {
			if ctx.Err() != nil {
				return in.report, err
			}
			in.sourceFailed(ctx, "comment", i, src, err)
		}
	}
	if err := in.WriteComments(ctx); err != nil {
		in.log.Error(ctx, "failed to write retained comments", logger.Error(err))
	}

	in.logReport(ctx)
	return in.report, nil
}

// IngestPosts streams one submission source. Accepted posts are buffered and
// written in batches; FlushPosts writes the remainder.
func (in *Ingestor) IngestPosts(ctx context.Context, lines Lines) error {
	for lines.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		in.report.PostsRead++
		metrics.RecordIngestRead("submission")

		raw, err := DecodePost(lines.Bytes())
		if err != nil {
			in.skipPost(ReasonMalformed)
			continue
		}
		sub, reason := in.filter.Post(raw)
		if reason == "" && in.posts.SeenAndRecord(ctx, sub.ID) {
			reason = ReasonDuplicate
		}
		if reason != "" {
			in.skipPost(reason)
			continue
		}

		in.pendingPost = append(in.pendingPost, sub)
		if len(in.pendingPost) >= in.batchSize {
			in.FlushPosts(ctx)
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("ingest: read submissions: %w", err)
	}
	return nil
}

// FlushPosts writes buffered posts. A failed write releases their ids so a
// later source may supply them again.
func (in *Ingestor) FlushPosts(ctx context.Context) {
	if len(in.pendingPost) == 0 {
		return
	}
	batch := in.pendingPost
	in.pendingPost = nil

	n, err := in.store.InsertSubmissions(ctx, batch)
	if err != nil {
		in.log.Error(ctx, "submission batch write failed",
			logger.Int("batch", len(batch)),
			logger.Error(err),
		)
		for _, s := range batch {
			in.posts.Unrecord(ctx, s.ID)
		}
		in.report.PostsSkipped[ReasonWriteFailed] += len(batch)
		metrics.RecordIngestSkipped("submission", string(ReasonWriteFailed))
		metrics.RecordErrorByComponent("ingest", "batch_write")
		return
	}
	for _, s := range batch {
		in.known[s.ID] = struct{}{}
	}
	in.report.Accepted += len(batch)
	in.report.Inserted += n
	metrics.RecordIngestAccepted(len(batch))
	in.log.Debug(ctx, "submission batch written", logger.Int("batch", len(batch)), logger.Int("inserted", n))
}

// IngestComments streams one comment source into the per-submission retainers.
func (in *Ingestor) IngestComments(ctx context.Context, lines Lines) error {
	for lines.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		in.report.CommentsRead++
		metrics.RecordIngestRead("comment")

		raw, err := DecodeComment(lines.Bytes())
		if err != nil {
			in.skipComment(ReasonMalformed)
			continue
		}
		c, reason := in.filter.Comment(raw)
		if reason == "" {
			if _, ok := in.known[c.SubmissionID]; !ok {
				reason = ReasonOrphan
			}
		}
		if reason == "" && in.retainer.Holds(c.SubmissionID, c.ID) {
			reason = ReasonDuplicate
		}
		if reason != "" {
			in.skipComment(reason)
			continue
		}
		in.retainer.Offer(c)
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("ingest: read comments: %w", err)
	}
	return nil
}

// WriteComments persists every retained comment in one replacement.
func (in *Ingestor) WriteComments(ctx context.Context) error {
	var all []model.Comment
	for _, id := range in.retainer.Submissions() {
		all = append(all, in.retainer.Retained(id)...)
	}
	if len(all) == 0 {
		return nil
	}
	if err := in.store.ReplaceComments(ctx, all); err != nil {
		metrics.RecordErrorByComponent("ingest", "comment_write")
		return fmt.Errorf("ingest: replace comments: %w", err)
	}
	in.report.Retained = len(all)
	metrics.RecordIngestRetained(len(all))
	return nil
}

// sourceFailed records a source that stopped mid-stream. Records read before
// the failure stay ingested; the source is closed when it can be.
func (in *Ingestor) sourceFailed(ctx context.Context, kind string, index int, src Lines, err error) {
	in.report.SourcesFailed++
	metrics.RecordErrorByComponent("ingest", "source_read")
	in.log.Error(ctx, "source read failed, skipping the rest of it",
		logger.String("kind", kind),
		logger.Int("source", index),
		logger.Error(err),
	)
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}

// Report returns the counters collected so far.
func (in *Ingestor) Report() Report { return in.report }

func (in *Ingestor) skipPost(r Reason) {
	in.report.PostsSkipped[r]++
	metrics.RecordIngestSkipped("submission", string(r))
}

func (in *Ingestor) skipComment(r Reason) {
	in.report.CommentSkipped[r]++
	metrics.RecordIngestSkipped("comment", string(r))
}

func (in *Ingestor) logReport(ctx context.Context) {
	fields := []logger.Field{
		logger.Int("posts_read", in.report.PostsRead),
		logger.Int("comments_read", in.report.CommentsRead),
		logger.Int("accepted", in.report.Accepted),
		logger.Int("inserted", in.report.Inserted),
		logger.Int("comments_retained", in.report.Retained),
		logger.Int("sources_failed", in.report.SourcesFailed),
	}
	for r, n := range in.report.PostsSkipped {
		fields = append(fields, logger.Int("posts_skipped_"+string(r), n))
	}
	for r, n := range in.report.CommentSkipped {
		fields = append(fields, logger.Int("comments_skipped_"+string(r), n))
	}
	in.log.Info(ctx, "ingest complete", fields...)
}
