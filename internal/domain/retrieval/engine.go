// Package retrieval turns a scenario into ranked precedents and a jury poll.
//
// The dense, sparse and consensus branches run concurrently, each under its
// own timeout. A failed branch degrades the response to status "partial"
// rather than failing it, unless the failure is a consistency error or the
// engine is configured to fail on upstream errors.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/fusion"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// Branch names used in warnings and metrics.
const (
	BranchDense     = "dense"
	BranchSparse    = "sparse"
	BranchConsensus = "consensus"
)

// Status summarises how complete a result is.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
)

// QueryEmbedder embeds a scenario with the index's truncation.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Documents resolves submission ids to full records with their comments.
type Documents interface {
	Get(ctx context.Context, ids []string) (map[string]model.Submission, error)
}

// Request is one retrieval call. K of zero uses the engine default.
type Request struct {
	Scenario    string
	K           int
	Diagnostics bool
}

// Diagnostics exposes the branch outputs behind a result.
type Diagnostics struct {
	SparseQuery string             `json:"sparse_query"`
	Dense       []search.Hit       `json:"dense"`
	Sparse      []search.Hit       `json:"sparse"`
	Fused       []fusion.Candidate `json:"fused"`
}

// Result is the engine output.
type Result struct {
	Precedents         []model.Precedent
	Consensus          consensus.Distribution
	ConsensusAvailable bool
	Status             Status
	Warnings           []string
	Diagnostics        *Diagnostics
}

// Engine runs hybrid retrieval over one index.
type Engine struct {
	embedder   QueryEmbedder
	index      search.Index
	docs       Documents
	classifier consensus.Classifier
	rrf        fusion.RRF

	pool              int
	defaultK          int
	maxK              int
	branchTimeout     time.Duration
	classifierTimeout time.Duration
	failOnUpstream    bool

	log logger.Logger
}

// New creates an Engine. The consensus branch is skipped unless
// WithClassifier is given.
func New(embedder QueryEmbedder, index search.Index, docs Documents, opts ...Option) *Engine {
	e := &Engine{
		embedder:          embedder,
		index:             index,
		docs:              docs,
		rrf:               fusion.New(fusion.DefaultC, fusion.DefaultTopRankBonus),
		pool:              DefaultPool,
		defaultK:          DefaultK,
		maxK:              DefaultMaxK,
		branchTimeout:     DefaultBranchTimeout,
		classifierTimeout: DefaultClassifierTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("retrieval")
	}
	return e
}

// Index returns the index the engine searches.
func (e *Engine) Index() search.Index { return e.index }

// MaxK returns the largest accepted precedent count.
func (e *Engine) MaxK() int { return e.maxK }

// Validate normalises req, applying the default K.
func (e *Engine) Validate(req Request) (Request, error) {
	req.Scenario = strings.TrimSpace(req.Scenario)
	if req.Scenario == "" {
		return req, errs.WrapKind("retrieval.validate", errs.ErrValidation, ErrEmptyScenario)
	}
	if req.K == 0 {
		req.K = e.defaultK
	}
	if req.K < 1 || req.K > e.maxK {
		return req, errs.WrapKind("retrieval.validate", errs.ErrValidation,
			fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidK, req.K, e.maxK))
	}
	return req, nil
}

type branch struct {
	hits []search.Hit
	err  error
	took time.Duration
}

// Retrieve runs the three branches, fuses the retrieval lists and attaches
// the submissions behind the top K candidates.
func (e *Engine) Retrieve(ctx context.Context, req Request) (Result, error) {
	req, err := e.Validate(req)
	if err != nil {
		return Result{}, err
	}

	var (
		dense, sparse branch
		poll          consensus.Distribution
		pollErr       error
		sparseQuery   = search.SparseQuery(req.Scenario)
	)

	// Branches record their own failure and never return it to the group, so
	// one branch failing never cancels the others.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dense = e.timed(gctx, e.branchTimeout, func(ctx context.Context) ([]search.Hit, error) {
			return e.dense(ctx, req.Scenario)
		})
		return nil
	})
	g.Go(func() error {
		sparse = e.timed(gctx, e.branchTimeout, func(ctx context.Context) ([]search.Hit, error) {
			if sparseQuery == "" {
				return nil, nil
			}
			return e.index.Sparse(ctx, sparseQuery, e.pool)
		})
		return nil
	})
	if e.classifier != nil {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, e.classifierTimeout)
			defer cancel()
			start := time.Now()
			poll, pollErr = e.classifier.Poll(cctx, req.Scenario)
			metrics.RecordBranchLatency(BranchConsensus, float64(time.Since(start).Milliseconds()))
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Status: StatusOK}
	for _, b := range []struct {
		name string
		br   *branch
	}{{BranchDense, &dense}, {BranchSparse, &sparse}} {
		metrics.RecordBranchLatency(b.name, float64(b.br.took.Milliseconds()))
		if b.br.err == nil {
			continue
		}
		b.br.err = asUpstream("retrieval."+b.name, b.br.err)
		metrics.RecordBranchError(b.name, kindName(b.br.err))
		if errs.IsConsistency(b.br.err) || e.failOnUpstream {
			return Result{}, b.br.err
		}
		e.log.Warn(ctx, "retrieval branch failed", logger.String("branch", b.name), logger.Error(b.br.err))
		res.warn("%s retrieval unavailable: %v", b.name, b.br.err)
	}

	switch {
	case e.classifier == nil:
		// not configured; the poll stays unavailable without degrading status
	case pollErr != nil:
		pollErr = asUpstream("retrieval.consensus", pollErr)
		metrics.RecordBranchError(BranchConsensus, kindName(pollErr))
		e.log.Warn(ctx, "consensus branch failed", logger.Error(pollErr))
		res.warn("consensus unavailable: %v", pollErr)
	default:
		res.Consensus = poll
		res.ConsensusAvailable = true
	}

	fused := e.rrf.Fuse(dense.hits, sparse.hits)
	precedents, missing, err := e.attach(ctx, fused, req.K)
	if err != nil {
		return Result{}, err
	}
	for _, id := range missing {
		res.note("precedent %s is indexed but missing from the corpus", id)
	}
	res.Precedents = precedents

	if req.Diagnostics {
		res.Diagnostics = &Diagnostics{SparseQuery: sparseQuery, Dense: dense.hits, Sparse: sparse.hits, Fused: fused}
	}
	metrics.RecordRetrieval(string(res.Status), len(fused), len(precedents))
	e.log.Debug(ctx, "retrieval complete",
		logger.Int("dense", len(dense.hits)),
		logger.Int("sparse", len(sparse.hits)),
		logger.Int("fused", len(fused)),
		logger.Int("precedents", len(precedents)),
		logger.String("status", string(res.Status)),
	)
	return res, nil
}

func (e *Engine) timed(ctx context.Context, d time.Duration, fn func(context.Context) ([]search.Hit, error)) branch {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	start := time.Now()
	hits, err := fn(ctx)
	if err != nil {
		hits = nil
	}
	return branch{hits: hits, err: err, took: time.Since(start)}
}

func (e *Engine) dense(ctx context.Context, scenario string) ([]search.Hit, error) {
	vec, err := e.embedder.EmbedOne(ctx, scenario)
	if err != nil {
		return nil, err
	}
	if len(vec) != e.index.Dim() {
		return nil, errs.WrapKind("retrieval.dense", errs.ErrConsistency,
			fmt.Errorf("query embedding has %d dimensions, index built with %d", len(vec), e.index.Dim()))
	}
	return e.index.Dense(ctx, vec, e.pool)
}

// attach resolves candidates in fused order until k precedents are found.
// Ids the corpus no longer holds are skipped and reported.
func (e *Engine) attach(ctx context.Context, fused []fusion.Candidate, k int) ([]model.Precedent, []string, error) {
	if len(fused) == 0 {
		return nil, nil, nil
	}
	ids := make([]string, len(fused))
	for i, c := range fused {
		ids[i] = c.ID
	}
	docs, err := e.docs.Get(ctx, ids)
	if err != nil {
		return nil, nil, errs.WrapKind("retrieval.attach", errs.ErrUpstream, err)
	}

	var (
		out     []model.Precedent
		missing []string
	)
	for _, c := range fused {
		if len(out) == k {
			break
		}
		s, ok := docs[c.ID]
		if !ok {
			missing = append(missing, c.ID)
			continue
		}
		out = append(out, model.Precedent{Submission: s, Rank: len(out) + 1, Score: c.Score})
	}
	return out, missing, nil
}

// warn records a degraded branch.
func (r *Result) warn(format string, args ...any) {
	r.Status = StatusPartial
	r.note(format, args...)
}

func (r *Result) note(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func asUpstream(op string, err error) error {
	if errs.KindOf(err) != nil {
		return err
	}
	return errs.WrapKind(op, errs.ErrUpstream, err)
}

func kindName(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errs.IsConsistency(err):
		return "consistency"
	case errs.IsUpstream(err):
		return "upstream"
	}
	return "other"
}
