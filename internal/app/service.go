// Package service wires the corpus store, the retrieval index and the model
// adapters into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/adapters/classifier"
	"github.com/jasonherngwang/peoples-court/internal/adapters/embedder"
	"github.com/jasonherngwang/peoples-court/internal/adapters/judge"
	"github.com/jasonherngwang/peoples-court/internal/adapters/ratelimit"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/config"
	"github.com/jasonherngwang/peoples-court/internal/domain/assembly"
	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/fusion"
	"github.com/jasonherngwang/peoples-court/internal/domain/retrieval"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
	"github.com/jasonherngwang/peoples-court/pkg/metrics"
)

// Ruling is a judge opinion with its citations resolved against the
// retrieved precedents.
type Ruling struct {
	Opinion   judge.Opinion
	Citations []judge.Cited
}

// Adjudication is the full result of a case: what retrieval found and what
// the judge made of it.
type Adjudication struct {
	Retrieval retrieval.Result
	Ruling    Ruling
}

// Health is a point-in-time readiness summary.
type Health struct {
	Started        bool   `json:"started"`
	IndexBackend   string `json:"index_backend"`
	IndexDocuments int    `json:"index_documents"`
	IndexDim       int    `json:"index_dim"`
	Classifier     bool   `json:"classifier"`
	Judge          bool   `json:"judge"`
}

// Service implements the API dependencies for the precedent court.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	store      repository.Store
	index      search.Index
	embedder   retrieval.QueryEmbedder
	classifier consensus.Classifier
	judge      judge.Judge
	limiter    ratelimit.Limiter
	engine     *retrieval.Engine
	assembler  assembly.Assembler

	classifierSet bool
	judgeSet      bool
	built         built       // components Start made itself; Stop drops them
	closers       []io.Closer // components built by Start, closed in reverse

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

type built struct {
	store    bool
	embedder bool
	index    bool
	limiter  bool
}

// New constructs a Service for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{
		cfg:       cfg,
		assembler: assembly.New(cfg.BodyExcerptChars, cfg.CommentExcerptChars),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the corpus, builds the index and connects the model adapters.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting court service...")

	defer func() {
		if err != nil {
			s.closeOwned()
			s.dropBuilt()
		}
	}()

	if s.store == nil {
		store, err := repository.Open(ctx, s.cfg.CorpusPath, repository.WithBusyTimeout(s.cfg.CorpusBusyTimeout()))
		if err != nil {
			return fmt.Errorf("open corpus: %w", err)
		}
		s.own(store)
		s.store = store
		s.built.store = true
	}
	if s.embedder == nil {
		if s.embedder, err = s.buildEmbedder(); err != nil {
			return err
		}
		s.built.embedder = true
	}
	if s.index == nil {
		if err := s.buildIndex(ctx); err != nil {
			return err
		}
		s.built.index = true
	}
	if !s.classifierSet && s.cfg.ClassifierEndpoint != "" {
		c, err := classifier.New(s.cfg.ClassifierEndpoint,
			classifier.WithRawScores(s.cfg.ClassifierRawScores),
			classifier.WithTimeout(s.cfg.ClassifierTimeout()),
		)
		if err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
		s.classifier = c
	}
	if !s.judgeSet {
		s.judge = s.buildJudge(ctx)
	}
	if s.limiter == nil {
		s.limiter = s.buildLimiter()
		s.built.limiter = true
	}

	opts := []retrieval.Option{
		retrieval.WithPool(s.cfg.PoolSize),
		retrieval.WithK(s.cfg.DefaultK, s.cfg.MaxK),
		retrieval.WithFusion(fusion.New(s.cfg.RRFC, s.cfg.TopRankBonus)),
		retrieval.WithBranchTimeout(s.cfg.BranchTimeout()),
		retrieval.WithClassifierTimeout(s.cfg.ClassifierTimeout()),
		retrieval.WithFailOnUpstream(s.cfg.FailOnUpstreamError),
		retrieval.WithLogger(s.logger.Named("retrieval")),
	}
	if s.classifier != nil {
		opts = append(opts, retrieval.WithClassifier(s.classifier))
	}
	s.engine = retrieval.New(s.embedder, s.index, s.store, opts...)

	s.stopCh = make(chan struct{})
	if interval := s.cfg.IndexReloadInterval(); interval > 0 {
		s.wg.Add(1)
		go s.reloadLoop(interval)
	}

	s.started = true
	s.logger.Info(ctx, "court service started",
		logger.String("index_backend", s.cfg.IndexBackend),
		logger.Int("index_documents", s.index.Size()),
		logger.Int("dim", s.index.Dim()),
		logger.Bool("classifier", s.classifier != nil),
		logger.Bool("judge", s.judge != nil),
	)
	return nil
}

func (s *Service) buildEmbedder() (retrieval.QueryEmbedder, error) {
	enc, err := NewEncoder(s.cfg)
	if err != nil {
		return nil, err
	}
	return embedder.NewCached(enc, s.cfg.QueryCacheSize)
}

func (s *Service) buildIndex(ctx context.Context) error {
	idx, err := OpenIndex(ctx, s.cfg, s.store, s.logger)
	if err != nil {
		return err
	}
	s.own(idx)
	// a postgres index keeps its last generation across restarts
	if idx.Size() == 0 {
		if _, err := idx.Rebuild(ctx); err != nil {
			return err
		}
	}
	s.index = idx
	return nil
}

// buildJudge returns nil when the judge is disabled or cannot be created, so
// retrieval keeps serving without deliberation.
func (s *Service) buildJudge(ctx context.Context) judge.Judge {
	j, err := judge.New(ctx, judge.Config{
		Provider: s.cfg.JudgeProvider,
		Model:    s.cfg.JudgeModel,
		APIKey:   s.cfg.JudgeAPIKey,
		BaseURL:  s.cfg.JudgeEndpoint,
	})
	switch {
	case errors.Is(err, judge.ErrDisabled):
		s.logger.Info(ctx, "judge disabled")
		return nil
	case err != nil:
		s.logger.Warn(ctx, "judge unavailable", logger.String("provider", s.cfg.JudgeProvider), logger.Error(err))
		metrics.RecordErrorByComponent("judge", "init")
		return nil
	}
	return j
}

func (s *Service) buildLimiter() ratelimit.Limiter {
	if s.cfg.RateLimitRequests <= 0 {
		return ratelimit.Unlimited{}
	}
	l := ratelimit.New(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow())
	s.own(l)
	return l
}

func (s *Service) own(c io.Closer) { s.closers = append(s.closers, c) }

func (s *Service) closeOwned() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
	s.closers = nil
}

// dropBuilt forgets every component Start built so the next Start builds
// fresh ones. Components given through options are kept.
func (s *Service) dropBuilt() {
	if s.built.store {
		s.store = nil
	}
	if s.built.embedder {
		s.embedder = nil
	}
	if s.built.index {
		s.index = nil
	}
	if s.built.limiter {
		s.limiter = nil
	}
	if !s.classifierSet {
		s.classifier = nil
	}
	if !s.judgeSet {
		s.judge = nil
	}
	s.engine = nil
	s.built = built{}
}

// reloadLoop rebuilds the index on a fixed interval. A failed rebuild keeps
// the previous generation.
func (s *Service) reloadLoop(interval time.Duration) {
	defer s.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stopCh
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.index.Rebuild(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error(ctx, "periodic index rebuild failed", logger.Error(err))
				metrics.RecordErrorByComponent("index", "rebuild")
			}
		}
	}
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping court service...")

	close(s.stopCh)
	s.wg.Wait()
	s.closeOwned()
	s.dropBuilt()

	s.started = false
	s.logger.Info(context.Background(), "court service stopped")
}

func (s *Service) running() (*retrieval.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

// Retrieve runs hybrid retrieval for req.
func (s *Service) Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Result, error) {
	engine, err := s.running()
	if err != nil {
		return retrieval.Result{}, err
	}
	return engine.Retrieve(ctx, req)
}

// JudgeEnabled reports whether Deliberate can succeed.
func (s *Service) JudgeEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.judge != nil
}

// Deliberate hands the brief for res to the judge.
func (s *Service) Deliberate(ctx context.Context, scenario string, res retrieval.Result) (Ruling, error) {
	s.mu.RLock()
	j := s.judge
	s.mu.RUnlock()
	if j == nil {
		return Ruling{}, ErrJudgeDisabled
	}
	if len(res.Precedents) == 0 {
		return Ruling{}, ErrNoPrecedents
	}

	brief := s.assembler.Assemble(scenario, res.Consensus, res.ConsensusAvailable, res.Precedents)
	if d := s.cfg.JudgeTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	op, err := j.Deliberate(ctx, brief)
	if err != nil {
		metrics.RecordErrorByComponent("judge", "deliberate")
		return Ruling{}, err
	}
	return Ruling{Opinion: op, Citations: judge.Cite(op, res.Precedents)}, nil
}

// Adjudicate retrieves precedents for req and asks the judge to rule. When
// retrieval finds nothing, the returned Adjudication still carries the jury
// poll alongside ErrNoPrecedents.
func (s *Service) Adjudicate(ctx context.Context, req retrieval.Request) (Adjudication, error) {
	if !s.JudgeEnabled() {
		return Adjudication{}, ErrJudgeDisabled
	}
	res, err := s.Retrieve(ctx, req)
	if err != nil {
		return Adjudication{}, err
	}
	out := Adjudication{Retrieval: res}
	if len(res.Precedents) == 0 {
		return out, ErrNoPrecedents
	}
	out.Ruling, err = s.Deliberate(ctx, strings.TrimSpace(req.Scenario), res)
	return out, err
}

// Rebuild reloads the index from the corpus.
func (s *Service) Rebuild(ctx context.Context) (search.BuildInfo, error) {
	if _, err := s.running(); err != nil {
		return search.BuildInfo{}, err
	}
	return s.index.Rebuild(ctx)
}

// Limiter returns the request limiter. It is never nil.
func (s *Service) Limiter() ratelimit.Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.limiter == nil {
		return ratelimit.Unlimited{}
	}
	return s.limiter
}

// MaxK returns the largest accepted precedent count.
func (s *Service) MaxK() int { return s.cfg.MaxK }

// Health reports readiness.
func (s *Service) Health(context.Context) Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := Health{
		Started:      s.started,
		IndexBackend: s.cfg.IndexBackend,
		Classifier:   s.classifier != nil,
		Judge:        s.judge != nil,
	}
	if s.started {
		h.IndexDocuments = s.index.Size()
		h.IndexDim = s.index.Dim()
	}
	return h
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"index_backend": s.cfg.IndexBackend,
		"default_k":     s.cfg.DefaultK,
		"max_k":         s.cfg.MaxK,
		"pool_size":     s.cfg.PoolSize,
		"classifier":    s.classifier != nil,
		"judge":         s.judge != nil,
	}
	if !s.started {
		return stats
	}

	docs := s.index.Size()
	stats["index_documents"] = docs
	stats["index_dim"] = s.index.Dim()
	metrics.UpdateIndexDocuments(docs)

	corpus, err := s.store.Stats(context.Background())
	if err != nil {
		s.logger.Warn(context.Background(), "corpus stats failed", logger.Error(err))
		return stats
	}
	stats["corpus"] = corpus
	return stats
}
