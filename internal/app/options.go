package service

import (
	"github.com/jasonherngwang/peoples-court/internal/adapters/judge"
	"github.com/jasonherngwang/peoples-court/internal/adapters/ratelimit"
	"github.com/jasonherngwang/peoples-court/internal/adapters/repository"
	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/retrieval"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Option applies a configuration option to the Service. Components given
// through options are used as is instead of being built from config by Start.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the corpus store.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithIndex sets the retrieval index. Start does not rebuild it.
func WithIndex(idx search.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithEmbedder sets the query embedder.
func WithEmbedder(e retrieval.QueryEmbedder) Option {
	return func(s *Service) { s.embedder = e }
}

// WithClassifier sets the jury poll classifier.
func WithClassifier(c consensus.Classifier) Option {
	return func(s *Service) {
		s.classifier = c
		s.classifierSet = true
	}
}

// WithJudge sets the judge. A nil judge disables deliberation.
func WithJudge(j judge.Judge) Option {
	return func(s *Service) {
		s.judge = j
		s.judgeSet = true
	}
}

// WithLimiter sets the request limiter.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) { s.limiter = l }
}
