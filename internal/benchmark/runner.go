package benchmark

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

const maxProblems = 20

// Run checks server health, then sends cfg.Requests retrieval requests over
// cfg.Workers workers. Failed or malformed responses are counted in the
// Report, not returned as errors.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if cfg.Requests <= 0 || cfg.Workers <= 0 || cfg.K <= 0 {
		return Report{}, fmt.Errorf("%w: requests, workers and k must be positive", ErrInvalidConfig)
	}
	scenarios := cfg.Scenarios
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios
	}
	log := logger.Get().Named("benchmark")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "checking service health", logger.String("url", cfg.BaseURL))
	if _, err := c.health(ctx); err != nil {
		return Report{}, err
	}

	log.Info(ctx, "starting benchmark",
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("k", cfg.K),
		logger.Int("scenarios", len(scenarios)),
	)

	var (
		mu        sync.Mutex
		report    = Report{Requests: cfg.Requests}
		latencies = make([]time.Duration, 0, cfg.Requests)
	)
	problem := func(msg string) {
		if len(report.Problems) < maxProblems {
			report.Problems = append(report.Problems, msg)
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Requests; i++ {
		scenario := scenarios[i%len(scenarios)]
		g.Go(func() error {
			t0 := time.Now()
			resp, err := c.retrieve(gctx, scenario, cfg.K)
			took := time.Since(t0)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				problem(fmt.Sprintf("request %d: %v", i, err))
				if cfg.Verbose {
					log.Warn(gctx, "request failed", logger.Int("request", i), logger.Error(err))
				}
				return nil
			}
			latencies = append(latencies, took)
			report.Succeeded++
			if resp.Status == "partial" {
				report.Partial++
			}
			if issues := validate(resp, cfg.K); len(issues) > 0 {
				report.Invalid++
				for _, issue := range issues {
					problem(fmt.Sprintf("request %d (%s): %s", i, resp.RequestID, issue))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(start)

	summarize(&report, latencies)
	log.Info(ctx, "benchmark complete",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("invalid", report.Invalid),
		logger.Duration("p50", report.P50),
		logger.Duration("p95", report.P95),
		logger.Duration("p99", report.P99),
		logger.Float64("rps", report.Throughput),
	)
	return report, ctx.Err()
}

func summarize(r *Report, latencies []time.Duration) {
	if r.Duration > 0 {
		r.Throughput = float64(r.Succeeded+r.Failed) / r.Duration.Seconds()
	}
	if len(latencies) == 0 {
		return
	}
	slices.Sort(latencies)
	r.P50 = percentile(latencies, 50)
	r.P95 = percentile(latencies, 95)
	r.P99 = percentile(latencies, 99)
	r.Max = latencies[len(latencies)-1]
}

// percentile uses the nearest-rank method over sorted.
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
