// Command benchmark measures retrieval latency against a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jasonherngwang/peoples-court/internal/benchmark"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Default configuration constants.
const (
	defaultRequests = 200
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultK        = 3
	defaultTimeout  = 30 * time.Second
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		requests  = flag.Int("requests", defaultRequests, "Number of retrieval requests to send")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		k         = flag.Int("k", defaultK, "k_precedents for every request")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		scenarios = flag.String("scenarios", "", "File with one scenario per line (default: built-in set)")
		verbose   = flag.Bool("verbose", false, "Log every failed request")
	)
	flag.Parse()

	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		fmt.Fprintln(os.Stderr, "benchmark:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := benchmark.Config{
		BaseURL:  *baseURL,
		Requests: *requests,
		Workers:  *workers,
		K:        *k,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}
	if *scenarios != "" {
		f, err := os.Open(*scenarios)
		if err != nil {
			fmt.Fprintln(os.Stderr, "benchmark:", err)
			os.Exit(1)
		}
		cfg.Scenarios, err = benchmark.ReadScenarios(f)
		_ = f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, "benchmark:", err)
			os.Exit(1)
		}
	}

	report, err := benchmark.Run(ctx, cfg)
	benchmark.WriteSummary(os.Stdout, report)
	if err != nil {
		fmt.Fprintln(os.Stderr, "benchmark:", err)
		os.Exit(1)
	}
	if !report.OK() {
		os.Exit(1)
	}
}
