// Package benchmark drives concurrent retrieval requests against a running
// server, reports latency percentiles and checks every response body.
package benchmark

import (
	"errors"
	"time"
)

// ErrInvalidConfig is returned by Run for a config it cannot execute.
var ErrInvalidConfig = errors.New("benchmark: invalid config")

// ErrUnhealthy is returned when the server does not report ready.
var ErrUnhealthy = errors.New("benchmark: server not healthy")

// Config holds configuration for a benchmark run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Requests  int           // Number of retrieval requests to send
	Workers   int           // Number of concurrent workers
	K         int           // k_precedents sent with every request
	Timeout   time.Duration // HTTP request timeout
	Scenarios []string      // Cycled in order; DefaultScenarios when empty
	Verbose   bool
}

// Report summarises a run.
type Report struct {
	Requests   int
	Succeeded  int
	Failed     int
	Invalid    int
	Partial    int
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	Max        time.Duration
	Duration   time.Duration
	Throughput float64  // requests per second over the whole run
	Problems   []string // first maxProblems shape violations and failures
}

// OK reports whether every request succeeded with a valid body.
func (r Report) OK() bool { return r.Failed == 0 && r.Invalid == 0 }

// DefaultScenarios are used when no scenario file is given.
var DefaultScenarios = []string{
	"AITA for refusing to lend my car to my brother after he crashed the last one?",
	"AITA for not inviting my coworker to my wedding because she always talks about her ex?",
	"AITA for telling my roommate to pay more rent since her boyfriend basically lives here?",
	"AITA for skipping my sister's birthday dinner to finish a work deadline?",
	"AITA for asking my neighbor to stop practicing drums at 11pm?",
	"AITA for eating the leftovers my partner was saving without asking?",
	"AITA for refusing to give up my airplane seat so a family could sit together?",
	"AITA for charging my best friend for the photos I took at her engagement party?",
}
