// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jasonherngwang/peoples-court/internal/adapters/ratelimit"
	service "github.com/jasonherngwang/peoples-court/internal/app"
	"github.com/jasonherngwang/peoples-court/internal/domain/retrieval"
	"github.com/jasonherngwang/peoples-court/internal/domain/search"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Result, error)
	Deliberate(ctx context.Context, scenario string, res retrieval.Result) (service.Ruling, error)
	Adjudicate(ctx context.Context, req retrieval.Request) (service.Adjudication, error)
	JudgeEnabled() bool
	Rebuild(ctx context.Context) (search.BuildInfo, error)
	Health(ctx context.Context) service.Health
	Limiter() ratelimit.Limiter
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	retrieveHandler   *RetrieveHandler
	adjudicateHandler *AdjudicateHandler
	rebuildHandler    *RebuildHandler
	limits            LimiterProvider
	trustProxy        bool
}

// NewServer creates a new API server with all handlers. When trustProxy is
// set, clients are identified by the first X-Forwarded-For hop.
func NewServer(deps Dependencies, statsProvider StatsProvider, trustProxy bool) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(deps),
		statsHandler:      NewStatsHandler(statsProvider),
		retrieveHandler:   NewRetrieveHandler(deps),
		adjudicateHandler: NewAdjudicateHandler(deps),
		rebuildHandler:    NewRebuildHandler(deps),
		limits:            deps,
		trustProxy:        trustProxy,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", RequestIDMiddleware(MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", RequestIDMiddleware(MetricsMiddleware(s.statsHandler.HandleStats, "stats")))

	mux.HandleFunc("/v1/retrieve", s.route("retrieve", s.retrieveHandler.HandleRetrieve))
	mux.HandleFunc("/v1/adjudicate", s.route("adjudicate", s.adjudicateHandler.HandleAdjudicate))
	mux.HandleFunc("/v1/adjudicate/stream", s.route("adjudicate_stream", s.adjudicateHandler.HandleStream))
	mux.HandleFunc("/v1/index/rebuild", RequestIDMiddleware(MetricsMiddleware(s.rebuildHandler.HandleRebuild, "index_rebuild")))
}

// route wraps a rate limited case endpoint.
func (s *Server) route(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return RequestIDMiddleware(MetricsMiddleware(RateLimitMiddleware(h, s.limits, s.trustProxy), endpoint))
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, RequestID: w.Header().Get(requestIDHeader)})
}

// classify maps a service error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errs.IsValidation(err), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, service.ErrNoPrecedents):
		return http.StatusNotFound, "no_precedents"
	case errors.Is(err, service.ErrJudgeDisabled):
		return http.StatusServiceUnavailable, "judge_unavailable"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_ready"
	case errs.IsConsistency(err):
		return http.StatusInternalServerError, "consistency_error"
	case errs.IsUpstream(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// decodeCase reads and validates a case request body.
func decodeCase(w http.ResponseWriter, r *http.Request) (caseRequest, error) {
	const op = "api.decode_case"
	var req caseRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return req, errs.WrapKind(op, errs.ErrValidation, fmt.Errorf("%w: %v", ErrBadRequest, err))
	}
	if err := req.validate(); err != nil {
		return req, errs.WrapKind(op, errs.ErrValidation, err)
	}
	req.Scenario = strings.TrimSpace(req.Scenario)
	return req, nil
}
