package api

import (
	"net/http"

	"github.com/jasonherngwang/peoples-court/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

type healthResponse struct {
	Status string `json:"status"`
	Index  struct {
		Backend   string `json:"backend"`
		Documents int    `json:"documents"`
		Dim       int    `json:"dim"`
	} `json:"index"`
	Classifier bool `json:"classifier"`
	Judge      bool `json:"judge"`
}

// HandleHealth handles GET /healthz requests. It answers 503 until the
// service has started.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	hs := h.deps.Health(r.Context())
	var resp healthResponse
	resp.Status = "ok"
	resp.Index.Backend = hs.IndexBackend
	resp.Index.Documents = hs.IndexDocuments
	resp.Index.Dim = hs.IndexDim
	resp.Classifier = hs.Classifier
	resp.Judge = hs.Judge

	status := http.StatusOK
	if !hs.Started {
		resp.Status = "starting"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// MetricsHandler serves the Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
