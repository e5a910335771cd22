package api

import "net/http"

// StatsProvider reports a snapshot of corpus, index and upstream counters.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves GET /stats.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler wraps provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats writes the provider snapshot. The snapshot changes with every
// rebuild and request, so it is never cached.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "validation_error", nil)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
