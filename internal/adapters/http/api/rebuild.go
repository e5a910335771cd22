package api

import (
	"net/http"
	"time"

	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// RebuildHandler triggers an index rebuild.
type RebuildHandler struct {
	deps Dependencies
}

// NewRebuildHandler creates a new rebuild handler.
func NewRebuildHandler(deps Dependencies) *RebuildHandler {
	return &RebuildHandler{deps: deps}
}

// HandleRebuild handles POST /v1/index/rebuild requests. The previous index
// generation keeps serving until the new one is published.
func (h *RebuildHandler) HandleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	info, err := h.deps.Rebuild(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rebuildResponse{
		Documents: info.Documents,
		Dim:       info.Dim,
		TookMS:    float64(info.Took.Microseconds()) / 1000,
		BuiltAt:   info.BuiltAt.UTC().Format(time.RFC3339),
		RequestID: logger.RequestID(r.Context()),
	})
}
