package api

import (
	"net/http"

	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// RetrieveHandler handles precedent retrieval requests.
type RetrieveHandler struct {
	deps Dependencies
}

// NewRetrieveHandler creates a new retrieve handler.
func NewRetrieveHandler(deps Dependencies) *RetrieveHandler {
	return &RetrieveHandler{deps: deps}
}

// HandleRetrieve handles POST /v1/retrieve requests.
func (h *RetrieveHandler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	req, err := decodeCase(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := h.deps.Retrieve(r.Context(), req.retrieval())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRetrieveResponse(res, logger.RequestID(r.Context())))
}
