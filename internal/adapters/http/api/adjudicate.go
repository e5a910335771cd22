package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/jasonherngwang/peoples-court/internal/app"
	"github.com/jasonherngwang/peoples-court/pkg/logger"
)

// Stream event names, in emission order.
const (
	eventStatus     = "status"
	eventConsensus  = "consensus"
	eventPrecedents = "precedents"
	eventOpinion    = "opinion"
	eventError      = "error"
	eventDone       = "done"
)

// AdjudicateHandler handles full case adjudication.
type AdjudicateHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewAdjudicateHandler creates a new adjudicate handler.
func NewAdjudicateHandler(deps Dependencies) *AdjudicateHandler {
	return &AdjudicateHandler{deps: deps, log: logger.Get().Named("adjudicate")}
}

// HandleAdjudicate handles POST /v1/adjudicate requests.
func (h *AdjudicateHandler) HandleAdjudicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	req, err := decodeCase(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ctx := r.Context()
	out, err := h.deps.Adjudicate(ctx, req.retrieval())
	switch {
	case errors.Is(err, service.ErrNoPrecedents):
		writeJSON(w, http.StatusNotFound, noPrecedentsResponse{
			errorResponse: errorResponse{Code: "no_precedents", Message: err.Error(), RequestID: logger.RequestID(ctx)},
			pollResponse:  toPoll(out.Retrieval),
		})
		return
	case err != nil:
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, adjudicateResponse{
		opinionResponse: toOpinion(out.Ruling),
		pollResponse:    toPoll(out.Retrieval),
		Status:          out.Retrieval.Status,
		Warnings:        warnings(out.Retrieval.Warnings),
		RequestID:       logger.RequestID(ctx),
	})
}

// sse writes Server-Sent Events frames of the form data: {"event","data"}.
type sse struct {
	w http.ResponseWriter
	f http.Flusher
}

type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s sse) send(event string, data any) error {
	b, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// fail emits an error event followed by done.
func (s sse) fail(err error) {
	_, code := classify(err)
	_ = s.send(eventError, errorResponse{Code: code, Message: err.Error()})
	_ = s.send(eventDone, nil)
}

// HandleStream handles POST /v1/adjudicate/stream requests. Request errors
// detected before the first event are plain JSON errors; later failures are
// reported as an error event.
func (h *AdjudicateHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", ErrStreamUnsupported)
		return
	}
	req, err := decodeCase(w, r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !h.deps.JudgeEnabled() {
		writeServiceError(w, service.ErrJudgeDisabled)
		return
	}

	ctx := r.Context()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	s := sse{w: w, f: flusher}

	if err := s.send(eventStatus, statusEvent{Stage: "retrieving", Message: "Gathering precedents and polling the jury"}); err != nil {
		return
	}
	res, err := h.deps.Retrieve(ctx, req.retrieval())
	if err != nil {
		h.log.Warn(ctx, "stream retrieval failed", logger.Error(err))
		s.fail(err)
		return
	}
	if err := s.send(eventConsensus, toPoll(res)); err != nil {
		return
	}
	if err := s.send(eventPrecedents, precedentsEvent{
		Precedents: toPrecedents(res.Precedents),
		Status:     res.Status,
		Warnings:   warnings(res.Warnings),
	}); err != nil {
		return
	}
	if len(res.Precedents) == 0 {
		s.fail(service.ErrNoPrecedents)
		return
	}

	if err := s.send(eventStatus, statusEvent{Stage: "deliberating", Message: "The judge is deliberating"}); err != nil {
		return
	}
	ruling, err := h.deps.Deliberate(ctx, req.Scenario, res)
	if err != nil {
		h.log.Warn(ctx, "stream deliberation failed", logger.Error(err))
		s.fail(err)
		return
	}
	if err := s.send(eventOpinion, toOpinion(ruling)); err != nil {
		return
	}
	_ = s.send(eventDone, map[string]string{"request_id": logger.RequestID(ctx)})
}
