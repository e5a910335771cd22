package api

import (
	"strings"

	"github.com/jasonherngwang/peoples-court/internal/adapters/judge"
	service "github.com/jasonherngwang/peoples-court/internal/app"
	"github.com/jasonherngwang/peoples-court/internal/domain/consensus"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/retrieval"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
)

// caseRequest mirrors the OpenAPI schema shared by the case endpoints.
type caseRequest struct {
	Scenario    string `json:"scenario"`
	K           int    `json:"k_precedents"`
	Diagnostics bool   `json:"include_diagnostics"`
}

func (c caseRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Scenario) == "":
		return ErrEmptyScenario
	case c.K < 0:
		return ErrNegativeK
	}
	return nil
}

func (c caseRequest) retrieval() retrieval.Request {
	return retrieval.Request{Scenario: c.Scenario, K: c.K, Diagnostics: c.Diagnostics}
}

type commentResponse struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

type precedentResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Text      string            `json:"text"`
	Verdict   verdict.Label     `json:"verdict"`
	Rank      int               `json:"rank"`
	Score     float64           `json:"score"`
	Permalink string            `json:"permalink,omitempty"`
	Comments  []commentResponse `json:"comments"`
}

func toPrecedent(p model.Precedent) precedentResponse {
	out := precedentResponse{
		ID:        p.ID,
		Title:     p.Title,
		Text:      p.Body,
		Verdict:   p.Verdict,
		Rank:      p.Rank,
		Score:     p.Score,
		Permalink: p.Permalink,
		Comments:  make([]commentResponse, 0, len(p.Comments)),
	}
	for _, c := range p.Comments {
		out.Comments = append(out.Comments, commentResponse{Author: c.Author, Body: c.Body, Score: c.Score})
	}
	return out
}

func toPrecedents(ps []model.Precedent) []precedentResponse {
	out := make([]precedentResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPrecedent(p))
	}
	return out
}

// pollResponse is the jury poll. Consensus is null when the poll is
// unavailable.
type pollResponse struct {
	Consensus          *consensus.Distribution `json:"consensus"`
	ConsensusAvailable bool                    `json:"consensus_available"`
}

func toPoll(res retrieval.Result) pollResponse {
	if !res.ConsensusAvailable {
		return pollResponse{}
	}
	d := res.Consensus
	return pollResponse{Consensus: &d, ConsensusAvailable: true}
}

type retrieveResponse struct {
	Precedents []precedentResponse `json:"precedents"`
	pollResponse
	Status      retrieval.Status       `json:"status"`
	Warnings    []string               `json:"warnings"`
	RequestID   string                 `json:"request_id"`
	Diagnostics *retrieval.Diagnostics `json:"diagnostics,omitempty"`
}

func toRetrieveResponse(res retrieval.Result, requestID string) retrieveResponse {
	return retrieveResponse{
		Precedents:   toPrecedents(res.Precedents),
		pollResponse: toPoll(res),
		Status:       res.Status,
		Warnings:     warnings(res.Warnings),
		RequestID:    requestID,
		Diagnostics:  res.Diagnostics,
	}
}

// citedResponse is one citation merged with the precedent it names.
type citedResponse struct {
	CaseID     string             `json:"case_id"`
	CaseName   string             `json:"case_name,omitempty"`
	Comparison string             `json:"comparison"`
	Precedent  *precedentResponse `json:"precedent,omitempty"`
}

func toCitations(cs []judge.Cited) []citedResponse {
	out := make([]citedResponse, 0, len(cs))
	for _, c := range cs {
		r := citedResponse{CaseID: c.CaseID, CaseName: c.CaseName, Comparison: c.Comparison}
		if c.Precedent != nil {
			p := toPrecedent(*c.Precedent)
			r.Precedent = &p
		}
		out = append(out, r)
	}
	return out
}

// opinionResponse is the judge ruling.
type opinionResponse struct {
	Verdict          verdict.Label   `json:"verdict"`
	OpeningStatement string          `json:"opening_statement"`
	Facts            string          `json:"facts"`
	Precedents       []citedResponse `json:"precedents"`
	Deliberation     string          `json:"deliberation"`
}

func toOpinion(r service.Ruling) opinionResponse {
	return opinionResponse{
		Verdict:          r.Opinion.Verdict,
		OpeningStatement: r.Opinion.OpeningStatement,
		Facts:            r.Opinion.Facts,
		Precedents:       toCitations(r.Citations),
		Deliberation:     r.Opinion.Deliberation,
	}
}

type adjudicateResponse struct {
	opinionResponse
	pollResponse
	Status    retrieval.Status `json:"status"`
	Warnings  []string         `json:"warnings"`
	RequestID string           `json:"request_id"`
}

// noPrecedentsResponse keeps the poll when there is nothing to rule on.
type noPrecedentsResponse struct {
	errorResponse
	pollResponse
}

type statusEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

type precedentsEvent struct {
	Precedents []precedentResponse `json:"precedents"`
	Status     retrieval.Status    `json:"status"`
	Warnings   []string            `json:"warnings"`
}

type rebuildResponse struct {
	Documents int     `json:"documents"`
	Dim       int     `json:"dim"`
	TookMS    float64 `json:"took_ms"`
	BuiltAt   string  `json:"built_at"`
	RequestID string  `json:"request_id"`
}

func warnings(w []string) []string {
	if w == nil {
		return []string{}
	}
	return w
}
