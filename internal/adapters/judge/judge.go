// Package judge turns an assembled brief into a structured opinion using a
// hosted language model.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jasonherngwang/peoples-court/internal/domain/assembly"
	"github.com/jasonherngwang/peoples-court/internal/domain/model"
	"github.com/jasonherngwang/peoples-court/internal/domain/verdict"
	"github.com/jasonherngwang/peoples-court/pkg/errs"
)

// ErrDisabled is returned by New when the judge provider is "none".
var ErrDisabled = errors.New("judge is disabled")

// Citation is the judge's comparison with one precedent.
type Citation struct {
	CaseID     string `json:"case_id"`
	CaseName   string `json:"case_name,omitempty"`
	Comparison string `json:"comparison"`
}

// Opinion is the judge's structured ruling.
type Opinion struct {
	Verdict          verdict.Label `json:"verdict"`
	OpeningStatement string        `json:"opening_statement"`
	Facts            string        `json:"facts"`
	Precedents       []Citation    `json:"precedents"`
	Deliberation     string        `json:"deliberation"`
}

// Judge deliberates on a brief.
type Judge interface {
	Deliberate(ctx context.Context, brief assembly.Brief) (Opinion, error)
}

// Cited pairs a citation with the retrieved precedent it names. Precedent is
// nil when the judge cited an id that was not in the brief.
type Cited struct {
	Citation
	Precedent *model.Precedent `json:"precedent,omitempty"`
}

// Cite merges the opinion's citations with the retrieved precedents by case
// id, keeping the judge's order. Unknown ids are kept as returned.
func Cite(op Opinion, precedents []model.Precedent) []Cited {
	byID := make(map[string]int, len(precedents))
	for i, p := range precedents {
		byID[p.ID] = i
	}
	out := make([]Cited, 0, len(op.Precedents))
	for _, c := range op.Precedents {
		cited := Cited{Citation: c}
		if i, ok := byID[strings.TrimSpace(c.CaseID)]; ok {
			p := precedents[i]
			cited.Precedent = &p
		}
		out = append(out, cited)
	}
	return out
}

// instructions precede the rendered brief in every prompt.
const instructions = `You are the Judge of 'The People's Court'. Your task is to provide a final verdict in just 3-4 concise, authoritative sentences.

Mandatory Instructions:
1. Verdict: Must be one of YTA, NTA, ESH, NAH.
2. Explanation: Provide a few sentences explaining your ruling. You MUST refer to the precedents below by their 'case_name'.
3. Precedents: For each case provided in the context, create a very short (1 sentence) comparison and an amusing, descriptive 'case_name' (e.g. 'The Case of the Audacious Avocado'). Use the case id exactly as given.`

// Prompt returns the full judge prompt for brief.
func Prompt(brief assembly.Brief) string {
	return instructions + "\n\n" + brief.Render()
}

// parseOpinion decodes and checks a model response.
func parseOpinion(op, raw string) (Opinion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var out Opinion
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Opinion{}, errs.WrapKind(op, errs.ErrUpstream, fmt.Errorf("decode opinion: %w", err))
	}
	l, ok := verdict.Parse(string(out.Verdict))
	if !ok {
		return Opinion{}, errs.WrapKind(op, errs.ErrUpstream, fmt.Errorf("judge returned verdict %q", out.Verdict))
	}
	out.Verdict = l
	return out, nil
}

// Config selects and configures a judge.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// New creates the judge named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Judge, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewGemini(ctx, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	case "none":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unknown judge provider: %s (supported: gemini, openai, none)", cfg.Provider)
	}
}
