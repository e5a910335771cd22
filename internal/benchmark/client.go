package benchmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client wraps http.Client with the JSON helpers the runner needs.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// health fetches /healthz and returns its status field.
func (c *client) health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body.Status, fmt.Errorf("%w: status %d (%s)", ErrUnhealthy, resp.StatusCode, body.Status)
	}
	return body.Status, nil
}

type retrieveRequest struct {
	Scenario    string `json:"scenario"`
	KPrecedents int    `json:"k_precedents"`
}

type comment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

type precedent struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Verdict  string    `json:"verdict"`
	Rank     int       `json:"rank"`
	Score    float64   `json:"score"`
	Comments []comment `json:"comments"`
}

type retrieveResponse struct {
	Precedents []precedent         `json:"precedents"`
	Consensus  map[string]float64 `json:"consensus"`
	Status     string             `json:"status"`
	Warnings   []string           `json:"warnings"`
	RequestID  string             `json:"request_id"`
}

// retrieve posts one scenario and decodes a 200 response.
func (c *client) retrieve(ctx context.Context, scenario string, k int) (retrieveResponse, error) {
	payload, err := json.Marshal(retrieveRequest{Scenario: scenario, KPrecedents: k})
	if err != nil {
		return retrieveResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/retrieve", bytes.NewReader(payload))
	if err != nil {
		return retrieveResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return retrieveResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return retrieveResponse{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return retrieveResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	var out retrieveResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return retrieveResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
