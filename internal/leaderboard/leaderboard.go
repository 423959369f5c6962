// Package leaderboard posts the per-pass ranking to the optional
// leaderboard API. Failures are logged and swallowed by the caller;
// this package only reports them.
package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Client posts ranking submissions to one leaderboard deployment.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client bound to baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Submission is the payload this client posts.
type Submission struct {
	ValidatorHotkey string      `json:"validator_hotkey"`
	EpochVersion    string      `json:"epoch_version"`
	Ranking         interface{} `json:"ranking"`
}

// Submit POSTs sub to /v1/leaderboard/submit.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal leaderboard submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/leaderboard/submit", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build leaderboard request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post leaderboard submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("leaderboard submission rejected: status %d", resp.StatusCode)
	}
	return nil
}
