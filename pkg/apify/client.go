package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://api.apify.com"
	DefaultPollInterval = 2 * time.Second
)

// Terminal run statuses reported by the actor-run API.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED-OUT"
)

var (
	// ErrMissingToken is returned on first use when no API token was configured.
	ErrMissingToken = errors.New("apify: api token is not configured")
	// ErrRunFailed is returned when an actor run ends in a non-success status.
	ErrRunFailed = errors.New("apify: actor run failed")
	// ErrNoResults is returned when a successful run produced an empty dataset.
	ErrNoResults = errors.New("apify: actor run returned no results")
)

// Config holds the actor-run API connection details.
type Config struct {
	BaseURL      string
	Token        string
	PollInterval time.Duration
	// RequestsPerSecond throttles every outbound request. Zero disables throttling.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client starts actor runs, waits for them and reads their result datasets.
type Client struct {
	baseURL      string
	token        string
	pollInterval time.Duration
	limiter      *rate.Limiter
	httpClient   *http.Client
}

// DatasetOptions controls how result items are read back.
type DatasetOptions struct {
	// Fields limits the returned attributes of every item. Empty returns all of them.
	Fields []string
	Limit  int
}

// Run is the subset of run metadata the client relies on.
type Run struct {
	ID               string `json:"id"`
	ActID            string `json:"actId"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// NewClient creates a new actor-run API client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No overall timeout: a run is bounded by the caller's context only.
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:      baseURL,
		token:        cfg.Token,
		pollInterval: poll,
		limiter:      limiter,
		httpClient:   httpClient,
	}
}

// RunActor starts actorID with input, polls the run until it finishes and
// returns the items of its default dataset.
func (c *Client) RunActor(ctx context.Context, actorID string, input any, opts DatasetOptions) ([]json.RawMessage, error) {
	run, err := c.StartRun(ctx, actorID, input)
	if err != nil {
		return nil, err
	}

	run, err = c.WaitForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	if run.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: run %s of actor %s finished with status %s", ErrRunFailed, run.ID, actorID, run.Status)
	}

	return c.ListItems(ctx, run.DefaultDatasetID, opts)
}

// StartRun submits a new run of actorID.
func (c *Client) StartRun(ctx context.Context, actorID string, input any) (*Run, error) {
	endpoint := fmt.Sprintf("/v2/acts/%s/runs", url.PathEscape(actorID))

	var envelope struct {
		Data Run `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, endpoint, nil, input, &envelope); err != nil {
		return nil, fmt.Errorf("failed to start run of actor %s: %w", actorID, err)
	}
	return &envelope.Data, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	endpoint := fmt.Sprintf("/v2/actor-runs/%s", url.PathEscape(runID))

	var envelope struct {
		Data Run `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &envelope.Data, nil
}

// WaitForRun polls runID until it reaches a terminal status or ctx is done.
func (c *Client) WaitForRun(ctx context.Context, runID string) (*Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if isTerminal(run.Status) {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for run %s: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListItems reads the items of a dataset.
func (c *Client) ListItems(ctx context.Context, datasetID string, opts DatasetOptions) ([]json.RawMessage, error) {
	endpoint := fmt.Sprintf("/v2/datasets/%s/items", url.PathEscape(datasetID))

	query := url.Values{}
	query.Set("format", "json")
	query.Set("clean", "true")
	if len(opts.Fields) > 0 {
		query.Set("fields", strings.Join(opts.Fields, ","))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var items []json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, endpoint, query, nil, &items); err != nil {
		return nil, fmt.Errorf("failed to list items of dataset %s: %w", datasetID, err)
	}
	return items, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, query url.Values, body, out any) error {
	if c.token == "" {
		return ErrMissingToken
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	reqURL := c.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api error: %s (status: %d)", strings.TrimSpace(string(respBody)), resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func isTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusAborted, StatusTimedOut:
		return true
	}
	return false
}
