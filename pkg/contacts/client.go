package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBaseURL = "https://app.loops.so"

var (
	// ErrMissingAPIKey is returned on first use when no API key was configured.
	ErrMissingAPIKey = errors.New("contacts: api key is not configured")
	// ErrUnexpectedStatus marks a non-2xx answer from the contact API.
	ErrUnexpectedStatus = errors.New("contacts: unexpected response status")
)

// Contact is the payload of a contact creation.
type Contact struct {
	Email     string `json:"email"`
	Source    string `json:"source,omitempty"`
	UserGroup string `json:"userGroup,omitempty"`
}

// Response is what the contact API answered.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports whether the API accepted the contact.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err converts a non-2xx response into an ErrUnexpectedStatus error.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s (status: %d)", ErrUnexpectedStatus, r.Body, r.StatusCode)
}

// Client talks to the transactional email vendor's contact API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new contact API client.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	// No overall timeout: a call is bounded by the caller's context only.
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

// CreateContact posts contact to the vendor. A transport failure is returned
// as an error; the vendor's status is reported in the Response and left to the
// caller to judge.
func (c *Client) CreateContact(ctx context.Context, contact Contact) (*Response, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	jsonBody, err := json.Marshal(contact)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/contacts/create", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(respBody)),
	}, nil
}
