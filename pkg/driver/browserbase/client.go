package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// StatusRunning is the Browserbase status of a session that can be attached to.
const StatusRunning = "RUNNING"

const statusRequestRelease = "REQUEST_RELEASE"

// Client is a minimal Browserbase REST API client covering session creation,
// lookup and release.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// Viewport is the remote browser window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContextSettings attaches a persisted Browserbase context.
type ContextSettings struct {
	ID      string `json:"id"`
	Persist bool   `json:"persist"`
}

// BrowserSettings configures the remote browser.
type BrowserSettings struct {
	Viewport        Viewport         `json:"viewport"`
	Context         *ContextSettings `json:"context,omitempty"`
	AdvancedStealth bool             `json:"advancedStealth,omitempty"`
}

// CreateSessionRequest is the payload for creating a new session.
type CreateSessionRequest struct {
	ProjectID       string            `json:"projectId"`
	Proxies         bool              `json:"proxies,omitempty"`
	KeepAlive       bool              `json:"keepAlive,omitempty"`
	BrowserSettings BrowserSettings   `json:"browserSettings"`
	UserMetadata    map[string]string `json:"userMetadata,omitempty"`
}

type updateSessionRequest struct {
	ProjectID string `json:"projectId"`
	Status    string `json:"status"`
}

// RemoteSession is a Browserbase session as returned by the API.
type RemoteSession struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId"`
	Status     string    `json:"status"`
	ConnectURL string    `json:"connectUrl"`
	Region     string    `json:"region,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// APIError is a non-2xx response from the Browserbase API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserbase API returned %d: %s", e.StatusCode, e.Body)
}

// CreateSession starts a new remote browser session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*RemoteSession, error) {
	var rs RemoteSession
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &rs); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &rs, nil
}

// GetSession looks up an existing remote session.
func (c *Client) GetSession(ctx context.Context, id string) (*RemoteSession, error) {
	var rs RemoteSession
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &rs); err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &rs, nil
}

// ReleaseSession asks Browserbase to end a session before its timeout.
func (c *Client) ReleaseSession(ctx context.Context, projectID, id string) error {
	req := updateSessionRequest{ProjectID: projectID, Status: statusRequestRelease}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id), req, nil); err != nil {
		return fmt.Errorf("release session %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-BB-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
