package devin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"devinflow/internal/status"
)

// DefaultBaseURL is the production session API.
const DefaultBaseURL = "https://api.devin.ai/v1"

// DefaultMockURL is where the bundled mock server listens by default.
const DefaultMockURL = "http://localhost:3001/v1"

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// DefaultHTTPRetries is the number of transport-level retries for 5xx, 429
// and network errors. Polling has its own retry loop on top of this.
const DefaultHTTPRetries = 2

// WebSessionBaseURL is the prefix of the human-facing session page.
const WebSessionBaseURL = "https://app.devin.ai/sessions/"

// API is the session API surface. [Client] and [MockClient] implement it.
type API interface {
	CreateSession(ctx context.Context, prompt, playbookID, title string) (*CreatedSession, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	ChatSession(ctx context.Context, sessionID, message string) (*ChatResult, error)
}

// Config holds the settings for [NewClient].
type Config struct {
	// BaseURL is the API root, e.g. [DefaultBaseURL] or a mock server URL.
	BaseURL string

	// APIKey is sent as a bearer token. Calls fail with [ErrMissingAPIKey]
	// when it is empty.
	APIKey string

	// KnowledgeIDs are attached to every created session.
	KnowledgeIDs []string

	// HTTPRetries is the transport retry count. Zero selects
	// [DefaultHTTPRetries]; a negative value disables retries.
	HTTPRetries int

	// Timeout bounds each HTTP request. Zero selects [DefaultTimeout].
	Timeout time.Duration
}

// Client talks to the session API over HTTP.
type Client struct {
	http         *retryablehttp.Client
	baseURL      string
	apiKey       string
	knowledgeIDs []string
	logger       *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithLogger routes request and retry diagnostics to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetryWait sets the backoff bounds between transport retries.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.RetryWaitMin = minWait
		c.http.RetryWaitMax = maxWait
	}
}

// WithHTTPClient replaces the underlying *http.Client, e.g. an httptest
// server's client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// NewClient creates a [Client]. The API key is not checked here; each call
// checks it so that a client can be built before credentials are known.
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retries := cfg.HTTPRetries
	switch {
	case retries == 0:
		retries = DefaultHTTPRetries
	case retries < 0:
		retries = 0
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.HTTPClient.Timeout = timeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil

	c := &Client{
		http:         rc,
		baseURL:      baseURL,
		apiKey:       cfg.APIKey,
		knowledgeIDs: append([]string(nil), cfg.KnowledgeIDs...),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger != nil {
		rc.Logger = retryablehttp.LeveledLogger(c.logger)
	}
	if rc.HTTPClient.Timeout == 0 {
		rc.HTTPClient.Timeout = timeout
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateSession starts a new remote session with the given prompt.
//
// playbookID and title are optional. A playbook id without the
// "playbook-" prefix gets one.
func (c *Client) CreateSession(ctx context.Context, prompt, playbookID, title string) (*CreatedSession, error) {
	if err := c.checkAPIKey(); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	body := CreateSessionRequest{
		Prompt:       prompt,
		Idempotent:   false,
		KnowledgeIDs: c.knowledgeIDs,
		Title:        title,
	}
	if body.KnowledgeIDs == nil {
		body.KnowledgeIDs = []string{}
	}
	if playbookID != "" {
		if !strings.HasPrefix(playbookID, "playbook-") {
			playbookID = "playbook-" + playbookID
		}
		body.PlaybookID = playbookID
	}

	var created CreatedSession
	if err := c.do(ctx, http.MethodPost, "/sessions", body, &created); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("failed to create session: response has no session_id")
	}
	return &created, nil
}

// GetSession reads a session's status and transcript.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := c.checkAPIKey(); err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}

	var session Session
	if err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	if session.SessionID == "" {
		session.SessionID = sessionID
	}
	session.Derive()
	return &session, nil
}

// ChatSession appends a user message to a session's transcript.
func (c *Client) ChatSession(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	if err := c.checkAPIKey(); err != nil {
		return nil, fmt.Errorf("failed to send message to session %s: %w", sessionID, err)
	}

	var raw json.RawMessage
	path := "/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, ChatRequest{Message: message}, &raw); err != nil {
		return nil, fmt.Errorf("failed to send message to session %s: %w", sessionID, err)
	}
	return &ChatResult{
		SessionID:   sessionID,
		MessageSent: true,
		Raw:         raw,
	}, nil
}

// IsSessionCompleted classifies the status and status_enum fields of a
// session read.
func (c *Client) IsSessionCompleted(statusValue, statusEnum string) bool {
	return status.IsCompleted(statusValue, statusEnum)
}

// SessionURL returns the web page for a session id.
func SessionURL(sessionID string) string {
	return WebSessionBaseURL + strings.TrimPrefix(sessionID, "devin-")
}

func (c *Client) checkAPIKey() error {
	if strings.TrimSpace(c.apiKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// do sends one request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	var rawBody any
	if payload != nil {
		rawBody = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, rawBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", ServiceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return parseError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", ServiceName, err)
	}
	return nil
}

// parseError converts an error response into an [APIError].
func parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		Service:    ServiceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Message != "":
			apiErr.Message = errResp.Message
		case errResp.Error != "":
			apiErr.Message = errResp.Error
		case errResp.Detail != "":
			apiErr.Message = errResp.Detail
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
