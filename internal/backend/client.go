package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"galleries/internal/domain"
)

// ── Backend client ─────────────────────────────────────────
// Talks to the generation backend and its viewer API. Calls are never
// retried; a failure is returned as-is so the caller can surface it.

const (
	defaultTimeout = 60 * time.Second
	// Generations carry base64 images, keep the cap generous.
	maxBodyBytes = 64 * 1024 * 1024
)

// TokenFunc returns the bearer token to send, or "" for none.
type TokenFunc func() (string, error)

type Client struct {
	mu      sync.RWMutex
	baseURL string

	http    *http.Client
	limiter *rate.Limiter
	token   TokenFunc
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit spaces requests at least every apart, allowing burst at once.
func WithRateLimit(every time.Duration, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address in use.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL points the client at another backend.
func (c *Client) SetBaseURL(u string) {
	c.mu.Lock()
	c.baseURL = strings.TrimRight(u, "/")
	c.mu.Unlock()
}

// ── Generation API ─────────────────────────────────────────

// ListDomains returns the content domains the backend can generate.
func (c *Client) ListDomains(ctx context.Context) ([]domain.DomainInfo, error) {
	var out []domain.DomainInfo
	if err := c.do(ctx, http.MethodGet, "/api/domains", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type generateRequest struct {
	Concept     string              `json:"concept"`
	Domain      string              `json:"domain"`
	DesignSpace *domain.DesignSpace `json:"design_space,omitempty"`
}

// StartSession asks the backend for a first batch for concept in the given
// content domain. space may be nil to let the backend propose axes.
func (c *Client) StartSession(ctx context.Context, concept, domainName string, space *domain.DesignSpace) (*domain.GenerationState, error) {
	var out domain.GenerationState
	body := generateRequest{Concept: concept, Domain: domainName, DesignSpace: space}
	if err := c.do(ctx, http.MethodPost, "/api/generate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchGeneration returns the current design space and generations of a session.
func (c *Client) FetchGeneration(ctx context.Context, sessionID string) (*domain.GenerationState, error) {
	var out domain.GenerationState
	path := "/api/generation/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type regenerateRequest struct {
	DesignSpace domain.DesignSpace `json:"design_space"`
}

// Regenerate sends the full design space and returns the new batch.
func (c *Client) Regenerate(ctx context.Context, sessionID string, space domain.DesignSpace) (*domain.GenerationState, error) {
	if space.Axes == nil {
		space.Axes = []domain.Axis{}
	}
	var out domain.GenerationState
	path := "/api/generation/" + url.PathEscape(sessionID) + "/regenerate"
	if err := c.do(ctx, http.MethodPost, path, regenerateRequest{DesignSpace: space}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── Viewer API ─────────────────────────────────────────────

// Select marks item as the selected artifact.
func (c *Client) Select(ctx context.Context, item string) error {
	return c.do(ctx, http.MethodPost, "/api/select", map[string]string{"file": item}, nil)
}

// PostFeedback appends one feedback string to an item.
func (c *Client) PostFeedback(ctx context.Context, entry domain.FeedbackEntry) error {
	return c.do(ctx, http.MethodPost, "/api/feedback", entry, nil)
}

type feedbackResponse struct {
	Feedback []string `json:"feedback"`
}

// GetFeedback returns every feedback string recorded for item.
func (c *Client) GetFeedback(ctx context.Context, item string) ([]string, error) {
	var out feedbackResponse
	if err := c.do(ctx, http.MethodGet, "/api/feedback/"+url.PathEscape(item), nil, &out); err != nil {
		return nil, err
	}
	if out.Feedback == nil {
		out.Feedback = []string{}
	}
	return out.Feedback, nil
}

// AllFeedback returns the feedback of every item keyed by item id.
func (c *Client) AllFeedback(ctx context.Context) (map[string][]string, error) {
	out := map[string][]string{}
	if err := c.do(ctx, http.MethodGet, "/api/all-feedback", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type SaveResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// SaveSelected asks the backend to persist the selected artifact.
func (c *Client) SaveSelected(ctx context.Context) (*SaveResult, error) {
	var out SaveResult
	if err := c.do(ctx, http.MethodPost, "/api/save-selected", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── Transport ──────────────────────────────────────────────

// do sends one JSON request and decodes the answer into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return fmt.Errorf("backend token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorDetail(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &PayloadError{Path: path, Err: err}
	}
	return nil
}

// errorDetail pulls {"detail": "..."} or {"error": "..."} out of an error
// body, falling back to the trimmed text.
func errorDetail(data []byte) string {
	var obj struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &obj) == nil {
		if s, ok := obj.Detail.(string); ok && s != "" {
			return s
		}
		if obj.Error != "" {
			return obj.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 300 {
		text = text[:300]
	}
	return text
}
