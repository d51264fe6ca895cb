// Package vapi is a small REST client for the voice platform API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"datemate/pkg/apperr"
	"datemate/pkg/config"
)

const (
	defaultBaseURL        = "https://api.vapi.ai"
	defaultRequestTimeout = 20 * time.Second
	maxErrorBody          = 64 << 10
)

// Client talks to the platform with bearer auth, a per-request timeout and
// a client-side rate limit.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New builds a client from config. A missing API key is reported per call.
func New(cfg config.VapiConfig, log *slog.Logger, opts ...Option) *Client {
	if log == nil {
		log = slog.Default()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = max(1, int(cfg.RequestsPerSecond))
		}
	}

	c := &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{},
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With("component", "vapi.client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// ListAssistants returns up to limit assistants. Undecodable items are skipped.
func (c *Client) ListAssistants(ctx context.Context, limit int, pageToken string) (AssistantPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/assistant", query, nil, &raw); err != nil {
		return AssistantPage{}, err
	}

	items, envelope, err := splitList(raw)
	if err != nil {
		return AssistantPage{}, apperr.UpstreamUnavailable(err, "GET /assistant")
	}

	page := AssistantPage{NextPageToken: envelope.NextPageToken}
	for _, item := range items {
		var assistant Assistant
		if err := json.Unmarshal(item, &assistant); err != nil || assistant.ID == "" {
			c.log.WarnContext(ctx, "Skipping invalid assistant item", "error", errString(err, "missing id"))
			page.Skipped++
			continue
		}
		page.Assistants = append(page.Assistants, assistant)
	}
	return page, nil
}

// GetAssistant fetches one assistant.
func (c *Client) GetAssistant(ctx context.Context, id string) (Assistant, error) {
	var assistant Assistant
	err := c.do(ctx, http.MethodGet, "/assistant/"+url.PathEscape(id), nil, nil, &assistant)
	return assistant, err
}

// CreateAssistant creates an assistant and returns the stored resource.
func (c *Client) CreateAssistant(ctx context.Context, assistant Assistant) (Assistant, error) {
	var created Assistant
	err := c.do(ctx, http.MethodPost, "/assistant", nil, assistant, &created)
	return created, err
}

// UpdateAssistant applies update and returns the stored resource.
func (c *Client) UpdateAssistant(ctx context.Context, id string, update AssistantUpdate) (Assistant, error) {
	var updated Assistant
	err := c.do(ctx, http.MethodPut, "/assistant/"+url.PathEscape(id), nil, update, &updated)
	return updated, err
}

// DeleteAssistant deletes an assistant and returns the platform's response body.
func (c *Client) DeleteAssistant(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodDelete, "/assistant/"+url.PathEscape(id), nil, nil, &raw)
	return raw, err
}

// ListCalls returns one page of calls. Undecodable items are skipped.
func (c *Client) ListCalls(ctx context.Context, params ListCallsParams) (CallPage, error) {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.AssistantID != "" {
		query.Set("assistantId", params.AssistantID)
	}
	if params.Page != "" {
		query.Set("page", params.Page)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/call", query, nil, &raw); err != nil {
		return CallPage{}, err
	}

	items, envelope, err := splitList(raw)
	if err != nil {
		return CallPage{}, apperr.UpstreamUnavailable(err, "GET /call")
	}

	page := CallPage{NextPage: envelope.NextPage, Total: len(items)}
	if page.NextPage == "" {
		page.NextPage = envelope.NextPageToken
	}
	if envelope.Total != nil {
		page.Total = *envelope.Total
	}
	for _, item := range items {
		var call Call
		if err := json.Unmarshal(item, &call); err != nil || call.ID == "" {
			c.log.WarnContext(ctx, "Skipping invalid call item", "error", errString(err, "missing id"))
			page.Skipped++
			continue
		}
		page.Calls = append(page.Calls, call)
	}
	return page, nil
}

// GetCall fetches one call.
func (c *Client) GetCall(ctx context.Context, id string) (Call, error) {
	var call Call
	err := c.do(ctx, http.MethodGet, "/call/"+url.PathEscape(id), nil, nil, &call)
	return call, err
}

// DeleteCall deletes a call record and returns the platform's response body.
func (c *Client) DeleteCall(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodDelete, "/call/"+url.PathEscape(id), nil, nil, &raw)
	return raw, err
}

// Analytics fetches aggregate metrics for an assistant.
func (c *Client) Analytics(ctx context.Context, assistantID string) (Analytics, error) {
	query := url.Values{}
	query.Set("assistantId", assistantID)

	var analytics Analytics
	err := c.do(ctx, http.MethodGet, "/analytics", query, nil, &analytics)
	return analytics, err
}

// StartPhoneCall starts an outbound call.
func (c *Client) StartPhoneCall(ctx context.Context, req PhoneCallRequest) (Call, error) {
	var call Call
	err := c.do(ctx, http.MethodPost, "/call/phone", nil, req, &call)
	return call, err
}

// Health performs a cheap authenticated request.
func (c *Client) Health(ctx context.Context) error {
	var raw json.RawMessage
	query := url.Values{}
	query.Set("limit", "1")
	return c.do(ctx, http.MethodGet, "/assistant", query, nil, &raw)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	operation := method + " " + path
	if !c.Configured() {
		return apperr.ConfigMissing("VAPI_API_KEY")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parent := ctx

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(parent.Err(), context.Canceled) {
			return apperr.From(parent.Err())
		}
		return apperr.RateLimited(err, operation)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return apperr.Internal(err, "build upstream request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log := c.log.With("operation", operation)
	startedAt := time.Now()
	log.DebugContext(ctx, "upstream request started")

	resp, err := c.http.Do(req)
	if err != nil {
		log.DebugContext(ctx, "upstream request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		if errors.Is(parent.Err(), context.Canceled) {
			return apperr.From(parent.Err())
		}
		if isTimeout(err) {
			return apperr.UpstreamTimeout(err, operation)
		}
		return apperr.UpstreamUnavailable(err, operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.WarnContext(ctx, "upstream request rejected",
			"status", resp.StatusCode,
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"body", strings.TrimSpace(string(detail)),
		)
		return apperr.UpstreamStatus(resp.StatusCode, string(detail), operation)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return apperr.UpstreamTimeout(err, operation)
		}
		return apperr.UpstreamUnavailable(err, operation)
	}
	log.DebugContext(ctx, "upstream request completed", "status", resp.StatusCode, "duration_ms", time.Since(startedAt).Milliseconds())

	if out == nil || len(bytes.TrimSpace(content)) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, out); err != nil {
		return apperr.UpstreamUnavailable(fmt.Errorf("decode response: %w", err), operation)
	}
	return nil
}

// splitList accepts both a bare array and a {data: [...]} envelope.
func splitList(raw json.RawMessage) ([]json.RawMessage, listEnvelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, listEnvelope{}, nil
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, listEnvelope{}, fmt.Errorf("decode list: %w", err)
		}
		return items, listEnvelope{}, nil
	}

	var envelope listEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, listEnvelope{}, fmt.Errorf("decode list envelope: %w", err)
	}
	return envelope.Data, envelope, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func errString(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
