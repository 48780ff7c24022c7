package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPBase is the shared HTTP layer every LLM client embeds (C2). It owns the
// http.Client, endpoint, optional bearer token, and the retry/stats machinery
// described in §4.1. Every provider composes HTTPBase rather than inheriting
// from it — the teacher's own clients follow the same composition shape.
type HTTPBase struct {
	Client   *http.Client
	Endpoint string
	APIKey   string

	// Retry tuning. Zero values fall back to the §4.1 defaults.
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffFactor   float64
	RequestTimeout  time.Duration

	stats ClientStats
}

// NewHTTPBase constructs an HTTPBase with the §4.1 defaults: 60s per-request
// timeout, 3 max attempts, 500ms initial backoff, 30s cap, 2.0 multiplier.
func NewHTTPBase(endpoint, apiKey string) *HTTPBase {
	return &HTTPBase{
		Client:         &http.Client{Timeout: 60 * time.Second},
		Endpoint:       endpoint,
		APIKey:         apiKey,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		RequestTimeout: 60 * time.Second,
	}
}

// Stats returns a snapshot of the call/success/error/retry counters.
func (h *HTTPBase) Stats() ClientStats {
	return ClientStats{
		Total:   atomic.LoadUint64(&h.stats.Total),
		Success: atomic.LoadUint64(&h.stats.Success),
		Errors:  atomic.LoadUint64(&h.stats.Errors),
		Retries: atomic.LoadUint64(&h.stats.Retries),
	}
}

// PostJSON sends payload as a JSON POST to url, with Content-Type set and any
// extraHeaders attached, returning the raw response body.
func (h *HTTPBase) PostJSON(ctx context.Context, url string, payload any, extraHeaders map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewParseError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewNetworkError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewTimeoutError(err)
		}
		return nil, NewNetworkError(err)
	}
	defer resp.Body.Close()

	return h.handleResponse(resp)
}

// handleResponse decodes a response: a non-2xx status becomes an *Error
// carrying the status code and body; otherwise the raw body is returned.
func (h *HTTPBase) handleResponse(resp *http.Response) ([]byte, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewHTTPError(resp.StatusCode, string(raw))
	}
	return raw, nil
}

// WithRetry calls op, retrying on a retryable *Error with exponential backoff
// plus jitter, up to MaxAttempts total attempts. The retry counter is only
// incremented if at least one retry actually occurred.
func (h *HTTPBase) WithRetry(ctx context.Context, op func() ([]byte, error)) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.InitialBackoff
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = 500 * time.Millisecond
	}
	bo.MaxInterval = h.MaxBackoff
	if bo.MaxInterval <= 0 {
		bo.MaxInterval = 30 * time.Second
	}
	bo.Multiplier = h.BackoffFactor
	if bo.Multiplier <= 0 {
		bo.Multiplier = 2.0
	}
	bo.MaxElapsedTime = 0 // bounded by attempt count below, not elapsed time

	maxAttempts := h.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	bounded := backoff.WithMaxRetries(bo, uint64(maxAttempts-1))
	bounded = backoff.WithContext(bounded, ctx)

	var result []byte
	attempted := 0
	err := backoff.Retry(func() error {
		attempted++
		r, err := op()
		if err == nil {
			result = r
			return nil
		}
		var llmErr *Error
		if errors.As(err, &llmErr) && llmErr.Retryable() {
			return err
		}
		return backoff.Permanent(err)
	}, bounded)

	if attempted > 1 {
		atomic.AddUint64(&h.stats.Retries, 1)
	}

	if err != nil {
		var permErr *backoff.PermanentError
		if errors.As(err, &permErr) {
			return nil, permErr.Err
		}
		return nil, err
	}
	return result, nil
}

// RecordOperation increments the total counter, then success or error.
func (h *HTTPBase) RecordOperation(err error) {
	atomic.AddUint64(&h.stats.Total, 1)
	if err != nil {
		atomic.AddUint64(&h.stats.Errors, 1)
		return
	}
	atomic.AddUint64(&h.stats.Success, 1)
}

// WithRetryAndStats composes WithRetry and RecordOperation.
func (h *HTTPBase) WithRetryAndStats(ctx context.Context, op func() ([]byte, error)) ([]byte, error) {
	result, err := h.WithRetry(ctx, op)
	h.RecordOperation(err)
	return result, err
}

// Diagnose performs a cheap reachability probe against the configured endpoint.
func (h *HTTPBase) Diagnose(ctx context.Context, provider, model, probePath string) Diagnosis {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.Endpoint+probePath, nil)
	if err != nil {
		return Diagnosis{Provider: provider, Model: model, Reachable: false, Detail: err.Error()}
	}
	if h.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.APIKey)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return Diagnosis{Provider: provider, Model: model, Reachable: false, Detail: err.Error()}
	}
	defer resp.Body.Close()
	return Diagnosis{
		Provider:  provider,
		Model:     model,
		Reachable: resp.StatusCode < 500,
		Detail:    fmt.Sprintf("HTTP %d", resp.StatusCode),
	}
}
