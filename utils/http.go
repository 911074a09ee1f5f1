package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	HTTPTimeout = 30 * time.Second
	MaxRetries  = 3
	BaseBackoff = 500 * time.Millisecond
)

// APIError carries the HTTP status code from a REST API response.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// NewHTTPClient returns an HTTP client with the default API timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: HTTPTimeout}
}

// DoAPI sends an HTTP request and validates the response status code.
// rawURL must be a fully-formed URL; its query never appears in returned errors.
// header may be nil. Returns the response body on success. For 204 No Content
// the body is nil.
func DoAPI(ctx context.Context, hc *http.Client, method, rawURL string, header http.Header, body []byte, expectedStatus int) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, RedactURL(rawURL), redactURLError(err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, RedactURL(rawURL), redactURLError(err))
	}
	defer resp.Body.Close() //nolint:errcheck
	rb, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != expectedStatus {
		return nil, &APIError{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("%s %s → %d: %s", method, RedactURL(rawURL), resp.StatusCode, bytes.TrimSpace(rb)),
		}
	}
	return rb, nil
}

// redactURLError scrubs the request URL that net/http embeds in transport errors.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = RedactURL(ue.URL)
	}
	return err
}

// DoWithRetry retries fn with exponential backoff for transient errors.
func DoWithRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for i := 0; i <= MaxRetries; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return zero, err
		}
		if i < MaxRetries {
			backoff := BaseBackoff * time.Duration(1<<i)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return zero, lastErr
}

// IsRetryable returns true for transient errors (connection failures, 5xx, 429).
// Context cancellation is never retried.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Code >= 500 || ae.Code == http.StatusTooManyRequests
	}
	var nr interface{ NonRetryable() bool }
	if errors.As(err, &nr) {
		return !nr.NonRetryable()
	}
	// Non-APIError = connection-level failure, always retry.
	return true
}
