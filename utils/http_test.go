package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// --- APIError ---

func TestAPIError_Error(t *testing.T) {
	ae := &APIError{Code: 500, Message: "internal"}
	if ae.Error() != "internal" {
		t.Errorf("expected %q, got %q", "internal", ae.Error())
	}
}

// --- DoAPI ---

func TestDoAPI_Success_GET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	body, err := DoAPI(context.Background(), srv.Client(), http.MethodGet, srv.URL+"/test", nil, nil, http.StatusOK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDoAPI_POST_WithBody_SetsContentTypeAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer k" {
			t.Errorf("expected Authorization header, got %q", auth)
		}
		reqBody, _ := io.ReadAll(r.Body)
		if string(reqBody) != `{"key":"val"}` {
			t.Errorf("unexpected request body: %s", reqBody)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Authorization", "Bearer k")
	_, err := DoAPI(context.Background(), srv.Client(), http.MethodPost, srv.URL+"/graphql", h, []byte(`{"key":"val"}`), http.StatusOK)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoAPI_GET_NoContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "" {
			t.Errorf("expected no Content-Type for GET without body, got %q", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if _, err := DoAPI(context.Background(), srv.Client(), http.MethodGet, srv.URL+"/test", nil, nil, http.StatusOK); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDoAPI_StatusMismatch_ReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := DoAPI(context.Background(), srv.Client(), http.MethodGet, srv.URL+"/test?api_key=secret", nil, nil, http.StatusOK)
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if ae.Code != http.StatusInternalServerError {
		t.Errorf("expected code 500, got %d", ae.Code)
	}
	if !strings.Contains(ae.Message, "boom") {
		t.Errorf("expected message to contain 'boom', got %q", ae.Message)
	}
	if strings.Contains(ae.Message, "secret") {
		t.Errorf("API key leaked into error message: %q", ae.Message)
	}
}

func TestDoAPI_ConnectionError(t *testing.T) {
	hc := &http.Client{Timeout: 100 * time.Millisecond}
	_, err := DoAPI(context.Background(), hc, http.MethodGet, "http://127.0.0.1:1/nope", nil, nil, http.StatusOK)
	if err == nil {
		t.Fatal("expected connection error")
	}
	var ae *APIError
	if errors.As(err, &ae) {
		t.Errorf("expected non-APIError, got APIError{%d}", ae.Code)
	}
}

func TestDoAPI_InvalidURL(t *testing.T) {
	_, err := DoAPI(context.Background(), http.DefaultClient, http.MethodGet, "://bad", nil, nil, http.StatusOK)
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestDoAPI_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second) // slow server
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := DoAPI(ctx, srv.Client(), http.MethodGet, srv.URL+"/slow", nil, nil, http.StatusOK); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

// --- DoWithRetry ---

func TestDoWithRetry_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	result, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected %q, got %q", "ok", result)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoWithRetry_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := DoWithRetry(context.Background(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, fmt.Errorf("transient error") // non-APIError → retryable
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDoWithRetry_NonRetryableError_StopsImmediately(t *testing.T) {
	calls := 0
	_, err := DoWithRetry(context.Background(), func() (string, error) {
		calls++
		return "", &APIError{Code: 404, Message: "not found"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (non-retryable), got %d", calls)
	}
	var ae *APIError
	if !errors.As(err, &ae) || ae.Code != 404 {
		t.Errorf("expected APIError{404}, got %v", err)
	}
}

func TestDoWithRetry_ContextCanceled_DuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := DoWithRetry(ctx, func() (string, error) {
		return "", fmt.Errorf("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- IsRetryable ---

type permanentErr struct{}

func (permanentErr) Error() string      { return "permanent" }
func (permanentErr) NonRetryable() bool { return true }

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"4xx", &APIError{Code: 400}, false},
		{"401", &APIError{Code: 401}, false},
		{"404 wrapped", fmt.Errorf("outer: %w", &APIError{Code: 404}), false},
		{"500", &APIError{Code: 500}, true},
		{"503", &APIError{Code: 503}, true},
		{"429", &APIError{Code: 429}, true},
		{"connection", fmt.Errorf("connection refused"), true},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), false},
		{"non-retryable marker", fmt.Errorf("x: %w", permanentErr{}), false},
	}
	for _, c := range cases {
		if got := IsRetryable(c.err); got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

// --- AtomicWriteFile ---

func TestAtomicWriteFile_CreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "proxy.conf")
	if err := AtomicWriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected %q, got %q", "two", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("https://api.example.com/graphql?api_key=abc")
	if strings.Contains(got, "abc") {
		t.Errorf("expected key to be redacted, got %q", got)
	}
	if got := RedactURL("https://api.example.com/graphql"); got != "https://api.example.com/graphql" {
		t.Errorf("unexpected rewrite: %q", got)
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestDoAPI_TransportErrorRedactsQuery(t *testing.T) {
	target := "http://" + closedAddr(t) + "/graphql?api_key=SECRET-KEY-123"
	_, err := DoAPI(context.Background(), NewHTTPClient(), http.MethodPost, target, nil, []byte(`{}`), http.StatusOK)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "SECRET-KEY-123") {
		t.Errorf("api key leaked into error: %v", err)
	}
	if !IsRetryable(err) {
		t.Errorf("connection failure should stay retryable: %v", err)
	}
}
