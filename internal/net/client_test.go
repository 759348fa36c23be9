package net

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock records sleeps instead of waiting.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time        { return f.now }
func (f *fakeClock) Sleep(d time.Duration) { f.sleeps = append(f.sleeps, d); f.now = f.now.Add(d) }

func newTestClient(clock *fakeClock) *Client {
	c := New(5*time.Second, 3, 100*time.Millisecond, 2*time.Second)
	c.Clock = clock
	return c
}

// TestRateLimitWaitDoesNotConsumeRetries checks that a 429 with Retry-After
// sleeps the advertised seconds and reissues the identical request.
func TestRateLimitWaitDoesNotConsumeRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	c := newTestClient(clock)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("expected success after rate-limit wait, got: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("expected reissued request body 'ok', got %q", body)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected exactly 2 requests, got %d", got)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 5*time.Second {
		t.Fatalf("expected one 5s sleep, got %v", clock.sleeps)
	}
}

// TestRateLimitDefaultWait checks the configured default is used when the
// server omits Retry-After.
func TestRateLimitDefaultWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	c := newTestClient(clock)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(clock.sleeps) != 1 || clock.sleeps[0] != 2*time.Second {
		t.Fatalf("expected one default 2s sleep, got %v", clock.sleeps)
	}
}

// TestNetworkRetryExhaustion checks linear backoff and the wrapped final error.
func TestNetworkRetryExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	clock := &fakeClock{now: time.Now()}
	c := newTestClient(clock)

	_, err := c.Get(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error after retry exhaustion, got nil")
	}

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", netErr.Attempts)
	}

	// base*1, base*2 between the three attempts
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), clock.sleeps)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], clock.sleeps[i])
		}
	}
}

// TestErrorStatusPassesThrough checks non-429 HTTP errors are not retried.
func TestErrorStatusPassesThrough(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Now()}
	c := newTestClient(clock)

	resp, err := c.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 passed through, got %d", resp.StatusCode)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected single request, got %d", calls.Load())
	}
}
