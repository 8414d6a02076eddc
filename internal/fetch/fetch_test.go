package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/tilecache"
)

func testClient(t *testing.T, store *tilecache.Store, maxAttempts int) *Client {
	t.Helper()
	return NewClient(Options{
		RetryDelay:  time.Millisecond,
		MaxAttempts: maxAttempts,
		UserAgent:   "wplace-dl-test/1.0",
		Store:       store,
	})
}

func TestFetchCachedIdempotent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("tile bytes"))
	}))
	defer srv.Close()

	c := testClient(t, tilecache.New(t.TempDir()), 3)
	ctx := context.Background()

	first, err := c.FetchCached(ctx, srv.URL, "osm", 11, 5, 7, time.Second)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := c.FetchCached(ctx, srv.URL, "osm", 11, 5, 7, time.Second)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("server hit %d times, want exactly 1", got)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("cached bytes differ: %q vs %q", first, second)
	}
}

func TestFetchRetriesThroughRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := testClient(t, nil, 5)
	data, err := c.FetchUncached(context.Background(), srv.URL, time.Second)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "ok" {
		t.Fatalf("got %q, want %q", data, "ok")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("server hit %d times, want 3", got)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, nil, 3)
	_, err := c.FetchUncached(context.Background(), srv.URL, time.Second)
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("got %v, want ErrRetriesExhausted", err)
	}
}

func TestFetchNoTileIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(t, nil, 10)
	_, err := c.FetchUncached(context.Background(), srv.URL, time.Second)
	if !errors.Is(err, ErrNoTile) {
		t.Fatalf("got %v, want ErrNoTile", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("server hit %d times, want exactly 1", got)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(t, nil, 0)
	_, err := c.FetchUncached(ctx, srv.URL, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	rl := NewRateLimiter(50)
	defer rl.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := rl.Do(context.Background(), "example.test", func() (*httpResult, error) {
			return &httpResult{status: 200}, nil
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	// 50 rps -> 20ms spacing; three calls need at least two ticks.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("3 calls finished in %v, want >= 40ms of spacing", elapsed)
	}
}
