package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/tilecache"
)

// ErrNoTile marks a cell the server has no content for (HTTP 404/204).
// Unlike transient failures it is never retried: a permanently-absent
// overlay tile is a normal outcome, not a server hiccup.
var ErrNoTile = errors.New("no tile content")

// ErrRetriesExhausted marks a fetch that stayed transiently broken for the
// configured number of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Options configures a Client.
type Options struct {
	// RetryDelay is the fixed wait between attempts. Defaults to 5s.
	RetryDelay time.Duration
	// MaxAttempts caps the retry loop. 0 retries forever.
	MaxAttempts int
	UserAgent   string
	// Limiter, when set, spaces requests per host.
	Limiter *RateLimiter
	// Store backs FetchCached. Required for cached fetches.
	Store *tilecache.Store
}

// Client is a retrying HTTP tile fetcher. Cached fetches go through the
// tile store; uncached fetches always hit the network.
type Client struct {
	http *http.Client
	opts Options
}

type httpResult struct {
	status int
	body   []byte
}

// NewClient returns a Client with a transport tuned for many small tile
// requests against a handful of hosts.
func NewClient(opts Options) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   32,
				MaxConnsPerHost:       32,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		opts: opts,
	}
}

// FetchCached returns the tile bytes for (source, zoom, x, y), serving from
// the store when present and downloading otherwise. Downloaded bytes are
// persisted before they are returned.
func (c *Client) FetchCached(ctx context.Context, rawURL, source string, zoom, x, y int, timeout time.Duration) ([]byte, error) {
	if c.opts.Store == nil {
		return nil, errors.New("fetch: no tile store configured")
	}
	if data, ok := c.opts.Store.Get(source, zoom, x, y); ok {
		log.Printf("cache hit: %s", c.opts.Store.Path(source, zoom, x, y))
		return data, nil
	}

	data, err := c.fetch(ctx, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	if err := c.opts.Store.Put(source, zoom, x, y, data); err != nil {
		return nil, fmt.Errorf("cache write for %s: %w", rawURL, err)
	}
	log.Printf("downloaded: %s -> %s", rawURL, c.opts.Store.Path(source, zoom, x, y))
	return data, nil
}

// FetchUncached downloads tile bytes with the same retry semantics as
// FetchCached but no disk persistence and no pre-check.
func (c *Client) FetchUncached(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	data, err := c.fetch(ctx, rawURL, timeout)
	if err != nil {
		return nil, err
	}
	log.Printf("downloaded: %s", rawURL)
	return data, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		res, err := c.get(ctx, rawURL, timeout)
		switch {
		case err == nil && res.status == http.StatusOK:
			return res.body, nil
		case err == nil && (res.status == http.StatusNotFound || res.status == http.StatusNoContent):
			return nil, fmt.Errorf("%s: %w", rawURL, ErrNoTile)
		case err == nil && res.status == http.StatusTooManyRequests:
			log.Printf("http 429 for %s. waiting %v.", rawURL, c.opts.RetryDelay)
		case err == nil:
			log.Printf("http %d for %s, retrying in %v...", res.status, rawURL, c.opts.RetryDelay)
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("error fetching %s: %v, retrying in %v...", rawURL, err, c.opts.RetryDelay)
		}

		if c.opts.MaxAttempts > 0 && attempt >= c.opts.MaxAttempts {
			return nil, fmt.Errorf("%s failed after %d attempts: %w", rawURL, attempt, ErrRetriesExhausted)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.RetryDelay):
		}
	}
}

func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) (*httpResult, error) {
	do := func() (*httpResult, error) {
		reqCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP GET failed for %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &httpResult{status: resp.StatusCode, body: body}, nil
	}

	if c.opts.Limiter != nil {
		return c.opts.Limiter.Do(ctx, hostOf(rawURL), do)
	}
	return do()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
