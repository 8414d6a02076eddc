package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces outgoing requests per host at a fixed rate so a
// bounded worker pool cannot hammer a tile server into rate-limiting us.
type RateLimiter struct {
	interval   time.Duration
	hostLimits map[string]*hostLimiter
	mu         sync.Mutex
}

type hostLimiter struct {
	requests chan *limitedRequest
	ticker   *time.Ticker
	done     chan struct{}
}

type limitedRequest struct {
	ctx      context.Context
	fn       func() (*httpResult, error)
	resultCh chan *limitedResult
}

type limitedResult struct {
	value *httpResult
	err   error
}

// NewRateLimiter creates a limiter allowing rps requests per second per host.
func NewRateLimiter(rps int) *RateLimiter {
	if rps <= 0 {
		rps = 3
	}
	return &RateLimiter{
		interval:   time.Second / time.Duration(rps),
		hostLimits: make(map[string]*hostLimiter),
	}
}

// Do queues fn on the host's queue and waits for its turn or ctx.
func (rl *RateLimiter) Do(ctx context.Context, host string, fn func() (*httpResult, error)) (*httpResult, error) {
	hl := rl.getOrCreateHostLimiter(host)

	req := &limitedRequest{
		ctx:      ctx,
		fn:       fn,
		resultCh: make(chan *limitedResult, 1),
	}

	select {
	case hl.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-req.resultCh:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (rl *RateLimiter) getOrCreateHostLimiter(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if hl, exists := rl.hostLimits[host]; exists {
		return hl
	}

	hl := &hostLimiter{
		requests: make(chan *limitedRequest, 100),
		ticker:   time.NewTicker(rl.interval),
		done:     make(chan struct{}),
	}
	rl.hostLimits[host] = hl
	go rl.worker(hl)
	return hl
}

// worker drains one queued request per tick for its host.
func (rl *RateLimiter) worker(hl *hostLimiter) {
	for {
		select {
		case <-hl.ticker.C:
			select {
			case req := <-hl.requests:
				if req.ctx.Err() != nil {
					req.resultCh <- &limitedResult{err: req.ctx.Err()}
					continue
				}
				value, err := req.fn()
				req.resultCh <- &limitedResult{value: value, err: err}
			default:
			}

		case <-hl.done:
			hl.ticker.Stop()
			return
		}
	}
}

// Close stops all per-host workers.
func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for _, hl := range rl.hostLimits {
		close(hl.done)
	}
	rl.hostLimits = make(map[string]*hostLimiter)
}
