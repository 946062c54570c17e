package httputil

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit configures a token bucket: at most Requests per Window, with
// bursts of up to Requests.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether the limit restricts anything.
func (r RateLimit) Enabled() bool { return r.Requests > 0 && r.Window > 0 }

// HostLimiter rate-limits requests per host. The index and the file host
// (e.g. pypi.org and files.pythonhosted.org) get independent buckets.
//
// A nil *HostLimiter never blocks.
type HostLimiter struct {
	cfg RateLimit

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter for cfg, or nil when cfg is disabled.
func NewHostLimiter(cfg RateLimit) *HostLimiter {
	if !cfg.Enabled() {
		return nil
	}
	return &HostLimiter{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || host == "" {
		return nil
	}
	return h.limiter(strings.ToLower(host)).Wait(ctx)
}

func (h *HostLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[host]; ok {
		return l
	}
	interval := h.cfg.Window / time.Duration(h.cfg.Requests)
	if interval <= 0 {
		interval = time.Millisecond
	}
	l := rate.NewLimiter(rate.Every(interval), h.cfg.Requests)
	h.limiters[host] = l
	return l
}
