package cli

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// trafficStats counts index requests and cache lookups during a crawl, so
// the summary shows how much of it was served from cache.
type trafficStats struct {
	requests   atomic.Int64
	failed     atomic.Int64
	httpHits   atomic.Int64
	httpMisses atomic.Int64
	metaHits   atomic.Int64
	metaMisses atomic.Int64
}

func (t *trafficStats) OnRequest(context.Context, string, string, string) { t.requests.Add(1) }

func (t *trafficStats) OnResponse(_ context.Context, _, _, _ string, status int, _ time.Duration) {
	if status >= 400 {
		t.failed.Add(1)
	}
}

func (t *trafficStats) OnError(context.Context, string, string, string, error) { t.failed.Add(1) }

func (t *trafficStats) OnCacheHit(_ context.Context, kind string) {
	if kind == "metadata" {
		t.metaHits.Add(1)
	} else {
		t.httpHits.Add(1)
	}
}

func (t *trafficStats) OnCacheMiss(_ context.Context, kind string) {
	if kind == "metadata" {
		t.metaMisses.Add(1)
	} else {
		t.httpMisses.Add(1)
	}
}

func (t *trafficStats) OnCacheSet(context.Context, string, int) {}

// Summary renders e.g. "42 requests (1 failed) · pages 10/12 cached ·
// metadata 80/95 cached". Parts with nothing to report are left out.
func (t *trafficStats) Summary() string {
	var parts []string
	req := plural(int(t.requests.Load()), "request")
	if n := t.failed.Load(); n > 0 {
		req += fmt.Sprintf(" (%d failed)", n)
	}
	parts = append(parts, req)
	if hits, total := t.httpHits.Load(), t.httpHits.Load()+t.httpMisses.Load(); total > 0 {
		parts = append(parts, fmt.Sprintf("pages %d/%d cached", hits, total))
	}
	if hits, total := t.metaHits.Load(), t.metaHits.Load()+t.metaMisses.Load(); total > 0 {
		parts = append(parts, fmt.Sprintf("metadata %d/%d cached", hits, total))
	}
	return strings.Join(parts, separator)
}
