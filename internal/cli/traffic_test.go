package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matzehuels/wheelbench/pkg/observability"
)

func TestTrafficStats(t *testing.T) {
	stats := &trafficStats{}
	restore := observability.Install(stats)
	defer restore()

	ctx := context.Background()
	observability.Cache().OnCacheMiss(ctx, "http")
	observability.Cache().OnCacheHit(ctx, "http")
	observability.Cache().OnCacheMiss(ctx, "metadata")
	for _, status := range []int{200, 404} {
		observability.HTTP().OnRequest(ctx, "GET", "pypi.org", "/simple/a/")
		observability.HTTP().OnResponse(ctx, "GET", "pypi.org", "/simple/a/", status, time.Millisecond)
	}
	observability.HTTP().OnRequest(ctx, "GET", "pypi.org", "/simple/b/")
	observability.HTTP().OnError(ctx, "GET", "pypi.org", "/simple/b/", errors.New("timeout"))

	want := "3 requests (2 failed) · pages 1/2 cached · metadata 0/1 cached"
	if got := stats.Summary(); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}

	if got := (&trafficStats{}).Summary(); got != "0 requests" {
		t.Errorf("empty Summary() = %q", got)
	}
}
