// Package observability carries progress and traffic events out of the
// library packages.
//
// Libraries emit events through the registered hooks and never import a UI
// or metrics backend. The CLI installs implementations (the live progress
// view, debug logging, request counters) for the duration of a command:
//
//	restore := observability.Install(view)
//	defer restore()
//
// A value passed to Install may implement any subset of [CrawlHooks],
// [GenerateHooks], [CacheHooks] and [HTTPHooks]; the others stay as they
// were. Unregistered hooks are no-ops.
package observability

import (
	"context"
	"sync"
	"time"
)

// CrawlHooks receives events from the dependency-closure crawl.
type CrawlHooks interface {
	// OnPackageStart is called when a queue entry is dequeued. done is the
	// number of entries already processed, total is done plus the queue length.
	OnPackageStart(ctx context.Context, name string, done, total int)

	// OnFilesListed reports how many files the index lists for name.
	OnFilesListed(ctx context.Context, name string, files int)

	// OnVersionsGrouped reports how many candidate versions were found.
	OnVersionsGrouped(ctx context.Context, name string, versions int)

	// OnMetadataFetched is called once per candidate version. ok is false
	// when the version was dropped.
	OnMetadataFetched(ctx context.Context, name, version string, ok bool)

	OnPackageFinished(ctx context.Context, name string, versions int, duration time.Duration)
}

// GenerateHooks receives events from wheelhouse generation. Calls may come
// from several goroutines at once.
type GenerateHooks interface {
	OnGenerateStart(ctx context.Context, distributions int)
	OnWheelWritten(ctx context.Context, name, version string)
	OnGenerateComplete(ctx context.Context, duration time.Duration, err error)
}

// CacheHooks receives cache lookups. kind is "http" for index responses
// and "metadata" for extracted core metadata.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, kind string)
	OnCacheMiss(ctx context.Context, kind string)
	OnCacheSet(ctx context.Context, kind string, size int)
}

// HTTPHooks receives every request sent to an index, including range
// requests for wheel metadata.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, status int, duration time.Duration)
	// OnError reports transport failures such as timeouts and refused
	// connections. Non-2xx statuses go to OnResponse.
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopCrawlHooks ignores all crawl events. Embed it to implement only some.
type NoopCrawlHooks struct{}

func (NoopCrawlHooks) OnPackageStart(context.Context, string, int, int)              {}
func (NoopCrawlHooks) OnFilesListed(context.Context, string, int)                    {}
func (NoopCrawlHooks) OnVersionsGrouped(context.Context, string, int)                {}
func (NoopCrawlHooks) OnMetadataFetched(context.Context, string, string, bool)       {}
func (NoopCrawlHooks) OnPackageFinished(context.Context, string, int, time.Duration) {}

type NoopGenerateHooks struct{}

func (NoopGenerateHooks) OnGenerateStart(context.Context, int)                     {}
func (NoopGenerateHooks) OnWheelWritten(context.Context, string, string)           {}
func (NoopGenerateHooks) OnGenerateComplete(context.Context, time.Duration, error) {}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// hookSet is the registered implementation of every hook kind.
type hookSet struct {
	crawl    CrawlHooks
	generate GenerateHooks
	cache    CacheHooks
	http     HTTPHooks
}

func noopSet() hookSet {
	return hookSet{NoopCrawlHooks{}, NoopGenerateHooks{}, NoopCacheHooks{}, NoopHTTPHooks{}}
}

var (
	mu      sync.RWMutex
	current = noopSet()
)

// Install registers h for every hook interface it implements and returns a
// function that restores the previous registration.
func Install(h any) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if v, ok := h.(CrawlHooks); ok {
		current.crawl = v
	}
	if v, ok := h.(GenerateHooks); ok {
		current.generate = v
	}
	if v, ok := h.(CacheHooks); ok {
		current.cache = v
	}
	if v, ok := h.(HTTPHooks); ok {
		current.http = v
	}
	return func() {
		mu.Lock()
		defer mu.Unlock()
		current = prev
	}
}

// SetCrawlHooks registers crawl hooks. A nil h is ignored.
func SetCrawlHooks(h CrawlHooks) {
	set(h != nil, func(s *hookSet) { s.crawl = h })
}

// SetGenerateHooks registers generation hooks. A nil h is ignored.
func SetGenerateHooks(h GenerateHooks) {
	set(h != nil, func(s *hookSet) { s.generate = h })
}

func SetCacheHooks(h CacheHooks) {
	set(h != nil, func(s *hookSet) { s.cache = h })
}

func SetHTTPHooks(h HTTPHooks) {
	set(h != nil, func(s *hookSet) { s.http = h })
}

func set(ok bool, apply func(*hookSet)) {
	if !ok {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	apply(&current)
}

func Crawl() CrawlHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.crawl
}

func Generate() GenerateHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.generate
}

func Cache() CacheHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.cache
}

func HTTP() HTTPHooks {
	mu.RLock()
	defer mu.RUnlock()
	return current.http
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = noopSet()
}
