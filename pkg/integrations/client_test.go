package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/wheelbench/pkg/cache"
	"github.com/matzehuels/wheelbench/pkg/httputil"
	"github.com/matzehuels/wheelbench/pkg/observability"
)

// newTestClient points a cache-less client at h.
func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, string) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(nil, "simple", time.Hour, nil).WithHTTPClient(server.Client()), server.URL
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(nil, "simple", time.Hour, nil)
	if _, ok := client.cache.(cache.NullCache); !ok {
		t.Errorf("nil backend should become NullCache, got %T", client.cache)
	}
	if client.http == nil || client.http.Timeout != httpTimeout {
		t.Errorf("http client = %+v", client.http)
	}
	if got := client.keyer.HTTPKey("simple", "attrs"); got != "http:simple:attrs" {
		t.Errorf("default key = %q", got)
	}
	if client.WithKeyer(nil).keyer == nil || client.WithHTTPClient(nil).http == nil {
		t.Error("nil options must keep the defaults")
	}
}

func TestClientHeaders(t *testing.T) {
	var got http.Header
	client, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	client.headers = map[string]string{
		"Accept":     "text/html",
		"User-Agent": "wheelbench/test",
	}

	page, err := client.GetPage(context.Background(), base+"/simple/attrs/", map[string]string{"Accept": "application/vnd.pypi.simple.v1+json"})
	if err != nil {
		t.Fatalf("GetPage() error: %v", err)
	}
	if got.Get("Accept") != "application/vnd.pypi.simple.v1+json" {
		t.Errorf("Accept = %q, request headers must override defaults", got.Get("Accept"))
	}
	if got.Get("User-Agent") != "wheelbench/test" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	var resp map[string]string
	if err := json.Unmarshal(page.Body, &resp); err != nil || resp["status"] != "ok" {
		t.Errorf("body %q: %v", page.Body, err)
	}
}

func TestClientGetPage(t *testing.T) {
	client, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/simple/Attrs/" {
			http.Redirect(w, r, "/simple/attrs/", http.StatusMovedPermanently)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		w.Write([]byte(`{"files":[]}`))
	})

	page, err := client.GetPage(context.Background(), base+"/simple/Attrs/", nil)
	if err != nil {
		t.Fatalf("GetPage() error: %v", err)
	}
	if page.ContentType != "application/vnd.pypi.simple.v1+json" || string(page.Body) != `{"files":[]}` {
		t.Errorf("page = %+v", page)
	}
	// Relative links resolve against the final URL.
	if page.URL != base+"/simple/attrs/" {
		t.Errorf("URL = %q, want the redirect target", page.URL)
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		notFound   bool
		retryable  bool
		after      time.Duration
	}{
		{name: "missing project", status: http.StatusNotFound, notFound: true},
		{name: "index down", status: http.StatusBadGateway, retryable: true},
		{name: "throttled", status: http.StatusTooManyRequests, retryAfter: "7", retryable: true, after: 7 * time.Second},
		{name: "forbidden", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			})
			_, err := client.GetPage(context.Background(), base, nil)
			if StatusCode(err) != tt.status {
				t.Fatalf("StatusCode(%v) = %d, want %d", err, StatusCode(err), tt.status)
			}
			if errors.Is(err, ErrNotFound) != tt.notFound {
				t.Errorf("errors.Is(ErrNotFound) = %v", !tt.notFound)
			}
			var re *httputil.RetryableError
			if errors.As(err, &re) != tt.retryable {
				t.Errorf("retryable = %v", !tt.retryable)
			}
			if re != nil && re.After != tt.after {
				t.Errorf("After = %v, want %v", re.After, tt.after)
			}
		})
	}
}

type recordedRequest struct {
	method, path string
	status       int
}

type recordingHooks struct {
	observability.NoopHTTPHooks
	observability.NoopCacheHooks
	mu       sync.Mutex
	requests []recordedRequest
	hits     int
	misses   int
}

func (h *recordingHooks) OnResponse(_ context.Context, method, _, path string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, recordedRequest{method, path, status})
}

func (h *recordingHooks) OnCacheHit(context.Context, string)  { h.hits++ }
func (h *recordingHooks) OnCacheMiss(context.Context, string) { h.misses++ }

func TestClientReportsTraffic(t *testing.T) {
	hooks := &recordingHooks{}
	defer observability.Install(hooks)()

	c, _ := cache.NewFileCache(t.TempDir())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()
	client := NewClient(c, "simple", time.Hour, nil).WithHTTPClient(server.Client())
	defer client.Close()

	ctx := context.Background()
	for range 2 {
		var body string
		err := client.Cached(ctx, "attrs", false, &body, func() error {
			page, err := client.GetPage(ctx, server.URL+"/simple/attrs/", nil)
			if err != nil {
				return err
			}
			body = string(page.Body)
			return nil
		})
		if err != nil || body != "ok" {
			t.Fatalf("Cached() = %q, %v", body, err)
		}
	}

	if len(hooks.requests) != 1 || hooks.requests[0] != (recordedRequest{http.MethodGet, "/simple/attrs/", 200}) {
		t.Errorf("requests = %+v, want one GET", hooks.requests)
	}
	if hooks.hits != 1 || hooks.misses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 1/1", hooks.hits, hooks.misses)
	}
}

func TestClientHeadAndGetRange(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "file.whl", time.Time{}, bytes.NewReader(data))
	}))
	defer server.Close()

	client := NewClient(nil, "test:", time.Hour, nil).WithHTTPClient(server.Client())
	ctx := context.Background()

	res, err := client.Head(ctx, server.URL)
	if err != nil {
		t.Fatalf("Head() error: %v", err)
	}
	if res.Size != int64(len(data)) || !res.AcceptRanges {
		t.Errorf("Head() = %+v", res)
	}

	chunk, err := client.GetRange(ctx, server.URL, 10, 5)
	if err != nil {
		t.Fatalf("GetRange() error: %v", err)
	}
	if string(chunk) != "abcde" {
		t.Errorf("GetRange() = %q, want %q", chunk, "abcde")
	}
}

func TestClientGetRangeUnsupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("whole body"))
	}))
	defer server.Close()

	client := NewClient(nil, "test:", time.Hour, nil).WithHTTPClient(server.Client())

	_, err := client.GetRange(context.Background(), server.URL, 0, 4)
	if !errors.Is(err, ErrRangeUnsupported) {
		t.Errorf("GetRange() error = %v, want ErrRangeUnsupported", err)
	}
}

func TestClientCached(t *testing.T) {
	c, _ := cache.NewFileCache(t.TempDir())
	defer c.Close()

	client := NewClient(c, "test:", time.Hour, nil)

	type testData struct {
		Value string `json:"value"`
	}
	fetchCount := 0
	fetch := func(dst *testData) func() error {
		return func() error {
			fetchCount++
			*dst = testData{Value: "fetched"}
			return nil
		}
	}

	var first testData
	if err := client.Cached(context.Background(), "key", false, &first, fetch(&first)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	var second testData
	if err := client.Cached(context.Background(), "key", false, &second, fetch(&second)); err != nil {
		t.Fatalf("Cached() error: %v", err)
	}
	if fetchCount != 1 {
		t.Errorf("fetch count = %d, want 1", fetchCount)
	}
	if second.Value != "fetched" {
		t.Errorf("cached value = %q, want fetched", second.Value)
	}
}

func TestClientCachedRefresh(t *testing.T) {
	c, _ := cache.NewFileCache(t.TempDir())
	defer c.Close()

	client := NewClient(c, "test:", time.Hour, nil)

	fetchCount := 0
	var value string
	fetch := func() error {
		fetchCount++
		value = "fetched"
		return nil
	}

	for range 2 {
		if err := client.Cached(context.Background(), "test-key", true, &value, fetch); err != nil {
			t.Fatalf("Cached() error: %v", err)
		}
	}
	if fetchCount != 2 {
		t.Errorf("fetch count = %d, want 2", fetchCount)
	}
}

func TestClientCachedFetchError(t *testing.T) {
	client := NewClient(nil, "test:", time.Hour, nil)

	var value string
	fetchCount := 0
	fetch := func() error {
		fetchCount++
		return ErrNotFound // not retryable
	}

	err := client.Cached(context.Background(), "k", false, &value, fetch)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Cached() error = %v, want ErrNotFound", err)
	}
	if fetchCount != 1 {
		t.Errorf("fetch count = %d, want 1", fetchCount)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "500 Internal Server Error", code: 500, wantErr: true, isRetryErr: true},
		{name: "502 Bad Gateway", code: 502, wantErr: true, isRetryErr: true},
		{name: "503 Service Unavailable", code: 503, wantErr: true, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true, wantType: ErrNetwork},
		{name: "403 Forbidden", code: 403, wantErr: true, wantType: ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code)

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if got := errors.As(err, new(*httputil.RetryableError)); got != tt.isRetryErr {
				t.Errorf("retryable = %v, want %v", got, tt.isRetryErr)
			}
			if StatusCode(err) != tt.code {
				t.Errorf("StatusCode() = %d, want %d", StatusCode(err), tt.code)
			}
		})
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter(""); got != 0 {
		t.Errorf("retryAfter(\"\") = %v", got)
	}
	if got := retryAfter("3"); got != 3*time.Second {
		t.Errorf("retryAfter(3) = %v", got)
	}
	if got := retryAfter("garbage"); got != 0 {
		t.Errorf("retryAfter(garbage) = %v", got)
	}
}
