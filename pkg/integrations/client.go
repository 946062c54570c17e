package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/matzehuels/wheelbench/pkg/cache"
	"github.com/matzehuels/wheelbench/pkg/httputil"
	"github.com/matzehuels/wheelbench/pkg/observability"
)

// Client provides shared HTTP functionality for index clients.
// It handles response caching, per-host rate limiting, retry logic and
// common request headers.
type Client struct {
	http      *http.Client
	cache     cache.Cache
	keyer     cache.Keyer
	namespace string
	ttl       time.Duration
	headers   map[string]string
	limiter   *httputil.HostLimiter
}

// NewClient creates a Client with the given cache backend and default headers.
// Cached entries are stored under namespace and expire after ttl (zero keeps
// them forever). Pass nil for headers if no default headers are needed.
func NewClient(backend cache.Cache, namespace string, ttl time.Duration, headers map[string]string) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	return &Client{
		http:      NewHTTPClient(),
		cache:     backend,
		keyer:     cache.NewDefaultKeyer(),
		namespace: namespace,
		ttl:       ttl,
		headers:   headers,
	}
}

// WithKeyer replaces the cache keyer, e.g. with a per-index scoped keyer.
func (c *Client) WithKeyer(k cache.Keyer) *Client {
	if k != nil {
		c.keyer = k
	}
	return c
}

// WithLimiter rate-limits every request through l. A nil limiter disables
// limiting.
func (c *Client) WithLimiter(l *httputil.HostLimiter) *Client {
	c.limiter = l
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

// Close releases the cache backend.
func (c *Client) Close() error {
	return c.cache.Close()
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache
// as JSON.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	hooks := observability.Cache()
	fullKey := c.keyer.HTTPKey(c.namespace, key)
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, fullKey); ok {
			if json.Unmarshal(data, v) == nil {
				hooks.OnCacheHit(ctx, "http")
				return nil
			}
		}
		hooks.OnCacheMiss(ctx, "http")
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, fullKey, data, c.ttl) == nil {
			hooks.OnCacheSet(ctx, "http", len(data))
		}
	}
	return nil
}

// Page is a fetched document together with the headers needed to interpret it.
type Page struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// GetPage performs an HTTP GET and returns the whole body with its content
// type. URL is the final URL after redirects, for resolving relative links.
func (c *Client) GetPage(ctx context.Context, url string, headers map[string]string) (*Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	return &Page{URL: resp.Request.URL.String(), ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// Resource describes a remote file as reported by a HEAD request.
type Resource struct {
	Size         int64
	AcceptRanges bool
}

// Head performs an HTTP HEAD request and reports the size of the resource
// and whether the server accepts byte range requests.
func (c *Client) Head(ctx context.Context, url string) (*Resource, error) {
	resp, err := c.doRequest(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	return &Resource{
		Size:         resp.ContentLength,
		AcceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
	}, nil
}

// GetRange fetches bytes [offset, offset+length) of url with a Range
// request. A server that ignores the Range header yields ErrRangeUnsupported.
func (c *Client) GetRange(ctx context.Context, url string, offset, length int64) ([]byte, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	resp, err := c.doRequest(ctx, http.MethodGet, url, map[string]string{"Range": rangeHeader})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil, ErrRangeUnsupported
	}
	if resp.StatusCode != http.StatusPartialContent {
		return nil, statusError(resp)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return nil, fmt.Errorf("%w: short range response: %v", ErrNetwork, err)
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, method, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, err
	}

	hooks := observability.HTTP()
	host, path := requestTarget(req.URL)
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

func requestTarget(u *url.URL) (host, path string) {
	return u.Host, u.Path
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return statusError(resp)
}

// statusError classifies a non-200 response. 429 honours Retry-After.
func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &httputil.RetryableError{
			Err:   &StatusError{Code: resp.StatusCode, Status: resp.Status},
			After: retryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return checkStatus(resp.StatusCode)
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, &StatusError{Code: code, Status: http.StatusText(code)})
	case code >= 500:
		return &httputil.RetryableError{Err: &StatusError{Code: code, Status: http.StatusText(code)}}
	default:
		return &StatusError{Code: code, Status: http.StatusText(code)}
	}
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}
