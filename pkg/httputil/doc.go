// Package httputil provides HTTP plumbing shared by the index clients.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff, but only for errors
// wrapped in [RetryableError]. Clients wrap transient failures:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses (honouring Retry-After)
//
// Anything else fails immediately:
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return fetch(ctx, url)
//	})
//
// # Rate limiting
//
// [HostLimiter] keeps one token bucket per host, so listing pages and
// wheel range requests are throttled independently:
//
//	limiter := httputil.NewHostLimiter(httputil.RateLimit{Requests: 10, Window: time.Second})
//	if err := limiter.Wait(ctx, req.URL.Host); err != nil {
//	    return err
//	}
//
// Response caching lives in package cache; see [cache.Cache].
//
// [cache.Cache]: github.com/matzehuels/wheelbench/pkg/cache.Cache
package httputil
