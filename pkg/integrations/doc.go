// Package integrations provides the HTTP plumbing shared by package index
// clients.
//
// # Overview
//
// The [Client] type wraps an [http.Client] with:
//   - Response caching through a [cache.Cache] backend (file, Redis or none)
//   - Retries with exponential backoff for network errors, 5xx and 429
//   - Per-host rate limiting via [httputil.HostLimiter]
//   - Default request headers
//
// Index-specific clients embed it. The only one is [pypi], which speaks the
// PEP 503/691 Simple Repository API:
//
//	client, err := pypi.NewClient(pypi.Options{IndexURL: "https://pypi.org/simple/"})
//	defer client.Close()
//	groups, err := client.FetchAllDistsByVersion(ctx, "requests", false)
//
// Besides whole-document fetches, [Client.Head] and [Client.GetRange] support
// reading parts of large remote files, used to pull METADATA out of a wheel
// without downloading it.
//
// [pypi]: github.com/matzehuels/wheelbench/pkg/integrations/pypi
// [cache.Cache]: github.com/matzehuels/wheelbench/pkg/cache.Cache
// [httputil.HostLimiter]: github.com/matzehuels/wheelbench/pkg/httputil.HostLimiter
package integrations
