// Package pkg provides the libraries behind wheelbench, a tool that
// snapshots the dependency closure of Python requirements and replays it
// as a synthetic package index for benchmarking resolvers.
//
// # Overview
//
// A wheelbench run has two halves. The crawl half talks to a real package
// index and records every version, extra and dependency edge reachable from
// a set of requirements into a scenario document. The generate half turns a
// scenario back into a directory of tiny wheels plus PEP 503 listings, so a
// resolver sees the same graph without touching the network.
//
//	Requirements + target interpreter
//	         ↓
//	    [pyenv] (marker environment, wheel tags)
//	         ↓
//	    [deps] crawler ←→ [integrations/pypi] ←→ [cache]
//	         ↓
//	    [scenario] document (file or MongoDB store)
//	         ↓
//	    [wheelhouse] generator
//	         ↓
//	    [serve] or file:// index → [bench] pip --dry-run timings
//
// # Main Packages
//
// [packaging] implements the standards the rest builds on: names, versions,
// requirements, markers and wheel tags.
//
// [metadata] parses core metadata files, both from wheels and from sdists
// built through the pip report of a real interpreter.
//
// [deps] walks the closure breadth first. It is index agnostic; the
// [integrations/pypi] client provides the Simple Repository API behind it.
//
// [scenario] defines the document, its validation and the stores it is
// saved to, and exports the package graph as DOT or SVG.
//
// [wheelhouse] writes wheels and listings; [serve] exposes them over HTTP.
//
// [bench] times pip against a generated wheelhouse.
//
// # Infrastructure
//
// [cache] holds raw index responses (file, Redis or none). [httputil]
// provides retries and per-host rate limits. [observability] carries the
// progress hooks the CLI renders. [errors] defines the error codes that map
// to exit statuses.
//
// # Testing
//
//	go test ./...                        # unit tests
//	go test -tags integration ./pkg/...  # tests needing Redis, MongoDB or python3
//
// [packaging]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/packaging
// [metadata]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/metadata
// [pyenv]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/pyenv
// [deps]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/deps
// [integrations/pypi]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/integrations/pypi
// [scenario]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/scenario
// [wheelhouse]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/wheelhouse
// [serve]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/serve
// [bench]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/bench
// [cache]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/cache
// [httputil]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/wheelbench/pkg/errors
package pkg
