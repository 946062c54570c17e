package deps

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// ErrTooManyPackages is returned when a crawl exceeds Options.MaxPackages.
var ErrTooManyPackages = errors.New("crawl exceeds package limit")

// Crawler walks the dependency closure of a set of root requirements.
// A Crawler is not safe for concurrent use; run one crawl at a time.
type Crawler struct {
	index Index
	opts  Options
}

// NewCrawler creates a crawler that reads from index.
func NewCrawler(index Index, opts Options) *Crawler {
	return &Crawler{index: index, opts: opts.WithDefaults()}
}

type entry struct {
	name   string
	extras []string // sorted
}

// crawlState holds the state of one run. The queue and the seen sets belong to
// it alone.
type crawlState struct {
	queue []entry
	seen  map[string]map[string]bool
}

// add enqueues the extras of req not claimed yet, always including "".
func (c *crawlState) add(req *packaging.Requirement) {
	name := req.CanonicalName()
	extras := map[string]bool{"": true}
	for _, e := range req.Extras {
		extras[packaging.CanonicalizeName(e)] = true
	}

	claimed := c.seen[name]
	if claimed == nil {
		claimed = make(map[string]bool)
		c.seen[name] = claimed
	}
	var unseen []string
	for _, e := range slices.Sorted(maps.Keys(extras)) {
		if !claimed[e] {
			claimed[e] = true
			unseen = append(unseen, e)
		}
	}
	if len(unseen) > 0 {
		c.queue = append(c.queue, entry{name: name, extras: unseen})
	}
}

// Crawl builds a scenario for input. The requirements in input are parsed
// first and any invalid one aborts the crawl. Every package reachable from
// them, through unconditional dependencies and the extras actually
// requested, is fetched exactly once.
//
// Index failures for a single package are logged and leave that package
// without versions. Only cancellation of ctx stops the crawl early.
func (c *Crawler) Crawl(ctx context.Context, input scenario.ScenarioInput) (*scenario.Scenario, error) {
	roots := make([]*packaging.Requirement, 0, len(input.Requirements))
	for _, r := range input.Requirements {
		req, err := packaging.ParseRequirement(r)
		if err != nil {
			return nil, err
		}
		roots = append(roots, req)
	}

	s := scenario.New(input)
	st := &crawlState{seen: make(map[string]map[string]bool)}
	for _, req := range roots {
		st.add(req)
	}

	logger := c.opts.Logger
	hooks := observability.Crawl()
	done := 0
	for len(st.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.opts.MaxPackages > 0 && len(st.seen) > c.opts.MaxPackages {
			return nil, fmt.Errorf("%w: %d packages queued, limit is %d", ErrTooManyPackages, len(st.seen), c.opts.MaxPackages)
		}

		next := st.queue[0]
		st.queue = st.queue[1:]
		hooks.OnPackageStart(ctx, next.name, done, done+len(st.queue)+1)
		start := time.Now()

		versions, fetched := s.Packages[next.name]
		if !fetched {
			var err error
			versions, err = FetchOnePackage(ctx, c.index, next.name, s.Input.SdistAllowed(next.name), logger)
			if err != nil {
				return nil, err
			}
			s.Packages[next.name] = versions
		}

		for _, version := range versions.Sorted() {
			info := versions[version]
			for _, extra := range next.extras {
				for _, dep := range info.DependsByExtra[extra] {
					req, err := packaging.ParseRequirement(dep)
					if err != nil {
						logger.Warn("skipping unparsable dependency", "package", next.name, "version", version, "dependency", dep, "err", err)
						continue
					}
					st.add(req)
				}
			}
		}

		hooks.OnPackageFinished(ctx, next.name, len(versions), time.Since(start))
		done++
	}

	logger.Debug("crawl finished", "packages", len(s.Packages), "dequeued", done)
	return s, nil
}

// FetchOnePackage fetches the dependency record of every usable version of
// name. Versions whose metadata cannot be obtained are left out.
//
// An index error degrades to an empty result with a warning, unless ctx
// has been cancelled, in which case the context error is returned.
func FetchOnePackage(ctx context.Context, index Index, name string, sdistPermitted bool, logger *log.Logger) (scenario.Versions, error) {
	if logger == nil {
		logger = Options{}.WithDefaults().Logger
	}
	hooks := observability.Crawl()
	versions := make(scenario.Versions)

	groups, err := index.FetchAllDistsByVersion(ctx, name, sdistPermitted)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("could not list distributions", "package", name, "err", err)
		return versions, nil
	}
	hooks.OnVersionsGrouped(ctx, name, len(groups))

	for _, g := range groups {
		md, err := index.FetchBestCandidateMetadata(ctx, name, g.Version, g.Dists)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, pypi.ErrSdistFailure):
			logger.Warn(fmt.Sprintf("Skipping %s==%s: sdist causes error", name, g.Version))
			md = nil
		default:
			logger.Warn("could not fetch metadata", "package", name, "version", g.Version, "err", err)
			md = nil
		}
		hooks.OnMetadataFetched(ctx, name, g.Version, md != nil)
		if md == nil {
			continue
		}

		info, err := ExtractDistributionInfo(md)
		if err != nil {
			logger.Warn("skipping version with invalid metadata", "package", name, "version", g.Version, "err", err)
			continue
		}
		versions[g.Version] = info
	}
	return versions, nil
}
