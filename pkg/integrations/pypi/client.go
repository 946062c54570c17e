package pypi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelbench/pkg/buildinfo"
	"github.com/matzehuels/wheelbench/pkg/cache"
	"github.com/matzehuels/wheelbench/pkg/httputil"
	"github.com/matzehuels/wheelbench/pkg/integrations"
	"github.com/matzehuels/wheelbench/pkg/metadata"
	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// DefaultIndexURL is PyPI's Simple API root.
const DefaultIndexURL = "https://pypi.org/simple/"

// Options configures a Client.
type Options struct {
	// IndexURL is the Simple API root. Defaults to DefaultIndexURL.
	IndexURL string

	// Cache stores project pages. Nil disables response caching.
	Cache cache.Cache

	// CacheTTL is how long project pages stay cached. Zero keeps them forever.
	CacheTTL time.Duration

	// MetadataDir roots the extracted-metadata cache. Empty disables it.
	MetadataDir string

	// Tags lists the supported wheel tags, most specific first. Required.
	Tags *packaging.SupportedTags

	// Sdists builds metadata for source distributions. Nil makes every
	// sdist candidate unusable.
	Sdists SdistBuilder

	// RateLimit throttles requests per host.
	RateLimit httputil.RateLimit

	// Refresh bypasses cached project pages.
	Refresh bool

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Logger receives warnings and debug output. Nil discards them.
	Logger *log.Logger
}

// Client reads project pages and metadata from a Simple API index.
//
// A Client owns its cache backend; Close releases it. Methods are not safe
// for concurrent use because the metadata cache assumes a single writer.
type Client struct {
	*integrations.Client
	indexURL string
	tags     *packaging.SupportedTags
	meta     *MetadataCache
	sdists   SdistBuilder
	refresh  bool
	logger   *log.Logger
}

// NewClient creates an index client from opts.
func NewClient(opts Options) (*Client, error) {
	if opts.Tags == nil {
		return nil, errors.New("pypi: supported tags are required")
	}
	indexURL := opts.IndexURL
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	if _, err := url.Parse(indexURL); err != nil {
		return nil, fmt.Errorf("pypi: invalid index URL: %w", err)
	}
	if !strings.HasSuffix(indexURL, "/") {
		indexURL += "/"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	keyer := cache.NewIndexKeyer(indexURL)
	base := integrations.NewClient(opts.Cache, "simple", opts.CacheTTL, map[string]string{
		"User-Agent": buildinfo.UserAgent(),
	}).WithKeyer(keyer).
		WithLimiter(httputil.NewHostLimiter(opts.RateLimit)).
		WithHTTPClient(opts.HTTPClient)

	var meta *MetadataCache
	if opts.MetadataDir != "" {
		meta = NewMetadataCache(opts.MetadataDir)
	}

	return &Client{
		Client:   base,
		indexURL: indexURL,
		tags:     opts.Tags,
		meta:     meta,
		sdists:   opts.Sdists,
		refresh:  opts.Refresh,
		logger:   logger,
	}, nil
}

// IndexURL returns the Simple API root, always ending in "/".
func (c *Client) IndexURL() string { return c.indexURL }

// ProjectURL returns the project page URL for project.
func (c *Client) ProjectURL(project string) string {
	return c.indexURL + integrations.NormalizePkgName(project) + "/"
}

// FetchProjectPage returns the project page, from cache when possible.
func (c *Client) FetchProjectPage(ctx context.Context, project string) (*integrations.Page, error) {
	project = integrations.NormalizePkgName(project)
	projectURL := c.ProjectURL(project)

	var page integrations.Page
	err := c.Cached(ctx, project, c.refresh, &page, func() error {
		p, err := c.GetPage(ctx, projectURL, map[string]string{"Accept": acceptHeader})
		if err != nil {
			return err
		}
		page = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchAllDistsByVersion lists the files of project grouped by version.
//
// Files are visited newest-listed first. Wheels are always considered;
// .tar.gz source archives only when sdistPermitted. Files whose names do not
// parse are skipped. A non-200 response or an unknown content type is logged
// and yields no versions and no error.
func (c *Client) FetchAllDistsByVersion(ctx context.Context, project string, sdistPermitted bool) ([]VersionDists, error) {
	project = integrations.NormalizePkgName(project)

	page, err := c.FetchProjectPage(ctx, project)
	if err != nil {
		if code := integrations.StatusCode(err); code != 0 {
			c.logger.Warn("failed to fetch project details", "project", project, "status", code)
			return nil, nil
		}
		return nil, err
	}
	files, err := ParseProjectPage(page.Body, page.ContentType)
	if err != nil {
		c.logger.Warn("failed to parse project details", "project", project, "err", err)
		return nil, nil
	}
	observability.Crawl().OnFilesListed(ctx, project, len(files))

	base, err := url.Parse(page.URL)
	if err != nil {
		base, _ = url.Parse(c.ProjectURL(project))
	}

	groups := newVersionGrouper()
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		fileURL := resolveURL(base, f.URL)
		switch {
		case strings.HasSuffix(f.Filename, ".whl"):
			w, err := packaging.ParseWheelFilename(f.Filename)
			if err != nil {
				c.logger.Debug("skipping file", "file", f.Filename, "err", err)
				continue
			}
			groups.add(w.Version, DistDetail{Wheel: w, URL: fileURL})
		case sdistPermitted && strings.HasSuffix(f.Filename, ".tar.gz"):
			s, err := parseSdist(project, f.Filename)
			if err != nil {
				c.logger.Debug("skipping file", "file", f.Filename, "err", err)
				continue
			}
			groups.add(s.Version, DistDetail{Sdist: s, URL: fileURL})
		}
	}
	return groups.groups, nil
}

// parseSdist keeps the version as written when the filename starts with the
// project name, and falls back to full filename parsing otherwise.
func parseSdist(project, filename string) (*packaging.SdistFilename, error) {
	if rest, ok := strings.CutPrefix(filename, project+"-"); ok {
		version := strings.TrimSuffix(rest, ".tar.gz")
		if packaging.IsValidVersion(version) {
			return &packaging.SdistFilename{Name: project, Version: version}, nil
		}
	}
	return packaging.ParseSdistFilename(filename)
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// FetchBestCandidateMetadata returns the metadata of the best file among
// dists, or nil when no file is usable.
//
// The metadata cache is consulted first. Wheels are read with range
// requests; sdists are built by the configured SdistBuilder. A recorded or
// new sdist build failure returns ErrSdistFailure. Metadata whose
// Requires-Dist or Requires-Python does not parse is discarded.
func (c *Client) FetchBestCandidateMetadata(ctx context.Context, project, version string, dists []DistDetail) (*metadata.Metadata, error) {
	project = integrations.NormalizePkgName(project)
	best, ok := PickBestCandidate(dists, c.tags)
	if !ok {
		return nil, nil
	}

	md, err := c.cachedOrFetchMetadata(ctx, project, version, best)
	if err != nil || md == nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		c.logger.Debug("discarding metadata", "project", project, "version", version, "err", err)
		return nil, nil
	}
	return md, nil
}

func (c *Client) cachedOrFetchMetadata(ctx context.Context, project, version string, best DistDetail) (*metadata.Metadata, error) {
	md, found, err := c.meta.Load(ctx, project, version)
	if found {
		if err != nil {
			c.logger.Debug("unreadable cached metadata", "project", project, "version", version, "err", err)
			return nil, nil
		}
		return md, nil
	}
	if err != nil {
		return nil, err
	}

	if best.IsWheel() {
		return c.fetchWheelMetadata(ctx, project, version, best.URL)
	}
	return c.fetchSdistMetadata(ctx, project, version, best.URL)
}

func (c *Client) fetchWheelMetadata(ctx context.Context, project, version, wheelURL string) (*metadata.Metadata, error) {
	data, err := c.MetadataFromWheelURL(ctx, project, wheelURL)
	if err != nil || data == nil {
		return nil, err
	}
	md, err := metadata.ParseEmail(string(data))
	if err != nil {
		return nil, nil
	}
	if err := c.meta.Store(ctx, project, version, data); err != nil {
		c.logger.Warn("failed to cache metadata", "project", project, "version", version, "err", err)
	}
	return md, nil
}

func (c *Client) fetchSdistMetadata(ctx context.Context, project, version, sdistURL string) (*metadata.Metadata, error) {
	if c.meta.Failed(project, version) {
		return nil, ErrSdistFailure
	}
	if c.sdists == nil {
		c.logger.Debug("no sdist builder configured", "project", project, "version", version)
		return nil, nil
	}

	raw, err := c.sdists.BuildMetadata(ctx, sdistURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if markErr := c.meta.MarkFailed(project, version); markErr != nil {
			c.logger.Warn("failed to record sdist failure", "project", project, "version", version, "err", markErr)
		}
		if errors.Is(err, ErrSdistFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSdistFailure, err)
	}

	md, err := metadata.ParseRaw(raw)
	if err != nil {
		return nil, nil
	}
	if err := c.meta.Store(ctx, project, version, raw); err != nil {
		c.logger.Warn("failed to cache metadata", "project", project, "version", version, "err", err)
	}
	return md, nil
}
