package deps

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/metadata"
)

// Index is the part of a package index the crawler talks to.
// [pypi.Client] implements it.
type Index interface {
	// FetchAllDistsByVersion lists the distribution files of project grouped
	// by version. Source distributions are only included when sdistPermitted.
	FetchAllDistsByVersion(ctx context.Context, project string, sdistPermitted bool) ([]pypi.VersionDists, error)
	// FetchBestCandidateMetadata returns the metadata of the preferred file of
	// one version, or nil when none of its files is usable.
	FetchBestCandidateMetadata(ctx context.Context, project, version string, dists []pypi.DistDetail) (*metadata.Metadata, error)
}

var _ Index = (*pypi.Client)(nil)

// Options configures a crawl.
type Options struct {
	MaxPackages int         // Abort once more packages than this are queued (0: unlimited)
	Logger      *log.Logger // Warnings and debug output (default: discarded)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxPackages < 0 {
		opts.MaxPackages = 0
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}
