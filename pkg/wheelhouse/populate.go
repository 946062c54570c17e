package wheelhouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// Options configures Populate.
type Options struct {
	// Workers bounds how many packages are generated concurrently.
	// Zero means runtime.NumCPU().
	Workers int

	// Replace removes an existing output directory first.
	Replace bool

	// Logger receives debug output. Nil disables logging.
	Logger *log.Logger
}

// Result summarises a Populate run.
type Result struct {
	Dir      string
	Packages int
	Wheels   int
	Duration time.Duration
}

// Populate writes a wheel per (package, version) of s below dir, a listing
// page per package and a root listing of all packages.
//
// Packages are generated concurrently; each one owns its own subdirectory.
// Progress is reported through observability.Generate().
func Populate(ctx context.Context, s *scenario.Scenario, dir string, opts Options) (res *Result, err error) {
	start := time.Now()
	hooks := observability.Generate()
	total := s.DistributionCount()
	hooks.OnGenerateStart(ctx, total)
	defer func() { hooks.OnGenerateComplete(ctx, time.Since(start), err) }()

	if opts.Replace {
		if _, statErr := os.Stat(dir); statErr == nil {
			if opts.Logger != nil {
				opts.Logger.Info("removing existing directory", "dir", dir)
			}
			if err := os.RemoveAll(dir); err != nil {
				return nil, fmt.Errorf("remove %s: %w", dir, err)
			}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	names := s.PackageNames()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, name := range names {
		g.Go(func() error {
			return writePackage(gctx, dir, name, s.Packages[name], opts.Logger)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	links := make([]string, len(names))
	for i, name := range names {
		links[i] = name + "/"
	}
	if err := writeListingFile(filepath.Join(dir, "index.html"), links); err != nil {
		return nil, err
	}

	return &Result{Dir: dir, Packages: len(names), Wheels: total, Duration: time.Since(start)}, nil
}

// writePackage writes every wheel of one package, then its listing page.
func writePackage(ctx context.Context, dir, name string, versions scenario.Versions, logger *log.Logger) error {
	hooks := observability.Generate()
	var wheels []string
	for _, version := range versions.Sorted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		filename, err := WriteWheel(dir, name, version, versions[version])
		if err != nil {
			return fmt.Errorf("write wheel %s %s: %w", name, version, err)
		}
		wheels = append(wheels, filename)
		hooks.OnWheelWritten(ctx, name, version)
	}
	if logger != nil {
		logger.Debug("package written", "name", name, "wheels", len(wheels))
	}
	return writeListingFile(filepath.Join(dir, name, "index.html"), wheels)
}
