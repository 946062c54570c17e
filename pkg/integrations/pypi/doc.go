// Package pypi talks to a Python package index through the Simple
// Repository API (PEP 503 HTML and PEP 691 JSON).
//
// # Overview
//
// The crawler needs two things from the index:
//
//   - the files of a project grouped by version
//     ([Client.FetchAllDistsByVersion])
//   - the core metadata of the best file for one version
//     ([Client.FetchBestCandidateMetadata])
//
// # Usage
//
//	client, err := pypi.NewClient(pypi.Options{
//	    IndexURL:    "https://pypi.org/simple/",
//	    Cache:       httpCache,
//	    MetadataDir: filepath.Join(cacheDir, "metadata"),
//	    Tags:        tags,
//	    Sdists:      pypi.NewPipReportBuilder("python3", logger),
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	groups, err := client.FetchAllDistsByVersion(ctx, "requests", false)
//	for _, g := range groups {
//	    md, err := client.FetchBestCandidateMetadata(ctx, "requests", g.Version, g.Dists)
//	    ...
//	}
//
// # Metadata Sources
//
// Wheels are never downloaded whole: [Client.MetadataFromWheelURL] reads the
// zip central directory and the METADATA member with HTTP range requests.
// Source distributions are built by an [SdistBuilder]; the default
// [PipReportBuilder] runs `pip install --dry-run --report` in a subprocess,
// which executes the project's build backend.
//
// # Caching
//
// Simple pages go through the shared HTTP response cache with a TTL.
// Extracted metadata is stored under <cache>/metadata/<project>/<version>-METADATA
// and never expires. A failed sdist build leaves a "<version>-METADATA.fails"
// marker so later crawls skip the build.
package pypi
