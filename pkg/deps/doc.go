// Package deps computes the dependency closure of a set of Python
// requirements against a package index.
//
// # Overview
//
// A [Crawler] starts from the root requirements of a
// [scenario.ScenarioInput] and walks the requirement graph breadth first.
// Work items are (package, extras) pairs; the crawler remembers which extras
// it has already claimed for each package, so every (package, extra) pair is
// explored once and every package is fetched from the index once, however
// many extras later reach it.
//
//	client, _ := pypi.NewClient(pypi.Options{Tags: tags, MetadataDir: dir})
//	defer client.Close()
//
//	s, err := deps.NewCrawler(client, deps.Options{Logger: logger}).Crawl(ctx, input)
//
// # Extraction
//
// [ExtractDistributionInfo] turns the core metadata of one distribution into
// a [scenario.DistributionInfo]. Each Requires-Dist entry is bucketed under
// the extra returned by [ExtraFromMarker] and stored without its marker.
// Compound extra expressions such as `extra == "a" or extra == "b"` are
// filed as unconditional; this is a deliberate simplification.
//
// # Failures
//
// The crawl degrades instead of failing: a package whose listing cannot be
// fetched ends up with no versions, a version whose metadata is unusable (or
// whose source distribution fails to build) is skipped. Both are logged.
// Use [scenario.Scenario.CheckForIssues] to report them afterwards.
//
// # Manifests
//
// Root requirements can be read from a requirements.txt or a pyproject.toml
// with [ReadManifest].
package deps
