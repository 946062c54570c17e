package pypi

import (
	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// DistDetail is one file of a project release: either a wheel or a source
// archive, together with its URL as listed by the index.
type DistDetail struct {
	Wheel *packaging.WheelFilename
	Sdist *packaging.SdistFilename
	URL   string
}

// IsWheel reports whether d is a wheel.
func (d DistDetail) IsWheel() bool { return d.Wheel != nil }

// VersionDists groups the files of one version.
type VersionDists struct {
	Version string
	Dists   []DistDetail
}

// versionGrouper collects files by version, keeping first-insertion order.
// Versions that only differ in trailing zeros share one group.
type versionGrouper struct {
	groups []VersionDists
	index  map[string]int
}

func newVersionGrouper() *versionGrouper {
	return &versionGrouper{index: make(map[string]int)}
}

func (g *versionGrouper) add(version string, d DistDetail) {
	key := packaging.CanonicalizeVersion(version)
	i, ok := g.index[key]
	if !ok {
		i = len(g.groups)
		g.index[key] = i
		g.groups = append(g.groups, VersionDists{Version: version})
	}
	g.groups[i].Dists = append(g.groups[i].Dists, d)
}
