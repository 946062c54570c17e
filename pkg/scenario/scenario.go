package scenario

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// DistributionInfo is the dependency record of one (package, version).
type DistributionInfo struct {
	// DependsByExtra maps an extra ("" for unconditional) to the
	// requirement strings it pulls in, markers removed.
	DependsByExtra map[string][]string `json:"depends_by_extra" yaml:"depends_by_extra"`

	// RequiresPython is the Requires-Python constraint, empty when absent.
	RequiresPython string `json:"requires_python,omitempty" yaml:"requires_python,omitempty"`
}

// Extras returns the keys of DependsByExtra sorted, so "" comes first.
func (d DistributionInfo) Extras() []string {
	return slices.Sorted(maps.Keys(d.DependsByExtra))
}

// AsMetadata renders a METADATA document for name and version.
//
// Unconditional dependencies come first as plain Requires-Dist lines. Each
// other extra gets a Provides-Extra line followed by its dependencies gated
// with `; extra == '<extra>'`. Lines are joined by "\n" with no trailing
// newline.
func (d DistributionInfo) AsMetadata(name, version string) string {
	lines := []string{
		"Metadata-Version: 2.1",
		"Name: " + name,
		"Version: " + version,
	}
	for _, extra := range d.Extras() {
		deps := d.DependsByExtra[extra]
		if extra == "" {
			for _, dep := range deps {
				lines = append(lines, "Requires-Dist: "+dep)
			}
			continue
		}
		lines = append(lines, "Provides-Extra: "+extra)
		for _, dep := range deps {
			lines = append(lines, "Requires-Dist: "+dep+" ; extra == '"+extra+"'")
		}
	}
	if d.RequiresPython != "" {
		lines = append(lines, "Requires-Python: "+d.RequiresPython)
	}
	return strings.Join(lines, "\n")
}

// EnvironmentDetails snapshots the interpreter the crawl selected wheels for.
type EnvironmentDetails struct {
	Markers map[string]string `json:"markers" yaml:"markers"`
	Tags    []string          `json:"tags" yaml:"tags"`
}

// ScenarioInput records what seeded a crawl.
type ScenarioInput struct {
	Requirements   []string           `json:"requirements" yaml:"requirements"`
	Timestamp      Timestamp          `json:"timestamp" yaml:"timestamp"`
	AllowSdistsFor []string           `json:"allow_sdists_for" yaml:"allow_sdists_for"`
	Environment    EnvironmentDetails `json:"environment" yaml:"environment"`
}

// SdistAllowed reports whether source distributions may be built for name.
func (in ScenarioInput) SdistAllowed(name string) bool {
	_, found := slices.BinarySearch(in.AllowSdistsFor, name)
	return found
}

// Versions maps a version string to its dependency record.
type Versions map[string]DistributionInfo

// Sorted returns the version strings in ascending PEP 440 order.
func (v Versions) Sorted() []string {
	return slices.SortedFunc(maps.Keys(v), packaging.CompareVersions)
}

// Scenario is a crawl result.
type Scenario struct {
	Input    ScenarioInput       `json:"input" yaml:"input"`
	Packages map[string]Versions `json:"packages" yaml:"packages"`
}

// New returns an empty scenario for input. AllowSdistsFor is sorted and
// de-duplicated.
func New(input ScenarioInput) *Scenario {
	allow := slices.Clone(input.AllowSdistsFor)
	slices.Sort(allow)
	input.AllowSdistsFor = slices.Compact(allow)
	if input.AllowSdistsFor == nil {
		input.AllowSdistsFor = []string{}
	}
	return &Scenario{Input: input, Packages: make(map[string]Versions)}
}

// PackageNames returns the package names in sorted order.
func (s *Scenario) PackageNames() []string {
	return slices.Sorted(maps.Keys(s.Packages))
}

// DistributionCount returns the number of (package, version) pairs.
func (s *Scenario) DistributionCount() int {
	n := 0
	for _, versions := range s.Packages {
		n += len(versions)
	}
	return n
}

// Validate checks the structural invariants of the document and returns a
// *errors.ValidationError listing every violation, or nil.
func (s *Scenario) Validate(subject string) error {
	v := &errors.ValidationError{Subject: subject}

	for i, r := range s.Input.Requirements {
		if _, err := packaging.ParseRequirement(r); err != nil {
			v.Add("input.requirements."+strconv.Itoa(i), "%v", err)
		}
	}
	for i, tag := range s.Input.Environment.Tags {
		if _, err := packaging.ParseTag(tag); err != nil {
			v.Add("input.environment.tags."+strconv.Itoa(i), "%v", err)
		}
	}
	if s.Packages == nil {
		v.Add("packages", "field required")
	}

	for _, name := range s.PackageNames() {
		if !packaging.IsNormalizedName(name) {
			v.Add("packages."+name, "not a normalized package name")
		}
		seen := make(map[string]string)
		for _, version := range slices.Sorted(maps.Keys(s.Packages[name])) {
			path := "packages." + name + "." + version
			if !packaging.IsValidVersion(version) {
				v.Add(path, "not a valid PEP 440 version")
				continue
			}
			canonical := packaging.CanonicalizeVersion(version)
			if other, dup := seen[canonical]; dup {
				v.Add("packages."+name, "multiple versions with same canonicalized value %s: %s and %s", canonical, other, version)
			}
			seen[canonical] = version

			info := s.Packages[name][version]
			if info.DependsByExtra == nil {
				v.Add(path+".depends_by_extra", "field required")
			}
			for _, extra := range info.Extras() {
				for i, dep := range info.DependsByExtra[extra] {
					if strings.Contains(dep, ";") {
						v.Add(path+".depends_by_extra."+extra+"."+strconv.Itoa(i), "dependency %q carries a marker", dep)
					}
				}
			}
		}
	}
	return v.Err()
}

// CheckForIssues reports non-fatal anomalies, such as packages for which no
// usable version was found.
func (s *Scenario) CheckForIssues() []string {
	var empty []string
	for _, name := range s.PackageNames() {
		if len(s.Packages[name]) == 0 {
			empty = append(empty, name)
		}
	}

	var issues []string
	if len(empty) > 0 {
		issues = append(issues, "Found "+strconv.Itoa(len(empty))+" packages with no versions...\n  "+strings.Join(empty, "\n  "))
	}
	return issues
}
