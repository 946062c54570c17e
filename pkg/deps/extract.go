package deps

import (
	"github.com/matzehuels/wheelbench/pkg/metadata"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// ExtraFromMarker returns the extra a marker gates on.
//
// Only markers holding exactly one `extra == "<x>"` comparison, with the
// variable on either side, count; the canonicalized value of x is returned.
// Markers naming several extras, or none, yield "" and the requirement is
// treated as unconditional.
func ExtraFromMarker(m *packaging.Marker) string {
	if m == nil {
		return ""
	}
	var found []string
	for _, c := range m.Comparisons() {
		if c.Op != "==" {
			continue
		}
		switch {
		case c.Lhs.Variable && c.Lhs.Value == "extra" && !c.Rhs.Variable:
			found = append(found, c.Rhs.Value)
		case c.Rhs.Variable && c.Rhs.Value == "extra" && !c.Lhs.Variable:
			found = append(found, c.Lhs.Value)
		}
	}
	if len(found) != 1 {
		return ""
	}
	return packaging.CanonicalizeName(found[0])
}

// ExtractDistributionInfo turns core metadata into the dependency record
// stored in a scenario. Each Requires-Dist entry is filed under the extra
// its marker names and stored without the marker. Requires-Python is kept
// verbatim.
func ExtractDistributionInfo(md *metadata.Metadata) (scenario.DistributionInfo, error) {
	reqs, err := md.Requirements()
	if err != nil {
		return scenario.DistributionInfo{}, err
	}
	info := scenario.DistributionInfo{
		DependsByExtra: make(map[string][]string),
		RequiresPython: md.RequiresPython,
	}
	for _, req := range reqs {
		extra := ExtraFromMarker(req.Marker)
		info.DependsByExtra[extra] = append(info.DependsByExtra[extra], req.WithoutMarker())
	}
	return info, nil
}
