package packaging

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidSpecifier is returned when a version specifier cannot be parsed.
var ErrInvalidSpecifier = errors.New("invalid specifier")

var specifierRE = regexp.MustCompile(`^\s*(~=|===|==|!=|<=|>=|<|>)\s*(\S+?)\s*$`)

// Specifier is a single version clause such as ">=1.0" or "==2.*".
type Specifier struct {
	Operator string
	Version  string
}

// ParseSpecifier parses one specifier clause.
func ParseSpecifier(s string) (Specifier, error) {
	m := specifierRE.FindStringSubmatch(s)
	if m == nil {
		return Specifier{}, fmt.Errorf("%w: %q", ErrInvalidSpecifier, s)
	}
	spec := Specifier{Operator: m[1], Version: m[2]}
	if err := spec.validate(); err != nil {
		return Specifier{}, err
	}
	return spec, nil
}

func (s Specifier) validate() error {
	ver := s.Version
	switch s.Operator {
	case "===":
		return nil
	case "==", "!=":
		if base, ok := strings.CutSuffix(ver, ".*"); ok {
			if strings.Contains(base, "+") || !IsValidVersion(base) {
				return fmt.Errorf("%w: %s%s", ErrInvalidSpecifier, s.Operator, ver)
			}
			return nil
		}
	case "~=":
		v, err := ParseVersion(ver)
		if err != nil || len(v.Local) > 0 || len(v.Release) < 2 {
			return fmt.Errorf("%w: %s%s", ErrInvalidSpecifier, s.Operator, ver)
		}
		return nil
	default:
		if strings.Contains(ver, "+") {
			return fmt.Errorf("%w: local version not allowed in %s%s", ErrInvalidSpecifier, s.Operator, ver)
		}
	}
	if !IsValidVersion(ver) {
		return fmt.Errorf("%w: %s%s", ErrInvalidSpecifier, s.Operator, ver)
	}
	return nil
}

// String returns the clause without whitespace, e.g. ">=1.0".
func (s Specifier) String() string { return s.Operator + s.Version }

// SpecifierSet is a comma-separated conjunction of specifiers.
type SpecifierSet []Specifier

// ParseSpecifierSet parses a comma-separated list of specifiers.
// An empty or all-whitespace string yields an empty set.
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	var set SpecifierSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			if strings.TrimSpace(s) == "" {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: empty clause in %q", ErrInvalidSpecifier, s)
		}
		spec, err := ParseSpecifier(part)
		if err != nil {
			return nil, err
		}
		set = append(set, spec)
	}
	return set, nil
}

// String renders the clauses sorted and joined by ",".
func (ss SpecifierSet) String() string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, s.String())
	}
	slices.Sort(parts)
	return strings.Join(slices.Compact(parts), ",")
}
