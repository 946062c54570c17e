package packaging

import (
	"regexp"
	"strings"
)

var (
	separatorRE  = regexp.MustCompile(`[-_.]+`)
	normalizedRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	validNameRE  = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)
)

// CanonicalizeName returns the PEP 503 normalized form of a project name:
// lowercase, with every run of "-", "_" and "." collapsed to a single "-".
//
// Extra names are canonicalized the same way.
func CanonicalizeName(name string) string {
	return strings.ToLower(separatorRE.ReplaceAllString(name, "-"))
}

// IsNormalizedName reports whether name is already in canonical form.
func IsNormalizedName(name string) bool {
	return normalizedRE.MatchString(name) && !strings.Contains(name, "--")
}

// IsValidName reports whether name is a syntactically valid PEP 508 project name.
func IsValidName(name string) bool {
	return validNameRE.MatchString(name)
}
