package packaging

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidRequirement is returned when a PEP 508 requirement string cannot be parsed.
var ErrInvalidRequirement = errors.New("invalid requirement")

var reqNameRE = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?`)

// Requirement is a parsed PEP 508 dependency specification.
//
// Name keeps the spelling used in the source string; use [CanonicalizeName]
// before using it as a map key. Extras are sorted and de-duplicated.
type Requirement struct {
	Name      string
	Extras    []string
	Specifier SpecifierSet
	URL       string
	Marker    *Marker
}

// ParseRequirement parses a requirement such as
// `requests[socks] (>=2.8, <3) ; python_version >= "3.7"`.
func ParseRequirement(s string) (*Requirement, error) {
	fail := func(format string, args ...any) (*Requirement, error) {
		return nil, fmt.Errorf("%w: %s: %q", ErrInvalidRequirement, fmt.Sprintf(format, args...), s)
	}

	rest := strings.TrimSpace(s)
	name := reqNameRE.FindString(rest)
	if name == "" {
		return fail("expected package name")
	}
	req := &Requirement{Name: name}
	rest = strings.TrimLeft(rest[len(name):], " \t")

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return fail("unclosed extras")
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				if strings.TrimSpace(rest[1:end]) == "" {
					break
				}
				return fail("empty extra")
			}
			if !IsValidName(extra) {
				return fail("invalid extra %q", extra)
			}
			req.Extras = append(req.Extras, extra)
		}
		slices.Sort(req.Extras)
		req.Extras = slices.Compact(req.Extras)
		rest = strings.TrimLeft(rest[end+1:], " \t")
	}

	var markerText string
	hasMarker := false
	if strings.HasPrefix(rest, "@") {
		rest = strings.TrimLeft(rest[1:], " \t")
		url, after, _ := strings.Cut(rest, " ")
		if url == "" {
			return fail("expected URL after @")
		}
		req.URL = url
		after = strings.TrimSpace(after)
		if after != "" {
			if !strings.HasPrefix(after, ";") {
				return fail("expected end or semicolon after URL")
			}
			markerText, hasMarker = after[1:], true
		}
	} else {
		specText := rest
		if i := strings.IndexByte(rest, ';'); i >= 0 {
			specText, markerText, hasMarker = rest[:i], rest[i+1:], true
		}
		specText = strings.TrimSpace(specText)
		if strings.HasPrefix(specText, "(") {
			if !strings.HasSuffix(specText, ")") {
				return fail("unclosed version specifier")
			}
			specText = specText[1 : len(specText)-1]
		}
		if specText != "" {
			set, err := ParseSpecifierSet(specText)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRequirement, s, err)
			}
			req.Specifier = set
		}
	}

	if hasMarker {
		m, err := ParseMarker(strings.TrimSpace(markerText))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRequirement, s, err)
		}
		req.Marker = m
	}
	return req, nil
}

// CanonicalName is shorthand for CanonicalizeName(r.Name).
func (r *Requirement) CanonicalName() string { return CanonicalizeName(r.Name) }

// String renders the requirement in canonical form:
// name, "[extras]", specifiers, "@ url", then "; marker".
func (r *Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	if len(r.Specifier) > 0 {
		b.WriteString(r.Specifier.String())
	}
	if r.URL != "" {
		b.WriteString("@ " + r.URL)
		if r.Marker != nil {
			b.WriteString(" ")
		}
	}
	if r.Marker != nil {
		b.WriteString("; " + r.Marker.String())
	}
	return b.String()
}

// WithoutMarker renders the requirement with any marker clause removed.
// Stored scenario dependencies use this form.
func (r *Requirement) WithoutMarker() string {
	s, _, _ := strings.Cut(r.String(), ";")
	return s
}
