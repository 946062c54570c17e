package packaging

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned when a string is not a valid PEP 440 version.
var ErrInvalidVersion = errors.New("invalid version")

var versionRE = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_.]?(?P<pre_l>alpha|a|beta|b|preview|pre|c|rc)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?P<dev>[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

var localSepRE = regexp.MustCompile(`[-_.]`)

// Version is a parsed PEP 440 version.
//
// Pre, Post and Dev are nil when the segment is absent. Release always has
// at least one component.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   []string
}

// PreRelease is the pre-release segment of a version, e.g. "rc1".
type PreRelease struct {
	Label  string // one of "a", "b", "rc"
	Number int
}

// ParseVersion parses a PEP 440 version string.
func ParseVersion(s string) (*Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	group := func(name string) string { return m[versionRE.SubexpIndex(name)] }

	// Numeric components must fit an int.
	var numErr error
	num := func(digits string) int {
		if digits == "" {
			return 0
		}
		n, err := strconv.Atoi(digits)
		if err != nil && numErr == nil {
			numErr = fmt.Errorf("%w: %q: component %s out of range", ErrInvalidVersion, s, digits)
		}
		return n
	}

	v := &Version{}
	if e := group("epoch"); e != "" {
		v.Epoch = num(e)
	}
	for _, part := range strings.Split(group("release"), ".") {
		v.Release = append(v.Release, num(part))
	}
	if group("pre") != "" {
		v.Pre = &PreRelease{Label: normalizePreLabel(group("pre_l")), Number: num(group("pre_n"))}
	}
	if group("post") != "" {
		n := num(group("post_n1") + group("post_n2"))
		v.Post = &n
	}
	if group("dev") != "" {
		n := num(group("dev_n"))
		v.Dev = &n
	}
	if numErr != nil {
		return nil, numErr
	}
	if l := group("local"); l != "" {
		for _, part := range localSepRE.Split(strings.ToLower(l), -1) {
			if isDigits(part) {
				part = trimZeros(part)
			}
			v.Local = append(v.Local, part)
		}
	}
	return v, nil
}

// IsValidVersion reports whether s parses as a PEP 440 version.
func IsValidVersion(s string) bool {
	_, err := ParseVersion(s)
	return err == nil
}

// String returns the normalized form of the version, e.g. "1.0.0-RC1" → "1.0.0rc1".
func (v *Version) String() string {
	return v.format(false)
}

// NormalizeVersion parses s and returns its normalized form.
func NormalizeVersion(s string) (string, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// CanonicalizeVersion returns the normalized version with trailing ".0"
// release components removed, so "1.0" and "1.0.0" compare equal.
// Invalid versions are returned unchanged.
func CanonicalizeVersion(s string) string {
	v, err := ParseVersion(s)
	if err != nil {
		return s
	}
	return v.format(true)
}

func (v *Version) format(stripZeros bool) string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	release := v.Release
	if stripZeros {
		for len(release) > 1 && release[len(release)-1] == 0 {
			release = release[:len(release)-1]
		}
	}
	for i, n := range release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Label, v.Pre.Number)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		b.WriteString(strings.Join(v.Local, "."))
	}
	return b.String()
}

func normalizePreLabel(l string) string {
	switch strings.ToLower(l) {
	case "alpha", "a":
		return "a"
	case "beta", "b":
		return "b"
	default:
		return "rc"
	}
}

// trimZeros strips leading zeros from a digit string, keeping at least one digit.
func trimZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Compare orders two versions by PEP 440 precedence. It returns -1, 0 or +1.
func (v *Version) Compare(o *Version) int {
	if c := cmpInt(v.Epoch, o.Epoch); c != 0 {
		return c
	}
	if c := compareRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := cmpInt(v.preRank(), o.preRank()); c != 0 {
		return c
	}
	if v.Pre != nil && o.Pre != nil {
		if c := cmpInt(v.Pre.Number, o.Pre.Number); c != 0 {
			return c
		}
	}
	if c := cmpOptional(v.Post, o.Post, -1); c != 0 {
		return c
	}
	if c := cmpOptional(v.Dev, o.Dev, 1); c != 0 {
		return c
	}
	return compareLocal(v.Local, o.Local)
}

// preRank places dev-only releases before pre-releases, and final releases after them.
func (v *Version) preRank() int {
	switch {
	case v.Pre == nil && v.Post == nil && v.Dev != nil:
		return -1
	case v.Pre == nil:
		return 3
	}
	switch v.Pre.Label {
	case "a":
		return 0
	case "b":
		return 1
	default:
		return 2
	}
}

// CompareVersions compares two version strings. Invalid versions sort
// before valid ones and lexically among themselves.
func CompareVersions(a, b string) int {
	va, errA := ParseVersion(a)
	vb, errB := ParseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

func compareRelease(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := cmpInt(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// cmpOptional compares optional segments; absent sorts as missing (-1 or +1).
func cmpOptional(a, b *int, missing int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return missing
	case b == nil:
		return -missing
	}
	return cmpInt(*a, *b)
}

func compareLocal(a, b []string) int {
	for i := 0; i < min(len(a), len(b)); i++ {
		an, bn := isDigits(a[i]), isDigits(b[i])
		switch {
		case an && bn:
			// Local digits are unbounded; compare them as trimmed strings.
			x, y := trimZeros(a[i]), trimZeros(b[i])
			if c := cmpInt(len(x), len(y)); c != 0 {
				return c
			}
			if c := strings.Compare(x, y); c != 0 {
				return c
			}
		case an:
			return 1
		case bn:
			return -1
		default:
			if c := strings.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
	}
	return cmpInt(len(a), len(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
