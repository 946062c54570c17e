package packaging

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidWheelFilename is returned for names that do not follow PEP 427.
	ErrInvalidWheelFilename = errors.New("invalid wheel filename")

	// ErrInvalidSdistFilename is returned for source archive names that cannot be split
	// into a name and a version.
	ErrInvalidSdistFilename = errors.New("invalid sdist filename")
)

var (
	wheelNameRE = regexp.MustCompile(`^[\w.]*$`)
	buildTagRE  = regexp.MustCompile(`^(\d+)(.*)$`)
)

// BuildTag is the optional build number of a wheel, e.g. "1" or "2b".
type BuildTag struct {
	Number int
	Suffix string
}

// WheelFilename is the parsed form of "{name}-{ver}(-{build})?-{py}-{abi}-{plat}.whl".
type WheelFilename struct {
	Name    string // canonical project name
	Version string // normalized version
	Build   *BuildTag
	Tags    []Tag
}

// SdistFilename is the parsed form of "{name}-{version}.tar.gz".
type SdistFilename struct {
	Name    string
	Version string
}

// ParseWheelFilename parses a wheel filename.
func ParseWheelFilename(filename string) (*WheelFilename, error) {
	fail := func(reason string) (*WheelFilename, error) {
		return nil, fmt.Errorf("%w (%s): %s", ErrInvalidWheelFilename, reason, filename)
	}
	stem, ok := strings.CutSuffix(filename, ".whl")
	if !ok {
		return fail("extension must be '.whl'")
	}
	dashes := strings.Count(stem, "-")
	if dashes != 4 && dashes != 5 {
		return fail("wrong number of parts")
	}
	parts := strings.SplitN(stem, "-", dashes-1)
	namePart := parts[0]
	if strings.Contains(namePart, "__") || !wheelNameRE.MatchString(namePart) {
		return fail("invalid project name")
	}
	version, err := NormalizeVersion(parts[1])
	if err != nil {
		return fail("invalid version")
	}

	w := &WheelFilename{Name: CanonicalizeName(namePart), Version: version}
	if dashes == 5 {
		m := buildTagRE.FindStringSubmatch(parts[2])
		if m == nil {
			return fail("invalid build number")
		}
		n, _ := strconv.Atoi(m[1])
		w.Build = &BuildTag{Number: n, Suffix: m[2]}
	}
	tags, err := ParseTag(parts[len(parts)-1])
	if err != nil {
		return fail("invalid tags")
	}
	w.Tags = tags
	return w, nil
}

// ParseSdistFilename parses a source archive filename ending in .tar.gz or .zip.
func ParseSdistFilename(filename string) (*SdistFilename, error) {
	stem, ok := strings.CutSuffix(filename, ".tar.gz")
	if !ok {
		if stem, ok = strings.CutSuffix(filename, ".zip"); !ok {
			return nil, fmt.Errorf("%w (extension must be '.tar.gz' or '.zip'): %s", ErrInvalidSdistFilename, filename)
		}
	}
	i := strings.LastIndexByte(stem, '-')
	if i < 0 {
		return nil, fmt.Errorf("%w (missing version): %s", ErrInvalidSdistFilename, filename)
	}
	version, err := NormalizeVersion(stem[i+1:])
	if err != nil {
		return nil, fmt.Errorf("%w (invalid version): %s", ErrInvalidSdistFilename, filename)
	}
	return &SdistFilename{Name: CanonicalizeName(stem[:i]), Version: version}, nil
}
