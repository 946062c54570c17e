package deps

import (
	"bufio"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// ManifestParser reads root requirements from a local project file.
type ManifestParser interface {
	// Parse reads the manifest at path and returns its requirement strings.
	Parse(path string) ([]string, error)
	// Supports reports whether this parser handles the given filename.
	Supports(filename string) bool
	// Type returns the manifest type identifier (e.g., "requirements").
	Type() string
}

// Manifests returns every built-in manifest parser.
func Manifests() []ManifestParser {
	return []ManifestParser{&RequirementsTxt{}, &Pyproject{}}
}

// DetectManifest finds a parser that supports the given file path.
// Returns an error if no parser matches.
func DetectManifest(path string, parsers ...ManifestParser) (ManifestParser, error) {
	name := filepath.Base(path)
	for _, p := range parsers {
		if p.Supports(name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("unsupported manifest: %s", name)
}

// ReadManifest detects the type of the file at path and parses it with the
// built-in parsers.
func ReadManifest(path string) ([]string, error) {
	p, err := DetectManifest(path, Manifests()...)
	if err != nil {
		return nil, err
	}
	return p.Parse(path)
}

// RequirementsTxt parses pip requirements files. Options (-r, -e, ...) and
// VCS references are skipped; every other line must be a PEP 508
// requirement.
type RequirementsTxt struct{}

func (*RequirementsTxt) Type() string { return "requirements" }

func (*RequirementsTxt) Supports(name string) bool {
	return name == "requirements.txt" ||
		(strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt"))
}

func (*RequirementsTxt) Parse(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	var result []string

	scanner := bufio.NewScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := stripComment(scanner.Text())
		if line == "" || line[0] == '-' || strings.HasPrefix(line, "git+") {
			continue
		}
		req, err := packaging.ParseRequirement(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineno, err)
		}
		s := req.String()
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result, scanner.Err()
}

// stripComment drops a "#" comment that starts the line or follows
// whitespace, then trims the rest.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "\t#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// Pyproject reads the dependencies of a pyproject.toml. PEP 621
// [project].dependencies are used as written. Poetry dependency tables use
// their own constraint syntax, so only the package names are kept.
type Pyproject struct{}

func (*Pyproject) Type() string              { return "pyproject" }
func (*Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

type pyprojectFile struct {
	Project struct {
		Name         string   `toml:"name"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func (*Pyproject) Parse(path string) ([]string, error) {
	var doc pyprojectFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, err
	}

	var result []string
	for _, dep := range doc.Project.Dependencies {
		req, err := packaging.ParseRequirement(dep)
		if err != nil {
			return nil, fmt.Errorf("%s: project.dependencies: %w", path, err)
		}
		result = append(result, req.String())
	}
	for _, name := range slices.Sorted(maps.Keys(doc.Tool.Poetry.Dependencies)) {
		if strings.EqualFold(name, "python") {
			continue
		}
		result = append(result, packaging.CanonicalizeName(name))
	}
	return result, nil
}
