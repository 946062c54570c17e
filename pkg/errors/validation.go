package errors

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Issue is one problem found while validating a document.
type Issue struct {
	Path    string // location in the document, e.g. "packages.foo.1.0"
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// ValidationError collects every structural problem found in a document.
// It is fatal: a scenario with issues must not be crawled, generated or
// benchmarked.
type ValidationError struct {
	Subject string
	Issues  []Issue
}

// Add records an issue at path.
func (v *ValidationError) Add(path, format string, args ...any) {
	v.Issues = append(v.Issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
}

// Err returns v when it holds issues, nil otherwise.
func (v *ValidationError) Err() error {
	if len(v.Issues) == 0 {
		return nil
	}
	return v
}

// Error renders the full report, one issue per line.
func (v *ValidationError) Error() string {
	var b strings.Builder
	noun := "errors"
	if len(v.Issues) == 1 {
		noun = "error"
	}
	fmt.Fprintf(&b, "%d validation %s for %s", len(v.Issues), noun, v.Subject)
	for _, issue := range v.Issues {
		b.WriteString("\n  ")
		b.WriteString(issue.String())
	}
	return b.String()
}

const maxSegment = 255

// ValidatePathSegment checks that s can be used as a single file or
// directory name below a cache or wheelhouse root. what names the value in
// the error message.
func ValidatePathSegment(what, s string) error {
	switch {
	case s == "" || s == "." || s == "..":
		return New(ErrCodeInvalidInput, "invalid %s %q", what, s)
	case len(s) > maxSegment:
		return New(ErrCodeInvalidInput, "%s longer than %d bytes", what, maxSegment)
	case strings.ContainsAny(s, "/\\\x00"):
		return New(ErrCodeInvalidInput, "%s %q contains a path separator", what, s)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s %q contains control characters", what, s)
		}
	}
	return nil
}

// packageNameRe is the PEP 508 name grammar.
var packageNameRe = regexp.MustCompile(`(?i)^([a-z0-9]|[a-z0-9][a-z0-9._-]*[a-z0-9])$`)

// ValidatePackageName reports whether name is a valid distribution name. It
// does not require the name to be normalized.
func ValidatePackageName(name string) error {
	if len(name) > maxSegment || !packageNameRe.MatchString(name) {
		return New(ErrCodeInvalidPackage, "invalid package name %q", name)
	}
	return nil
}

// ValidateURL checks that rawURL uses a scheme pip accepts for an index.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(rawURL, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "URL %q must use http, https or file", rawURL)
}

// ValidateScenarioName checks a stored scenario name. Names become file
// names, and hidden files are reserved for temporaries.
func ValidateScenarioName(name string) error {
	if err := ValidatePathSegment("scenario name", name); err != nil {
		return err
	}
	if strings.HasPrefix(name, ".") {
		return New(ErrCodeInvalidInput, "invalid scenario name %q", name)
	}
	return nil
}
