package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/wheelbench/pkg/packaging"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a project or file doesn't exist on the index.
	ErrNotFound = errors.New("not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrRangeUnsupported is returned when a server answers a Range request
	// with the full body.
	ErrRangeUnsupported = errors.New("range requests not supported")
)

// StatusError is a non-successful HTTP status. It wraps [ErrNetwork].
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d %s", ErrNetwork, e.Code, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrNetwork }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// NewHTTPClient creates an HTTP client with a standard timeout for index requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NormalizePkgName converts a package name to its canonical PEP 503 form,
// ignoring surrounding whitespace.
func NormalizePkgName(name string) string {
	return packaging.CanonicalizeName(strings.TrimSpace(name))
}
