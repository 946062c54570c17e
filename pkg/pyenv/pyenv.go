// Package pyenv inspects a Python interpreter: its PEP 508 marker
// environment and the ordered list of wheel tags it accepts.
//
// Crawls select one wheel per version for exactly this environment, and the
// snapshot is stored in the scenario so the benchmark can be checked
// against the interpreter it was crawled for.
package pyenv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// DefaultPython is the interpreter inspected when none is configured.
const DefaultPython = "python3"

// ErrInspectFailed is returned when the interpreter cannot report its
// environment.
var ErrInspectFailed = errors.New("python inspection failed")

// inspectScript prints the marker environment and sys_tags() as JSON. The
// packaging library vendored by pip is used when no standalone copy is
// installed.
const inspectScript = `
import json
try:
    from packaging.markers import default_environment
    from packaging.tags import sys_tags
except ImportError:
    from pip._vendor.packaging.markers import default_environment
    from pip._vendor.packaging.tags import sys_tags
print(json.dumps({"markers": default_environment(), "tags": [str(t) for t in sys_tags()]}))
`

// Environment is what an interpreter reported about itself.
type Environment struct {
	Python  string            `json:"-"`
	Markers map[string]string `json:"markers"`
	Tags    []string          `json:"tags"`
}

// Inspect runs python and returns its environment.
func Inspect(ctx context.Context, python string) (*Environment, error) {
	if python == "" {
		python = DefaultPython
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, python, "-c", inspectScript)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrInspectFailed, python, err, msg)
	}
	env, err := Parse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", python, err)
	}
	env.Python = python
	return env, nil
}

// Parse decodes the inspection output.
func Parse(data []byte) (*Environment, error) {
	var env Environment
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInspectFailed, err)
	}
	if len(env.Tags) == 0 {
		return nil, fmt.Errorf("%w: no supported tags reported", ErrInspectFailed)
	}
	if _, err := packaging.ParseSupportedTags(env.Tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInspectFailed, err)
	}
	return &env, nil
}

// FromDetails rebuilds an Environment from a stored scenario, so a scenario
// can be re-crawled without the original interpreter.
func FromDetails(d scenario.EnvironmentDetails) (*Environment, error) {
	env := &Environment{Markers: d.Markers, Tags: d.Tags}
	if len(env.Tags) == 0 {
		return nil, fmt.Errorf("%w: scenario records no supported tags", ErrInspectFailed)
	}
	if _, err := env.SupportedTags(); err != nil {
		return nil, err
	}
	return env, nil
}

// SupportedTags returns the tags in preference order, most specific first.
func (e *Environment) SupportedTags() (*packaging.SupportedTags, error) {
	return packaging.ParseSupportedTags(e.Tags)
}

// Details returns the snapshot stored in a scenario input.
func (e *Environment) Details() scenario.EnvironmentDetails {
	markers := e.Markers
	if markers == nil {
		markers = map[string]string{}
	}
	return scenario.EnvironmentDetails{Markers: markers, Tags: e.Tags}
}

// PythonVersion returns the "python_full_version" marker, or
// "python_version" when the full version is missing.
func (e *Environment) PythonVersion() string {
	if v := e.Markers["python_full_version"]; v != "" {
		return v
	}
	return e.Markers["python_version"]
}
