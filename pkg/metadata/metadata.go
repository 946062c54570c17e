// Package metadata reads Python core metadata (the METADATA file of a
// wheel, or the "metadata" object of a pip installation report).
//
// Only the fields the crawler needs are kept. Parsing is lenient, like
// packaging's validate=False mode: unknown fields are ignored and the
// dependency fields are checked separately by [Metadata.Validate].
package metadata

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// ErrInvalidMetadata is returned when a metadata document cannot be read.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Metadata is the subset of core metadata used to build scenarios.
type Metadata struct {
	MetadataVersion string   `json:"metadata_version,omitempty"`
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	RequiresDist    []string `json:"requires_dist,omitempty"`
	RequiresPython  string   `json:"requires_python,omitempty"`
	ProvidesExtra   []string `json:"provides_extra,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// ParseEmail parses the RFC 822 style METADATA format.
// Repeated fields (Requires-Dist, Provides-Extra) keep their order.
func ParseEmail(text string) (*Metadata, error) {
	// A header block without a terminating blank line is still a complete document.
	msg, err := mail.ReadMessage(bufio.NewReader(strings.NewReader(text + "\n\n")))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	_, _ = io.Copy(io.Discard, msg.Body)

	h := msg.Header
	md := &Metadata{
		MetadataVersion: h.Get("Metadata-Version"),
		Name:            h.Get("Name"),
		Version:         h.Get("Version"),
		RequiresPython:  h.Get("Requires-Python"),
		Summary:         h.Get("Summary"),
		RequiresDist:    h["Requires-Dist"],
		ProvidesExtra:   h["Provides-Extra"],
	}
	return md, nil
}

// ParseRaw parses the JSON form of core metadata, as found under
// install[].metadata in a pip --report document.
func ParseRaw(data []byte) (*Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &md, nil
}

// Requirements parses every Requires-Dist entry.
func (m *Metadata) Requirements() ([]*packaging.Requirement, error) {
	reqs := make([]*packaging.Requirement, 0, len(m.RequiresDist))
	for _, s := range m.RequiresDist {
		r, err := packaging.ParseRequirement(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// Validate checks that the dependency list and the Requires-Python
// constraint parse. Metadata that fails is unusable for a scenario.
func (m *Metadata) Validate() error {
	if _, err := m.Requirements(); err != nil {
		return fmt.Errorf("%s %s: requires_dist: %w", m.Name, m.Version, err)
	}
	if _, err := packaging.ParseSpecifierSet(m.RequiresPython); err != nil {
		return fmt.Errorf("%s %s: requires_python: %w", m.Name, m.Version, err)
	}
	return nil
}
