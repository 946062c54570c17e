package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Decode reads a scenario document and validates it.
// subject names the document in validation reports.
func Decode(r io.Reader, subject string) (*Scenario, error) {
	var s Scenario
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario %s: %w", subject, err)
	}
	if err := s.Validate(subject); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes s as indented JSON with a trailing newline. Map keys are
// emitted in sorted order, so equal scenarios encode identically.
func Encode(w io.Writer, s *Scenario) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(s)
}

// Marshal returns the encoded form of s.
func Marshal(s *Scenario) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadFile loads and validates a scenario document from path.
func ReadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, filepath.Base(path))
}

// inputDocument accepts either a bare ScenarioInput or a full scenario
// whose "input" block is reused.
type inputDocument struct {
	Input         *ScenarioInput `json:"input" yaml:"input"`
	ScenarioInput `yaml:",inline"`
}

// LoadInput reads crawl input from a JSON or YAML file (chosen by
// extension). The file may hold either a ScenarioInput or a complete
// scenario, in which case its input block is returned.
func LoadInput(path string) (*ScenarioInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc inputDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if doc.Input != nil {
		return doc.Input, nil
	}
	return &doc.ScenarioInput, nil
}
