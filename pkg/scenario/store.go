package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// Store persists scenarios by name.
type Store interface {
	// NextName returns an unused name for a crawl seeded by requirements.
	NextName(ctx context.Context, requirements []string) (string, error)
	Save(ctx context.Context, name string, s *Scenario) error
	Load(ctx context.Context, name string) (*Scenario, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// BaseName joins the names of the root requirements with "-", as used for
// output naming. Requirements that fail to parse contribute their raw text.
func BaseName(requirements []string) string {
	parts := make([]string, 0, len(requirements))
	for _, r := range requirements {
		if req, err := packaging.ParseRequirement(r); err == nil {
			parts = append(parts, req.Name)
		} else {
			parts = append(parts, r)
		}
	}
	return strings.Join(parts, "-")
}

// nextName tries "<base>-<n>.ignore" for n = 0, 1, ... and returns the
// first name for which exists reports false.
func nextName(requirements []string, exists func(string) (bool, error)) (string, error) {
	base := BaseName(requirements)
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s-%d.ignore", base, n)
		taken, err := exists(name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
	}
}

// FileStore keeps each scenario in <dir>/<name>.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the store directory.
func (st *FileStore) Dir() string { return st.dir }

// Path returns the file backing name.
func (st *FileStore) Path(name string) string {
	return filepath.Join(st.dir, name+".json")
}

// NextName implements Store.
func (st *FileStore) NextName(_ context.Context, requirements []string) (string, error) {
	return nextName(requirements, func(name string) (bool, error) {
		_, err := os.Stat(st.Path(name))
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return err == nil, err
	})
}

// Save implements Store.
func (st *FileStore) Save(_ context.Context, name string, s *Scenario) error {
	if err := wberrors.ValidateScenarioName(name); err != nil {
		return err
	}
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(st.Path(name), data, 0o644)
}

// Load implements Store.
func (st *FileStore) Load(_ context.Context, name string) (*Scenario, error) {
	if err := wberrors.ValidateScenarioName(name); err != nil {
		return nil, err
	}
	s, err := ReadFile(st.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, wberrors.New(wberrors.ErrCodeNotFound, "scenario %q not found in %s", name, st.dir)
	}
	return s, err
}

// List implements Store. Names are returned sorted.
func (st *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(st.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type()&os.ModeType != 0 {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close implements Store.
func (st *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
