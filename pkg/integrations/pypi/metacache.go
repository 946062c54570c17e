package pypi

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/metadata"
	"github.com/matzehuels/wheelbench/pkg/observability"
)

const failureSuffix = ".fails"

// MetadataCache stores extracted core metadata on disk, one file per
// (project, version):
//
//	<root>/<project>/<version>-METADATA        email-format or JSON metadata
//	<root>/<project>/<version>-METADATA.fails  sdist build failure marker
//
// Entries never expire. The cache assumes a single writer.
// A nil *MetadataCache stores nothing.
type MetadataCache struct {
	root string
}

// NewMetadataCache returns a cache rooted at root.
func NewMetadataCache(root string) *MetadataCache {
	return &MetadataCache{root: root}
}

// Root returns the cache directory.
func (m *MetadataCache) Root() string {
	if m == nil {
		return ""
	}
	return m.root
}

// Path returns the cache file for project and version.
func (m *MetadataCache) Path(project, version string) string {
	return filepath.Join(m.root, project, version+"-METADATA")
}

// Load returns the cached metadata. found is false on a miss. Content
// starting with "{" is read as JSON, anything else as email headers.
func (m *MetadataCache) Load(ctx context.Context, project, version string) (md *metadata.Metadata, found bool, err error) {
	if m == nil {
		return nil, false, nil
	}
	if err := checkKey(project, version); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(m.Path(project, version))
	if errors.Is(err, fs.ErrNotExist) {
		observability.Cache().OnCacheMiss(ctx, "metadata")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	observability.Cache().OnCacheHit(ctx, "metadata")

	if strings.HasPrefix(string(data), "{") {
		md, err = metadata.ParseRaw(data)
	} else {
		md, err = metadata.ParseEmail(string(data))
	}
	return md, true, err
}

// Store writes data as the cache entry for project and version.
func (m *MetadataCache) Store(ctx context.Context, project, version string, data []byte) error {
	if m == nil {
		return nil
	}
	if err := checkKey(project, version); err != nil {
		return err
	}
	path := m.Path(project, version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "metadata", len(data))
	return nil
}

// Failed reports whether a build failure was recorded for project and version.
func (m *MetadataCache) Failed(project, version string) bool {
	if m == nil || checkKey(project, version) != nil {
		return false
	}
	_, err := os.Stat(m.Path(project, version) + failureSuffix)
	return err == nil
}

// MarkFailed records a build failure for project and version.
func (m *MetadataCache) MarkFailed(project, version string) error {
	if m == nil {
		return nil
	}
	if err := checkKey(project, version); err != nil {
		return err
	}
	path := m.Path(project, version) + failureSuffix
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, nil, 0o644)
}

// checkKey rejects keys that would escape the cache directory.
func checkKey(project, version string) error {
	if err := wberrors.ValidatePathSegment("project", project); err != nil {
		return err
	}
	return wberrors.ValidatePathSegment("version", version)
}
