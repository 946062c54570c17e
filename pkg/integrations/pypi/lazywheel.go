package pypi

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/matzehuels/wheelbench/pkg/integrations"
	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// rangeChunk is the minimum number of bytes fetched per range request. The
// tail of the file (zip central directory) is fetched up front.
const rangeChunk = 64 << 10

// errUnsupportedWheel marks a wheel whose layout does not allow reading
// its metadata.
var errUnsupportedWheel = errors.New("unsupported wheel")

// MetadataFromWheelURL returns the raw METADATA member of the remote wheel at
// url without downloading the whole file. It returns nil and no error when the
// wheel cannot be used: the server does not support range requests, or the
// archive does not hold exactly one top-level .dist-info directory matching
// project.
func (c *Client) MetadataFromWheelURL(ctx context.Context, project, url string) ([]byte, error) {
	res, err := c.Head(ctx, url)
	if err != nil {
		return nil, err
	}
	if !res.AcceptRanges || res.Size <= 0 {
		c.logger.Warn("server does not support range requests", "url", url)
		return nil, nil
	}

	r := &rangeReader{ctx: ctx, client: c.Client, url: url, size: res.Size}
	if err := r.prefetchTail(); err != nil {
		if errors.Is(err, integrations.ErrRangeUnsupported) {
			c.logger.Warn("server does not support range requests", "url", url)
			return nil, nil
		}
		return nil, err
	}

	zr, err := zip.NewReader(r, r.size)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("unreadable wheel", "url", url, "err", err)
		return nil, nil
	}
	data, err := readWheelMetadata(zr, project)
	if errors.Is(err, errUnsupportedWheel) || errors.Is(err, zip.ErrFormat) {
		c.logger.Warn("unsupported wheel", "url", url, "err", err)
		return nil, nil
	}
	return data, err
}

// readWheelMetadata locates <name>-<version>.dist-info/METADATA in zr.
func readWheelMetadata(zr *zip.Reader, project string) ([]byte, error) {
	var infoDirs []string
	seen := make(map[string]bool)
	for _, f := range zr.File {
		top, _, nested := strings.Cut(f.Name, "/")
		if !nested || !strings.HasSuffix(top, ".dist-info") || seen[top] {
			continue
		}
		seen[top] = true
		infoDirs = append(infoDirs, top)
	}
	if len(infoDirs) != 1 {
		return nil, fmt.Errorf("%w: expected one .dist-info directory, found %d", errUnsupportedWheel, len(infoDirs))
	}
	infoDir := infoDirs[0]
	name, _, _ := strings.Cut(strings.TrimSuffix(infoDir, ".dist-info"), "-")
	if packaging.CanonicalizeName(name) != packaging.CanonicalizeName(project) {
		return nil, fmt.Errorf("%w: %s does not match project %s", errUnsupportedWheel, infoDir, project)
	}

	f, err := zr.Open(path.Join(infoDir, "METADATA"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnsupportedWheel, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

type span struct {
	off  int64
	data []byte
}

// rangeReader is an io.ReaderAt over a remote file. Fetched spans are kept so
// repeated reads of the same region cost one request.
type rangeReader struct {
	ctx    context.Context
	client *integrations.Client
	url    string
	size   int64
	spans  []span
}

func (r *rangeReader) prefetchTail() error {
	n := min(r.size, rangeChunk)
	return r.fetch(r.size-n, n)
}

func (r *rangeReader) fetch(off, n int64) error {
	data, err := r.client.GetRange(r.ctx, r.url, off, n)
	if err != nil {
		return err
	}
	r.spans = append(r.spans, span{off: off, data: data})
	return nil
}

// ReadAt implements io.ReaderAt.
func (r *rangeReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= r.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), r.size-off)
	if !r.covered(off, want) {
		n := min(max(want, rangeChunk), r.size-off)
		if err := r.fetch(off, n); err != nil {
			return 0, err
		}
	}
	for _, s := range r.spans {
		if off >= s.off && off+want <= s.off+int64(len(s.data)) {
			copy(p, s.data[off-s.off:off-s.off+want])
			break
		}
	}
	if want < int64(len(p)) {
		return int(want), io.EOF
	}
	return int(want), nil
}

func (r *rangeReader) covered(off, n int64) bool {
	for _, s := range r.spans {
		if off >= s.off && off+n <= s.off+int64(len(s.data)) {
			return true
		}
	}
	return false
}
