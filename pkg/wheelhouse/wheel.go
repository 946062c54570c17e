package wheelhouse

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// WheelMetadata is the content of every generated WHEEL member.
const WheelMetadata = "Wheel-Version: 1.0\n" +
	"Generator: pip-resolver-benchmark\n" +
	"Root-Is-Purelib: true\n" +
	"Tag: py2-none-any\n" +
	"Tag: py3-none-any\n"

// modTime is stamped on every zip entry. It is the earliest time a zip
// header can represent.
var modTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Member is one file inside a generated wheel.
type Member struct {
	Path    string
	Content string
}

// baseName returns "<name_>-<version_>" with dashes folded to underscores.
func baseName(name, version string) string {
	return strings.ReplaceAll(name, "-", "_") + "-" + strings.ReplaceAll(version, "-", "_")
}

// Filename returns the wheel filename for name and version.
func Filename(name, version string) string {
	return baseName(name, version) + "-py2.py3-none-any.whl"
}

// DistInfoDir returns the dist-info directory inside the wheel.
func DistInfoDir(name, version string) string {
	return baseName(name, version) + ".dist-info"
}

// Members returns the wheel members in archive order, RECORD last.
func Members(name, version string, info scenario.DistributionInfo) []Member {
	distInfo := DistInfoDir(name, version)
	members := []Member{
		{distInfo + "/METADATA", info.AsMetadata(name, version)},
		{distInfo + "/WHEEL", WheelMetadata},
		{distInfo + "/top_level.txt", name},
		{distInfo + "/entry_points.txt", ""},
	}
	return append(members, Member{distInfo + "/RECORD", Record(members, distInfo+"/RECORD")})
}

// Record renders a RECORD manifest for members. Each line is
// "path,size,sha256=<digest>"; the RECORD's own line is "path,,". Lines are
// joined by "\n" without a trailing newline.
func Record(members []Member, recordPath string) string {
	lines := make([]string, 0, len(members)+1)
	for _, m := range members {
		lines = append(lines, m.Path+","+strconv.Itoa(len(m.Content))+","+RecordHash([]byte(m.Content)))
	}
	lines = append(lines, recordPath+",,")
	return strings.Join(lines, "\n")
}

// RecordHash returns "sha256=" followed by the unpadded url-safe base64 digest of data.
func RecordHash(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256=" + base64.RawURLEncoding.EncodeToString(sum[:])
}

// BuildWheel returns the bytes of the wheel archive for one distribution.
// Entries are stored uncompressed with a fixed timestamp.
func BuildWheel(name, version string, info scenario.DistributionInfo) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range Members(name, version, info) {
		hdr := &zip.FileHeader{
			Name:     m.Path,
			Method:   zip.Store,
			Modified: modTime,
		}
		hdr.SetMode(0o644)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(m.Content)); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWheel builds the wheel for name and version into dir/<name>/ and
// returns its filename.
func WriteWheel(dir, name, version string, info scenario.DistributionInfo) (string, error) {
	data, err := BuildWheel(name, version, info)
	if err != nil {
		return "", err
	}
	filename := Filename(name, version)
	pkgDir := filepath.Join(dir, name)
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(pkgDir, filename), data, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}
