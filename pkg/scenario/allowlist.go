package scenario

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/matzehuels/wheelbench/pkg/packaging"
)

// BadLine is an allow-list entry that is not a canonical package name.
type BadLine struct {
	Line int // 1-based
	Text string
}

// ParseAllowList reads newline-delimited canonical package names.
// Text after "#" is ignored, as are blank lines. Names that are not in
// canonical form are returned in bad and left out of names, which is sorted
// and de-duplicated.
func ParseAllowList(r io.Reader) (names []string, bad []BadLine, err error) {
	sc := bufio.NewScanner(r)
	for lineno := 1; sc.Scan(); lineno++ {
		text, _, _ := strings.Cut(sc.Text(), "#")
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if packaging.CanonicalizeName(text) != text {
			bad = append(bad, BadLine{Line: lineno, Text: text})
			continue
		}
		names = append(names, text)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	slices.Sort(names)
	return slices.Compact(names), bad, nil
}

// LoadAllowList reads an allow-list file. An empty path or a missing file
// yields an empty list.
func LoadAllowList(path string) ([]string, []BadLine, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return ParseAllowList(f)
}
