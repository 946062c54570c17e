package deps

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/metadata"
	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

type fakeVersion struct {
	version string
	md      *metadata.Metadata
	err     error
}

type fakeIndex struct {
	packages map[string][]fakeVersion
	listErr  map[string]error
	listed   map[string]int
	sdist    map[string]bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		packages: make(map[string][]fakeVersion),
		listErr:  make(map[string]error),
		listed:   make(map[string]int),
		sdist:    make(map[string]bool),
	}
}

func (f *fakeIndex) add(name, version string, requires ...string) {
	f.packages[name] = append(f.packages[name], fakeVersion{
		version: version,
		md:      &metadata.Metadata{Name: name, Version: version, RequiresDist: requires},
	})
}

func (f *fakeIndex) FetchAllDistsByVersion(ctx context.Context, project string, sdistPermitted bool) ([]pypi.VersionDists, error) {
	f.listed[project]++
	f.sdist[project] = sdistPermitted
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := f.listErr[project]; err != nil {
		return nil, err
	}
	var out []pypi.VersionDists
	for _, v := range f.packages[project] {
		out = append(out, pypi.VersionDists{Version: v.version})
	}
	return out, nil
}

func (f *fakeIndex) FetchBestCandidateMetadata(ctx context.Context, project, version string, _ []pypi.DistDetail) (*metadata.Metadata, error) {
	for _, v := range f.packages[project] {
		if v.version == version {
			return v.md, v.err
		}
	}
	return nil, nil
}

type recordingHooks struct {
	observability.NoopCrawlHooks
	started  []string
	fetched  int
	finished int
}

func (h *recordingHooks) OnPackageStart(_ context.Context, name string, done, total int) {
	h.started = append(h.started, fmt.Sprintf("%s %d/%d", name, done, total))
}

func (h *recordingHooks) OnMetadataFetched(context.Context, string, string, bool) { h.fetched++ }

func (h *recordingHooks) OnPackageFinished(context.Context, string, int, time.Duration) {
	h.finished++
}

func record(t *testing.T) *recordingHooks {
	t.Helper()
	h := &recordingHooks{}
	observability.SetCrawlHooks(h)
	t.Cleanup(observability.Reset)
	return h
}

func crawl(t *testing.T, idx Index, input scenario.ScenarioInput) *scenario.Scenario {
	t.Helper()
	s, err := NewCrawler(idx, Options{}).Crawl(context.Background(), input)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	return s
}

func TestCrawl_ExtraConsumedWithRoot(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "b>=1", `c; extra == "x"`)
	idx.add("b", "1.0")
	idx.add("c", "2.0")
	hooks := record(t)

	s := crawl(t, idx, scenario.ScenarioInput{Requirements: []string{"a[x]"}})

	if got := s.PackageNames(); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("packages = %v, want [a b c]", got)
	}
	want := map[string][]string{"": {"b>=1"}, "x": {"c"}}
	if got := s.Packages["a"]["1.0"].DependsByExtra; !reflect.DeepEqual(got, want) {
		t.Errorf("a 1.0 depends_by_extra = %v, want %v", got, want)
	}
	wantStarts := []string{"a 0/1", "b 1/3", "c 2/3"}
	if !slices.Equal(hooks.started, wantStarts) {
		t.Errorf("dequeues = %v, want %v", hooks.started, wantStarts)
	}
	if hooks.finished != 3 || hooks.fetched != 3 {
		t.Errorf("finished = %d, fetched = %d, want 3 and 3", hooks.finished, hooks.fetched)
	}
}

func TestCrawl_FetchesPackageOnce(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "B[Y]")
	idx.add("b", "1.0", `d; extra == "y"`, `e; extra == "z"`)
	idx.add("b", "2.0", `d>=2; extra == "y"`)
	idx.add("d", "1.0")
	hooks := record(t)

	s := crawl(t, idx, scenario.ScenarioInput{Requirements: []string{"a", "b"}})

	if got := s.PackageNames(); !slices.Equal(got, []string{"a", "b", "d"}) {
		t.Fatalf("packages = %v, want [a b d]", got)
	}
	for name, n := range idx.listed {
		if n != 1 {
			t.Errorf("%s listed %d times, want 1", name, n)
		}
	}
	// a, b(""), b(y), d: the "y" visit of b reuses the first fetch.
	if len(hooks.started) != 4 {
		t.Errorf("dequeues = %v, want 4", hooks.started)
	}
}

func TestCrawl_RepeatedExtraNotRevisited(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "c[x]")
	idx.add("b", "1.0", "c[x]", "c")
	idx.add("c", "1.0", `d; extra == "x"`)
	idx.add("d", "1.0", "a")
	hooks := record(t)

	crawl(t, idx, scenario.ScenarioInput{Requirements: []string{"a", "b"}})

	if len(hooks.started) != 4 {
		t.Errorf("dequeues = %v, want one per package", hooks.started)
	}
}

func TestCrawl_SdistFailureDropsVersion(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0")
	idx.packages["a"] = append(idx.packages["a"], fakeVersion{
		version: "2.0",
		err:     fmt.Errorf("%w: build backend exploded", pypi.ErrSdistFailure),
	})
	idx.packages["a"] = append(idx.packages["a"], fakeVersion{version: "3.0"}) // no usable file

	s := crawl(t, idx, scenario.ScenarioInput{
		Requirements:   []string{"a"},
		AllowSdistsFor: []string{"a"},
	})

	if got := s.Packages["a"].Sorted(); !slices.Equal(got, []string{"1.0"}) {
		t.Errorf("versions = %v, want [1.0]", got)
	}
	if !idx.sdist["a"] {
		t.Error("sdists should be permitted for allow-listed package")
	}
}

func TestCrawl_IndexFailureDegrades(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "b")
	idx.listErr["b"] = errors.New("connection reset")

	s := crawl(t, idx, scenario.ScenarioInput{Requirements: []string{"a"}})

	versions, ok := s.Packages["b"]
	if !ok || len(versions) != 0 {
		t.Fatalf("b = %v (present %v), want empty", versions, ok)
	}
	if issues := s.CheckForIssues(); len(issues) != 1 {
		t.Errorf("CheckForIssues() = %v, want one issue", issues)
	}
}

func TestCrawl_Cancelled(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCrawler(idx, Options{}).Crawl(ctx, scenario.ScenarioInput{Requirements: []string{"a"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Crawl error = %v, want context.Canceled", err)
	}
}

func TestCrawl_InvalidRoot(t *testing.T) {
	_, err := NewCrawler(newFakeIndex(), Options{}).Crawl(context.Background(), scenario.ScenarioInput{Requirements: []string{">=1"}})
	if !errors.Is(err, packaging.ErrInvalidRequirement) {
		t.Errorf("Crawl error = %v, want ErrInvalidRequirement", err)
	}
}

func TestCrawl_MaxPackages(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "b", "c")
	idx.add("b", "1.0")
	idx.add("c", "1.0")

	_, err := NewCrawler(idx, Options{MaxPackages: 2}).Crawl(context.Background(), scenario.ScenarioInput{Requirements: []string{"a"}})
	if !errors.Is(err, ErrTooManyPackages) {
		t.Errorf("Crawl error = %v, want ErrTooManyPackages", err)
	}
}

func TestFetchOnePackage_InvalidMetadataSkipped(t *testing.T) {
	idx := newFakeIndex()
	idx.add("a", "1.0", "b >= bogus")
	idx.add("a", "2.0", "b")

	versions, err := FetchOnePackage(context.Background(), idx, "a", false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := versions.Sorted(); !slices.Equal(got, []string{"2.0"}) {
		t.Errorf("versions = %v, want [2.0]", got)
	}
}

func TestExtraFromMarker(t *testing.T) {
	tests := []struct {
		req  string
		want string
	}{
		{"c", ""},
		{`c; extra == "x"`, "x"},
		{`c; "X_Y" == extra`, "x-y"},
		{`c; python_version < "3.8" and extra == 'test'`, "test"},
		{`c; extra == "a" or extra == "b"`, ""},
		{`c; python_version < "3.8"`, ""},
		{`c; extra != "x"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			req, err := packaging.ParseRequirement(tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got := ExtraFromMarker(req.Marker); got != tt.want {
				t.Errorf("ExtraFromMarker(%q) = %q, want %q", tt.req, got, tt.want)
			}
		})
	}
}

func TestExtractDistributionInfo(t *testing.T) {
	md := &metadata.Metadata{
		Name:    "a",
		Version: "1.0",
		RequiresDist: []string{
			"b>=1",
			"c ; extra == 'x'",
			`d[y] (>=2) ; extra == "X" and python_version >= "3"`,
			`e; sys_platform == "win32"`,
		},
		RequiresPython: ">=3.8",
	}
	info, err := ExtractDistributionInfo(md)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"":  {"b>=1", "e"},
		"x": {"c", "d[y]>=2"},
	}
	if !reflect.DeepEqual(info.DependsByExtra, want) {
		t.Errorf("DependsByExtra = %v, want %v", info.DependsByExtra, want)
	}
	if info.RequiresPython != ">=3.8" {
		t.Errorf("RequiresPython = %q", info.RequiresPython)
	}

	empty, err := ExtractDistributionInfo(&metadata.Metadata{Name: "z", Version: "1"})
	if err != nil {
		t.Fatal(err)
	}
	if empty.DependsByExtra == nil || len(empty.DependsByExtra) != 0 {
		t.Errorf("DependsByExtra = %#v, want empty non-nil map", empty.DependsByExtra)
	}

	if _, err := ExtractDistributionInfo(&metadata.Metadata{RequiresDist: []string{"[bad"}}); err == nil {
		t.Error("expected error for unparsable Requires-Dist")
	}
}
