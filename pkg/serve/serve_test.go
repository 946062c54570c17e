package serve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/wheelbench/pkg/deps"
	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
	"github.com/matzehuels/wheelbench/pkg/wheelhouse"
)

func testScenario() *scenario.Scenario {
	s := scenario.New(scenario.ScenarioInput{Requirements: []string{"a[x]"}})
	s.Packages["a"] = scenario.Versions{
		"1.0": {DependsByExtra: map[string][]string{"": {"b>=1"}, "x": {"c"}}, RequiresPython: ">=3.8"},
		"2.0": {DependsByExtra: map[string][]string{"": {"b>=2"}}},
	}
	s.Packages["b"] = scenario.Versions{
		"1.0": {DependsByExtra: map[string][]string{}},
		"2.0": {DependsByExtra: map[string][]string{}},
	}
	s.Packages["c"] = scenario.Versions{"2.0": {DependsByExtra: map[string][]string{}}}
	return s
}

func populate(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "wheelhouse")
	if _, err := wheelhouse.Populate(context.Background(), testScenario(), dir, wheelhouse.Options{}); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return dir
}

func get(h http.Handler, path, accept string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoot(t *testing.T) {
	dir := populate(t)
	h := NewRouter(dir, Options{})

	rec := get(h, "/", "text/html")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want, _ := os.ReadFile(filepath.Join(dir, "index.html"))
	if rec.Body.String() != string(want) {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}

	rec = get(h, "/", pypi.ContentTypeJSON)
	var doc struct {
		Projects []struct{ Name string } `json:"projects"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Projects) != 3 || doc.Projects[0].Name != "a" {
		t.Errorf("projects = %+v", doc.Projects)
	}
}

func TestProjectPage(t *testing.T) {
	h := NewRouter(populate(t), Options{})

	rec := get(h, "/a/", "application/vnd.pypi.simple.v1+json, application/vnd.pypi.simple.v1+html;q=0.2, text/html;q=0.01")
	if ct := rec.Header().Get("Content-Type"); ct != pypi.ContentTypeJSON {
		t.Fatalf("Content-Type = %q", ct)
	}
	files, err := pypi.ParseProjectPage(rec.Body.Bytes(), rec.Header().Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	want := []pypi.ProjectFile{
		{Filename: "a-1.0-py2.py3-none-any.whl", URL: "a-1.0-py2.py3-none-any.whl"},
		{Filename: "a-2.0-py2.py3-none-any.whl", URL: "a-2.0-py2.py3-none-any.whl"},
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("files = %+v, want %+v", files, want)
	}
	if !strings.Contains(rec.Body.String(), `"sha256"`) {
		t.Error("JSON page should carry sha256 hashes")
	}

	rec = get(h, "/a/", "text/html")
	files, err = pypi.ParseProjectPage(rec.Body.Bytes(), rec.Header().Get("Content-Type"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("HTML files = %+v, want %+v", files, want)
	}
}

func TestRedirectsAndMissing(t *testing.T) {
	h := NewRouter(populate(t), Options{})

	tests := []struct {
		path     string
		code     int
		location string
	}{
		{"/a", http.StatusMovedPermanently, "/a/"},
		{"/A/", http.StatusMovedPermanently, "/a/"},
		{"/missing/", http.StatusNotFound, ""},
		{"/a/missing.whl", http.StatusNotFound, ""},
		{"/a/.hidden", http.StatusNotFound, ""},
		{"/not@valid/", http.StatusNotFound, ""},
		{"/-a-/" + wheelhouse.Filename("a", "1.0"), http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(h, tt.path, "")
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if loc := rec.Header().Get("Location"); loc != tt.location {
				t.Errorf("Location = %q, want %q", loc, tt.location)
			}
		})
	}
}

func TestWheelRange(t *testing.T) {
	dir := populate(t)
	h := NewRouter(dir, Options{})
	path := "/a/" + wheelhouse.Filename("a", "1.0")

	rec := get(h, path, "", "Range", "bytes=0-3")
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if rec.Body.String() != "PK\x03\x04" {
		t.Errorf("body = %q, want zip signature", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodHead, path, nil)
	head := httptest.NewRecorder()
	h.ServeHTTP(head, req)
	if head.Code != http.StatusOK || head.Header().Get("Accept-Ranges") != "bytes" {
		t.Errorf("HEAD status = %d, Accept-Ranges = %q", head.Code, head.Header().Get("Accept-Ranges"))
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"text/html", false},
		{"*/*", false},
		{pypi.ContentTypeJSON, true},
		{"application/vnd.pypi.simple.v1+json, text/html;q=0.01", true},
		{"application/vnd.pypi.simple.v1+json;q=0.1, text/html", false},
		{"application/vnd.pypi.simple.v1+json;q=0", false},
	}
	for _, tt := range tests {
		if got := wantsJSON(tt.accept); got != tt.want {
			t.Errorf("wantsJSON(%q) = %v, want %v", tt.accept, got, tt.want)
		}
	}
}

// A served wheelhouse crawled back through the index client reproduces
// the scenario it was generated from.
func TestCrawlServedWheelhouse(t *testing.T) {
	srv := httptest.NewServer(NewRouter(populate(t), Options{}))
	defer srv.Close()

	tags, err := packaging.ParseSupportedTags([]string{"py3-none-any"})
	if err != nil {
		t.Fatal(err)
	}
	client, err := pypi.NewClient(pypi.Options{
		IndexURL:    srv.URL + "/",
		Tags:        tags,
		MetadataDir: t.TempDir(),
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	want := testScenario()
	got, err := deps.NewCrawler(client, deps.Options{}).Crawl(context.Background(), want.Input)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Packages, want.Packages) {
		t.Errorf("crawled packages = %+v\nwant %+v", got.Packages, want.Packages)
	}
}
