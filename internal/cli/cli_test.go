package cli

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
	"github.com/matzehuels/wheelbench/pkg/serve"
	"github.com/matzehuels/wheelbench/pkg/wheelhouse"
)

func testScenario() *scenario.Scenario {
	s := scenario.New(scenario.ScenarioInput{
		Requirements: []string{"a[x]"},
		Environment:  scenario.EnvironmentDetails{Markers: map[string]string{}, Tags: []string{"py3-none-any"}},
	})
	s.Packages["a"] = scenario.Versions{
		"1.0": {DependsByExtra: map[string][]string{"": {"b>=1"}, "x": {"c"}}, RequiresPython: ">=3.8"},
		"2.0": {DependsByExtra: map[string][]string{"": {"b>=2"}}},
	}
	s.Packages["b"] = scenario.Versions{"1.0": {DependsByExtra: map[string][]string{}}}
	s.Packages["c"] = scenario.Versions{"2.0": {DependsByExtra: map[string][]string{}}}
	return s
}

// testCLI returns a CLI that logs nowhere, ignores the process environment
// and reads the given config file.
func testCLI(t *testing.T, configBody string) *CLI {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(configBody), 0o644); err != nil {
		t.Fatal(err)
	}
	c := New(io.Discard, LogInfo)
	c.getenv = func(string) string { return "" }
	c.configPath = path
	return c
}

func execute(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	// Registering the flags resets configPath.
	path := c.configPath
	root := c.RootCommand()
	root.SetArgs(append([]string{"--config", path}, args...))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestExecuteReadsConfigFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := testCLI(t, "cache_dir = '"+dir+"'\n")
	for range 2 {
		out := captureOutput(t, func() {
			if err := execute(t, c, "cache", "path"); err != nil {
				t.Fatal(err)
			}
		})
		if strings.TrimSpace(out) != dir {
			t.Fatalf("cache path = %q, want %q from the config file", out, dir)
		}
	}
}

func TestReportBadAllowList(t *testing.T) {
	if out := captureOutput(t, func() { reportBadAllowList("sdists.txt", nil) }); out != "" {
		t.Errorf("clean allow-list printed %q", out)
	}
	out := captureOutput(t, func() {
		reportBadAllowList("sdists.txt", []scenario.BadLine{{Line: 3, Text: "Foo"}})
	})
	if !strings.Contains(out, iconError) || !strings.Contains(out, "non-canonical names in sdists.txt") {
		t.Errorf("not reported as an error: %q", out)
	}
	if !strings.Contains(out, "line 3: Foo") {
		t.Errorf("offending line missing: %q", out)
	}
}

func TestNormalizeRequirements(t *testing.T) {
	got, err := normalizeRequirements([]string{"Foo [b,a] >= 1.0", "bar", "Foo[a,b]>=1.0"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Foo[a,b]>=1.0", "bar"}
	if !slices.Equal(got, want) {
		t.Errorf("normalizeRequirements = %v, want %v", got, want)
	}

	if _, err := normalizeRequirements(nil); !wberrors.Is(err, wberrors.ErrCodeInvalidInput) {
		t.Errorf("empty input error = %v, want INVALID_INPUT", err)
	}
	_, err = normalizeRequirements([]string{">=1.0"})
	if !wberrors.Is(err, wberrors.ErrCodeInvalidInput) || !errors.Is(err, packaging.ErrInvalidRequirement) {
		t.Errorf("invalid requirement error = %v", err)
	}
}

func TestBuildCrawlInput(t *testing.T) {
	dir := t.TempDir()
	reqs := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(reqs, []byte("# pinned\nrich>=13\n-r other.txt\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err := buildCrawlInput([]string{"typer"}, crawlOpts{from: reqs})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"typer", "rich>=13"}; !slices.Equal(in.Requirements, want) {
		t.Errorf("Requirements = %v, want %v", in.Requirements, want)
	}

	inputFile := filepath.Join(dir, "input.yaml")
	body := "requirements:\n  - requests\nenvironment:\n  markers: {}\n  tags: [py3-none-any]\n"
	if err := os.WriteFile(inputFile, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	in, err = buildCrawlInput(nil, crawlOpts{input: inputFile})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(in.Requirements, []string{"requests"}) || !slices.Equal(in.Environment.Tags, []string{"py3-none-any"}) {
		t.Errorf("input = %+v", in)
	}

	if _, err := buildCrawlInput([]string{"x"}, crawlOpts{input: inputFile}); !wberrors.Is(err, wberrors.ErrCodeInvalidInput) {
		t.Errorf("combined --input error = %v, want INVALID_INPUT", err)
	}
}

func TestGraphFormat(t *testing.T) {
	tests := []struct {
		format, output string
		want           string
		wantErr        bool
	}{
		{"", "", formatDOT, false},
		{"", "out.SVG", formatSVG, false},
		{"", "out.gv", formatDOT, false},
		{"SVG", "out.dot", formatSVG, false},
		{"png", "", "", true},
	}
	for _, tt := range tests {
		got, err := graphFormat(tt.format, tt.output)
		if (err != nil) != tt.wantErr {
			t.Errorf("graphFormat(%q, %q) error = %v", tt.format, tt.output, err)
			continue
		}
		if got != tt.want {
			t.Errorf("graphFormat(%q, %q) = %q, want %q", tt.format, tt.output, got, tt.want)
		}
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"ab/one.json", "ab/two.json", "cd/three.json"} {
		path := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := clearDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("clearDir removed %d files, want 3", n)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("%d entries left", len(entries))
	}

	if n, err := clearDir(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("clearDir(missing) = %d, %v", n, err)
	}
}

func TestLoadScenario(t *testing.T) {
	dir := t.TempDir()
	store := scenario.NewFileStore(filepath.Join(dir, "scenarios"))
	ctx := context.Background()
	if err := store.Save(ctx, "a-0.ignore", testScenario()); err != nil {
		t.Fatal(err)
	}

	s, name, err := loadScenario(ctx, store, "a-0.ignore")
	if err != nil || name != "a-0.ignore" || len(s.Packages) != 3 {
		t.Fatalf("by name: %v, %q, %v", s, name, err)
	}

	s, name, err = loadScenario(ctx, store, store.Path("a-0.ignore"))
	if err != nil || name != "a-0.ignore" || len(s.Packages) != 3 {
		t.Fatalf("by path: %v, %q, %v", s, name, err)
	}

	if _, _, err := loadScenario(ctx, store, "nope"); !wberrors.Is(err, wberrors.ErrCodeNotFound) {
		t.Errorf("missing scenario error = %v, want NOT_FOUND", err)
	}
}

func TestRenderScenarioTable(t *testing.T) {
	out := renderScenarioTable([]scenarioSummary{
		{Name: "requests-0.ignore", Requirements: []string{"requests"}, Packages: 5, Distributions: 80},
		{Name: "broken", Err: errors.New("bad")},
	}, 0, 0)
	for _, want := range []string{"requests-0.ignore", "80", "broken", "invalid", "▸"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func TestScenarioListModel(t *testing.T) {
	m := NewScenarioListModel([]scenarioSummary{{Name: "a"}, {Name: "b", Err: errors.New("bad")}, {Name: "c"}})
	m.Height = 2

	step := func(key string) {
		next, _ := m.Update(keyMsg(key))
		m = next.(ScenarioListModel)
	}
	step("down")
	step("enter")
	if m.Selected != "" {
		t.Errorf("selected invalid scenario %q", m.Selected)
	}
	step("down")
	if m.Offset != 1 {
		t.Errorf("Offset = %d, want 1", m.Offset)
	}
	step("enter")
	if m.Selected != "c" {
		t.Errorf("Selected = %q, want c", m.Selected)
	}
}

func TestCrawlProgressModel(t *testing.T) {
	m := newCrawlProgressModel()
	for _, msg := range []any{
		packageStartMsg{name: "requests", done: 3, total: 10},
		versionsGroupedMsg{versions: 12},
		metadataFetchedMsg{ok: true},
		metadataFetchedMsg{ok: false},
		packageFinishedMsg{},
	} {
		next, _ := m.Update(msg)
		m = next.(crawlProgressModel)
	}
	if m.current != "requests" || m.fetched != 1 || m.failed != 1 || m.finished != 1 {
		t.Errorf("model = %+v", m)
	}
	view := m.View()
	for _, want := range []string{"3/10", "requests", "12 versions", "1 unusable"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q: %q", want, view)
		}
	}

	if _, cmd := m.Update(logLineMsg{text: "WARN retrying"}); cmd == nil {
		t.Error("log lines should be printed above the view")
	}

	next, cmd := m.Update(crawlDoneMsg{})
	if cmd == nil || next.(crawlProgressModel).View() != "" {
		t.Error("crawlDoneMsg should quit and clear the view")
	}
}

func TestRenderBar(t *testing.T) {
	for _, tt := range []struct{ done, total, filled int }{
		{0, 0, 0},
		{5, 10, 4},
		{10, 10, 8},
		{12, 10, 8},
	} {
		bar := renderBar(tt.done, tt.total, 8)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderBar(%d, %d) filled %d, want %d", tt.done, tt.total, got, tt.filled)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 8 {
			t.Errorf("renderBar(%d, %d) width %d", tt.done, tt.total, got)
		}
	}
}

func TestGenerateProgress(t *testing.T) {
	g := newGenerateProgress(nil)
	ctx := context.Background()
	g.OnGenerateStart(ctx, 3)
	g.OnWheelWritten(ctx, "a", "1.0")
	g.OnWheelWritten(ctx, "a", "2.0")
	if g.written.Load() != 2 || g.total.Load() != 3 {
		t.Errorf("written=%d total=%d", g.written.Load(), g.total.Load())
	}
}

func TestCrawlCommand_AgainstServedWheelhouse(t *testing.T) {
	want := testScenario()
	house := filepath.Join(t.TempDir(), "wheelhouse")
	if _, err := wheelhouse.Populate(context.Background(), want, house, wheelhouse.Options{}); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(serve.NewRouter(house, serve.Options{}))
	defer srv.Close()

	work := t.TempDir()
	c := testCLI(t, "cache_dir = '"+filepath.Join(work, "cache")+"'\n"+
		"scenarios_dir = '"+filepath.Join(work, "scenarios")+"'\n"+
		"[rate_limit]\nrequests = 0\n")

	input := filepath.Join(work, "input.json")
	data, err := scenario.Marshal(want)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, c, "crawl", "--input", input, "--index-url", srv.URL+"/", "--no-progress", "--name", "served"); err != nil {
		t.Fatalf("crawl: %v", err)
	}

	got, err := scenario.ReadFile(filepath.Join(work, "scenarios", "served.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Packages, want.Packages) {
		t.Errorf("crawled packages = %+v\nwant %+v", got.Packages, want.Packages)
	}
	if !slices.Equal(got.Input.Environment.Tags, []string{"py3-none-any"}) {
		t.Errorf("environment not reused: %+v", got.Input.Environment)
	}

	// The crawled scenario generates a wheelhouse identical to the served one.
	out := filepath.Join(work, "regenerated")
	if err := execute(t, c, "generate", "served", "--output", out); err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, rel := range []string{"index.html", "a/index.html", "a/" + wheelhouse.Filename("a", "1.0")} {
		a, errA := os.ReadFile(filepath.Join(house, rel))
		b, errB := os.ReadFile(filepath.Join(out, rel))
		if errA != nil || errB != nil || string(a) != string(b) {
			t.Errorf("%s differs after regeneration (%v, %v)", rel, errA, errB)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	work := t.TempDir()
	c := testCLI(t, "scenarios_dir = '"+filepath.Join(work, "scenarios")+"'\n")

	bad := filepath.Join(work, "bad.json")
	body := `{"input": {"requirements": ["a"], "timestamp": "2024-01-02T03:04:05", "allow_sdists_for": [],
"environment": {"markers": {}, "tags": []}}, "packages": {"Not_Canonical": {"1.0": {"depends_by_extra": {}}}}}`
	if err := os.WriteFile(bad, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	err := execute(t, c, "validate", bad)
	if !wberrors.Is(err, wberrors.ErrCodeInvalidScenario) {
		t.Errorf("validate error = %v, want INVALID_SCENARIO", err)
	}

	good := filepath.Join(work, "good.json")
	data, _ := scenario.Marshal(testScenario())
	if err := os.WriteFile(good, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, c, "validate", good); err != nil {
		t.Errorf("validate good: %v", err)
	}
}

func TestFilterCompletions(t *testing.T) {
	names := []string{"black-0.ignore", "black-1.ignore", "requests-0.ignore"}
	got := filterCompletions(names, []string{"black-0.ignore"}, "bl")
	if !slices.Equal(got, []string{"black-1.ignore"}) {
		t.Errorf("filterCompletions = %v", got)
	}
	if got := filterCompletions(names, nil, "x"); len(got) != 0 {
		t.Errorf("filterCompletions(x) = %v", got)
	}
}

func TestCompleteScenarios(t *testing.T) {
	work := t.TempDir()
	c := testCLI(t, "scenarios_dir = '"+filepath.Join(work, "scenarios")+"'\n")
	store := scenario.NewFileStore(filepath.Join(work, "scenarios"))
	for _, name := range []string{"a-0.ignore", "a-1.ignore", "b-0.ignore"} {
		if err := store.Save(context.Background(), name, testScenario()); err != nil {
			t.Fatal(err)
		}
	}

	complete := c.completeScenarios(true)
	got, directive := complete(nil, nil, "a-")
	if !slices.Equal(got, []string{"a-0.ignore", "a-1.ignore"}) || directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("complete(a-) = %v, %v", got, directive)
	}
	if got, directive := complete(nil, nil, "./"); got != nil || directive != cobra.ShellCompDirectiveDefault {
		t.Errorf("complete(./) = %v, %v, want file completion", got, directive)
	}
	if got, _ := complete(nil, []string{"a-0.ignore"}, ""); got != nil {
		t.Errorf("second argument completed: %v", got)
	}
}
