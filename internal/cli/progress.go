package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"

	"github.com/matzehuels/wheelbench/pkg/observability"
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// =============================================================================
// Crawl progress view
// =============================================================================

type (
	packageStartMsg struct {
		name        string
		done, total int
	}
	filesListedMsg     struct{ files int }
	versionsGroupedMsg struct{ versions int }
	metadataFetchedMsg struct{ ok bool }
	packageFinishedMsg struct{}
	crawlDoneMsg       struct{}
	logLineMsg         struct{ text string }
	progressTickMsg    time.Time
)

const progressBarWidth = 24

// crawlProgressModel is the bubbletea model behind the live crawl view.
type crawlProgressModel struct {
	current     string
	done, total int
	files       int
	versions    int
	fetched     int
	failed      int
	finished    int
	frame       int
	start       time.Time
	quitting    bool
}

func newCrawlProgressModel() crawlProgressModel {
	return crawlProgressModel{start: time.Now()}
}

func progressTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return progressTickMsg(t) })
}

func (m crawlProgressModel) Init() tea.Cmd {
	return progressTick()
}

func (m crawlProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case packageStartMsg:
		m.current = msg.name
		m.done, m.total = msg.done, msg.total
		m.files, m.versions = 0, 0
	case filesListedMsg:
		m.files = msg.files
	case versionsGroupedMsg:
		m.versions = msg.versions
	case metadataFetchedMsg:
		if msg.ok {
			m.fetched++
		} else {
			m.failed++
		}
	case packageFinishedMsg:
		m.finished++
	case progressTickMsg:
		m.frame++
		return m, progressTick()
	case logLineMsg:
		return m, tea.Println(msg.text)
	case crawlDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m crawlProgressModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(styleIconSpinner.Render(spinnerFrames[m.frame%len(spinnerFrames)]))
	b.WriteString(" ")
	b.WriteString(renderBar(m.done, m.total, progressBarWidth))
	b.WriteString(" ")
	b.WriteString(StyleNumber.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	if m.current != "" {
		b.WriteString(" ")
		b.WriteString(StyleHighlight.Render(m.current))
		if m.versions > 0 {
			b.WriteString(StyleDim.Render(fmt.Sprintf(" (%d versions)", m.versions)))
		} else if m.files > 0 {
			b.WriteString(StyleDim.Render(fmt.Sprintf(" (%d files)", m.files)))
		}
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("  metadata %d", m.fetched)))
	if m.failed > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf(" / %d unusable", m.failed)))
	}
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %s", time.Since(m.start).Round(time.Second))))
	return b.String()
}

// renderBar draws a fixed-width bar for done out of total.
func renderBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	filled = min(max(filled, 0), width)
	return lipgloss.NewStyle().Foreground(colorCyan).Render(strings.Repeat("█", filled)) +
		StyleDim.Render(strings.Repeat("░", width-filled))
}

// crawlProgress feeds crawl events into a running bubbletea program.
type crawlProgress struct {
	program  *tea.Program
	finished chan struct{}
}

// startCrawlProgress runs the progress view on w until Stop is called or
// ctx ends. The program reads no input and leaves signals to the caller.
func startCrawlProgress(ctx context.Context, w io.Writer) *crawlProgress {
	p := tea.NewProgram(newCrawlProgressModel(),
		tea.WithContext(ctx),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	cp := &crawlProgress{program: p, finished: make(chan struct{})}
	go func() {
		defer close(cp.finished)
		_, _ = p.Run()
	}()
	return cp
}

// Stop ends the view and waits for the terminal to be restored.
func (cp *crawlProgress) Stop() {
	cp.program.Send(crawlDoneMsg{})
	<-cp.finished
}

// Writer returns a writer that prints complete lines above the view, so log
// output does not tear the progress line.
func (cp *crawlProgress) Writer() io.Writer {
	return programWriter{cp.program}
}

func (cp *crawlProgress) OnPackageStart(_ context.Context, name string, done, total int) {
	cp.program.Send(packageStartMsg{name: name, done: done, total: total})
}

func (cp *crawlProgress) OnFilesListed(_ context.Context, _ string, files int) {
	cp.program.Send(filesListedMsg{files: files})
}

func (cp *crawlProgress) OnVersionsGrouped(_ context.Context, _ string, versions int) {
	cp.program.Send(versionsGroupedMsg{versions: versions})
}

func (cp *crawlProgress) OnMetadataFetched(_ context.Context, _, _ string, ok bool) {
	cp.program.Send(metadataFetchedMsg{ok: ok})
}

func (cp *crawlProgress) OnPackageFinished(context.Context, string, int, time.Duration) {
	cp.program.Send(packageFinishedMsg{})
}

var _ observability.CrawlHooks = (*crawlProgress)(nil)

// programWriter hands log lines to the program. Send drops them once the
// program has exited, so writes never block.
type programWriter struct{ p *tea.Program }

func (w programWriter) Write(b []byte) (int, error) {
	w.p.Send(logLineMsg{text: strings.TrimRight(string(b), "\n")})
	return len(b), nil
}

// =============================================================================
// Plain progress
// =============================================================================

// logCrawlHooks reports crawl progress as log lines, for when stderr is not
// a terminal or --no-progress is given.
type logCrawlHooks struct {
	observability.NoopCrawlHooks
	logger *log.Logger
}

func (h logCrawlHooks) OnPackageStart(_ context.Context, name string, done, total int) {
	h.logger.Infof("[%d/%d] %s", done+1, total, name)
}

func (h logCrawlHooks) OnMetadataFetched(_ context.Context, name, version string, ok bool) {
	if !ok {
		h.logger.Debug("no usable metadata", "package", name, "version", version)
	}
}

func (h logCrawlHooks) OnPackageFinished(_ context.Context, name string, versions int, d time.Duration) {
	h.logger.Debug("package done", "package", name, "versions", versions, "took", d.Round(time.Millisecond))
}

// =============================================================================
// Generate progress
// =============================================================================

// generateProgress counts written wheels into a spinner message. Wheels are
// written from several goroutines.
type generateProgress struct {
	spinner *Spinner
	total   atomic.Int64
	written atomic.Int64
}

func newGenerateProgress(s *Spinner) *generateProgress {
	return &generateProgress{spinner: s}
}

func (g *generateProgress) OnGenerateStart(_ context.Context, distributions int) {
	g.total.Store(int64(distributions))
	g.update()
}

func (g *generateProgress) OnWheelWritten(context.Context, string, string) {
	g.written.Add(1)
	g.update()
}

func (g *generateProgress) OnGenerateComplete(context.Context, time.Duration, error) {}

func (g *generateProgress) update() {
	if g.spinner == nil {
		return
	}
	g.spinner.SetMessage(fmt.Sprintf("Writing wheels %d/%d", g.written.Load(), g.total.Load()))
}

var _ observability.GenerateHooks = (*generateProgress)(nil)
