// Package bench times an unmodified pip resolve against a generated
// wheelhouse.
//
// Each run is a `pip install --dry-run --ignore-installed` of the scenario's
// root requirements with the wheelhouse as the only index. Warmup runs
// populate pip's own caches and are reported separately.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

const (
	DefaultWarmups = 2
	DefaultRuns    = 5
)

// Stage names a phase of a benchmark.
type Stage string

const (
	StageWarmup Stage = "warmup"
	StageRun    Stage = "run"
)

// Options configures a Runner.
type Options struct {
	Python       string   // Interpreter whose pip is benchmarked (default: python3)
	Wheelhouse   string   // Directory produced by wheelhouse.Populate
	Name         string   // Scenario name, used for log file names
	Requirements []string // Root requirements to resolve
	LogDir       string   // Where pip --log files go (default: Wheelhouse's parent)
	Warmups      int      // Warmup runs (default: 2, negative: none)
	Runs         int      // Timed runs (default: 5)
	Stdout       io.Writer
	Stderr       io.Writer
	Logger       *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Warmups == 0 {
		opts.Warmups = DefaultWarmups
	}
	if opts.Warmups < 0 {
		opts.Warmups = 0
	}
	if opts.Runs <= 0 {
		opts.Runs = DefaultRuns
	}
	if opts.LogDir == "" {
		opts.LogDir = filepath.Dir(filepath.Clean(opts.Wheelhouse))
	}
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// RunError reports a resolver invocation that did not succeed. The
// benchmark stops at the first one.
type RunError struct {
	Stage Stage
	N     int
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Stage, e.N, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// ExitCode returns the resolver's exit status, or 1 when it did not exit
// normally.
func (e *RunError) ExitCode() int {
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}

// Result holds the wall-clock time of every run.
type Result struct {
	Warmups []time.Duration
	Runs    []time.Duration
}

// Runner executes a benchmark.
type Runner struct {
	opts Options
	exec func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

// NewRunner creates a Runner for opts.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts.WithDefaults(), exec: runCommand}
}

func runCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// IndexURL returns the file:// URL of the wheelhouse.
func (r *Runner) IndexURL() (string, error) {
	abs, err := filepath.Abs(r.opts.Wheelhouse)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Command returns the argv of run n of stage.
func (r *Runner) Command(stage Stage, n int) ([]string, error) {
	index, err := r.IndexURL()
	if err != nil {
		return nil, err
	}
	logFile := filepath.Join(r.opts.LogDir, fmt.Sprintf("%s[%s-%d].log", r.opts.Name, stage, n))
	args := []string{
		r.opts.Python, "-m", "pip", "install",
		"--index-url", index,
		"--disable-pip-version-check",
		"--dry-run",
		"--ignore-installed",
		"--log", logFile,
		"--quiet",
	}
	return append(args, r.opts.Requirements...), nil
}

// Run performs the warmups and then the timed runs. It stops at the first
// failing invocation and returns a *RunError together with the times
// collected so far.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if _, err := os.Stat(r.opts.Wheelhouse); err != nil {
		return nil, fmt.Errorf("wheelhouse: %w", err)
	}
	res := &Result{}
	var err error
	if res.Warmups, err = r.stage(ctx, StageWarmup, r.opts.Warmups); err != nil {
		return res, err
	}
	if len(res.Warmups) > 0 {
		r.opts.Logger.Info("warmups finished", "stats", Summarize(res.Warmups))
	}
	if res.Runs, err = r.stage(ctx, StageRun, r.opts.Runs); err != nil {
		return res, err
	}
	r.opts.Logger.Info("runs finished", "stats", Summarize(res.Runs))
	return res, nil
}

func (r *Runner) stage(ctx context.Context, stage Stage, count int) ([]time.Duration, error) {
	var times []time.Duration
	for n := 1; n <= count; n++ {
		args, err := r.Command(stage, n)
		if err != nil {
			return times, err
		}
		r.opts.Logger.Info(fmt.Sprintf("start %s %d of %d", stage, n, count))
		r.opts.Logger.Debug("command", "argv", args)

		start := time.Now()
		err = r.exec(ctx, args, r.opts.Stdout, r.opts.Stderr)
		elapsed := time.Since(start)
		r.opts.Logger.Info(fmt.Sprintf("finish %s %d", stage, n), "elapsed", elapsed)

		times = append(times, elapsed)
		if err != nil {
			if ctx.Err() != nil {
				return times, ctx.Err()
			}
			return times, &RunError{Stage: stage, N: n, Err: err}
		}
	}
	return times, nil
}
