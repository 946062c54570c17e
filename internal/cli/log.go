// Package cli implements the wheelbench command-line interface.
//
// The commands cover the whole scenario lifecycle: crawl an index into a
// scenario, generate a wheelhouse from it, benchmark pip against the
// wheelhouse, and inspect or serve the results.
//
//   - crawl: harvest the dependency closure of requirements into a scenario
//   - generate: write the synthetic wheelhouse for a scenario
//   - benchmark: time pip resolving against a generated wheelhouse
//   - serve: expose a wheelhouse as a Simple API index over HTTP
//   - graph: export the package graph of a scenario as DOT or SVG
//   - list, validate, env: inspect scenarios and the target interpreter
//   - cache: manage the HTTP response and metadata caches
//
// # Logging
//
// Logs go to stderr through charmbracelet/log; results go to stdout.
// --verbose (-v) enables debug output and --log-format switches to json or
// logfmt for machine consumption. Loggers travel in the context, and
// long-running commands tag theirs with a short run id.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Log output formats accepted by --log-format.
const (
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatLogfmt = "logfmt"
)

// newLogger creates a text logger with "HH:MM:SS.ms" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// parseLogFormat maps a --log-format value to a formatter.
func parseLogFormat(name string) (log.Formatter, error) {
	switch strings.ToLower(name) {
	case "", LogFormatText:
		return log.TextFormatter, nil
	case LogFormatJSON:
		return log.JSONFormatter, nil
	case LogFormatLogfmt:
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q (want text, json or logfmt)", name)
	}
}

// withRun tags the context logger with a fresh run id so that the lines of
// one crawl or benchmark can be picked out of shared logs.
func withRun(ctx context.Context) (context.Context, *log.Logger, string) {
	id := uuid.NewString()[:8]
	logger := loggerFromContext(ctx).With("run", id)
	return withLogger(ctx, logger), logger, id
}

// progress logs completion of an operation with its elapsed time.
// Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs e.g. "Rendered 42 packages, 80 edges (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by withLogger, or
// log.Default() when there is none.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
