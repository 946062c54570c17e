package pypi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrSdistFailure reports that metadata could not be produced from a source
// distribution. The crawler skips the affected version.
var ErrSdistFailure = errors.New("sdist failure")

// SdistBuilder produces core metadata for a source distribution.
//
// Implementations run the project's build backend, which is arbitrary
// third-party code; isolation is the implementation's concern.
type SdistBuilder interface {
	// BuildMetadata returns the JSON core metadata of the sdist at url.
	BuildMetadata(ctx context.Context, url string) (json.RawMessage, error)
}

// PipReportBuilder builds metadata by running
//
//	python -m pip install --dry-run --report <file> --no-deps --ignore-installed <url>
//
// and reading install[0].metadata from the report.
type PipReportBuilder struct {
	Python  string // interpreter, e.g. "python3"
	TempDir string // where report files go; empty means os.TempDir()
	Logger  *log.Logger
}

// NewPipReportBuilder returns a builder that runs pip under python.
func NewPipReportBuilder(python string, logger *log.Logger) *PipReportBuilder {
	return &PipReportBuilder{Python: python, Logger: logger}
}

type pipReport struct {
	Install []struct {
		Metadata json.RawMessage `json:"metadata"`
	} `json:"install"`
}

// BuildMetadata implements SdistBuilder.
func (b *PipReportBuilder) BuildMetadata(ctx context.Context, url string) (json.RawMessage, error) {
	dir := b.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	reportPath := filepath.Join(dir, "wheelbench-report-"+uuid.NewString()+".json")
	defer os.Remove(reportPath)

	cmd := exec.CommandContext(ctx, b.Python,
		"-m", "pip", "install",
		"--dry-run",
		"--report", reportPath,
		"--no-deps",
		"--ignore-installed",
		url,
	)
	cmd.Env = append(os.Environ(), "PIP_DISABLE_PIP_VERSION_CHECK=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	if b.Logger != nil {
		b.Logger.Info("pip: fetch metadata", "file", filepath.Base(url))
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if b.Logger != nil {
			b.Logger.Warn("pip failed", "url", url, "err", err)
			b.Logger.Debug("pip output", "stdout", stdout.String(), "stderr", stderr.String())
		}
		return nil, fmt.Errorf("%w: pip: %v", ErrSdistFailure, err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read report: %v", ErrSdistFailure, err)
	}
	var report pipReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: decode report: %v", ErrSdistFailure, err)
	}
	if len(report.Install) == 0 || len(report.Install[0].Metadata) == 0 {
		return nil, fmt.Errorf("%w: report lists nothing to install", ErrSdistFailure)
	}
	return report.Install[0].Metadata, nil
}
