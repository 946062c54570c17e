package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

type graphOpts struct {
	format string
	output string
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOpts

	cmd := &cobra.Command{
		Use:   "graph <scenario>",
		Short: "Export the package graph of a scenario",
		Long: `Graph writes the package-level dependency graph of a scenario, merged
across versions, as Graphviz DOT or rendered SVG. Root packages are
highlighted and edges that only exist through an extra are dashed.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeScenarios(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: dot or svg (default: from --output extension, else dot)")
	_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletions(formatDOT, formatSVG))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, ref string, opts graphOpts) error {
	format, err := graphFormat(opts.format, opts.output)
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s, _, err := loadScenario(ctx, store, ref)
	if err != nil {
		return err
	}

	prog := newProgress(loggerFromContext(ctx))
	dot := s.ToDOT()
	data := []byte(dot)
	if format == formatSVG {
		if data, err = scenario.RenderSVG(ctx, dot); err != nil {
			return err
		}
	}

	if opts.output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d packages, %d edges", len(s.Packages), len(s.Edges())))
	printFile(opts.output)
	return nil
}

// graphFormat picks the output format from the flag or the file extension.
func graphFormat(format, output string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(output), ".svg") {
			return formatSVG, nil
		}
		return formatDOT, nil
	}
	switch f := strings.ToLower(format); f {
	case formatDOT, formatSVG:
		return f, nil
	default:
		return "", wberrors.New(wberrors.ErrCodeInvalidInput, "unknown graph format %q (want dot or svg)", format)
	}
}
