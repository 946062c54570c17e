package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/pyenv"
)

type envOpts struct {
	python string
	tags   int
	format string
}

// envCommand creates the env command.
func (c *CLI) envCommand() *cobra.Command {
	var opts envOpts

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the marker environment and wheel tags of an interpreter",
		Long: `Env inspects the target interpreter the same way crawl does and prints the
marker environment and the supported wheel tags, most specific first.

With --format json or yaml the output is an environment block that can be
pasted into a crawl input file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEnv(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.python, "python", "", "interpreter to inspect (default from config: python3)")
	cmd.Flags().IntVar(&opts.tags, "tags", 10, "number of tags to show in text output (0: all)")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text, json or yaml")
	_ = cmd.RegisterFlagCompletionFunc("format", fixedCompletions("text", "json", "yaml"))

	return cmd
}

func (c *CLI) runEnv(ctx context.Context, opts envOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.python != "" {
		cfg.Python = opts.python
	}

	env, err := pyenv.Inspect(ctx, cfg.Python)
	if err != nil {
		return wberrors.Wrap(wberrors.ErrCodeInspectFailed, err, "inspect %s", cfg.Python)
	}

	doc := map[string]any{"environment": env.Details()}
	switch strings.ToLower(opts.format) {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(doc)
	case "text":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
	}

	printKeyValue("python", cfg.Python)
	if v := env.PythonVersion(); v != "" {
		printKeyValue("version", v)
	}
	printNewline()
	printSection("Markers")
	for _, k := range slices.Sorted(maps.Keys(env.Markers)) {
		printDetail("%-30s %s", k, env.Markers[k])
	}
	printNewline()
	printSection(fmt.Sprintf("Tags (%d)", len(env.Tags)))
	shown := env.Tags
	if opts.tags > 0 && len(shown) > opts.tags {
		shown = shown[:opts.tags]
	}
	for _, t := range shown {
		printDetail("%s", t)
	}
	if len(shown) < len(env.Tags) {
		printDetail("… %d more, use --tags 0 to show all", len(env.Tags)-len(shown))
	}
	return nil
}
