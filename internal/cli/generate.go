package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/wheelhouse"
)

type generateOpts struct {
	outputDir string
	workers   int
}

// generateCommand creates the generate command.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate <scenario>",
		Short: "Write the synthetic wheelhouse for a scenario",
		Long: `Generate writes one wheel per package version of a scenario, with a
listing page per package and a root listing, so pip can use the directory
as a --index-url. An existing output directory is replaced.

The scenario is a stored scenario name or a path to a scenario file.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeScenarios(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "wheelhouse directory (default from config: wheelhouse.ignore)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "j", 0, "packages generated in parallel (default from config, 0: one per CPU)")

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, ref string, opts generateOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		cfg.WheelhouseDir = opts.outputDir
	}
	if opts.workers != 0 {
		cfg.Generate.Workers = opts.workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s, name, err := loadScenario(ctx, store, ref)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Generating wheelhouse for %s", name))
	defer observability.Install(newGenerateProgress(spinner))()

	spinner.Start()
	res, err := wheelhouse.Populate(ctx, s, cfg.WheelhouseDir, wheelhouse.Options{
		Workers: cfg.Generate.Workers,
		Replace: true,
		Logger:  logger,
	})
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("Generating %s failed", name))
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Generated %d wheels for %d packages (%s)",
		res.Wheels, res.Packages, res.Duration.Round(time.Millisecond)))
	printFile(res.Dir)
	printNextStep("Benchmark pip against it", fmt.Sprintf("%s benchmark %s", appName, name))
	return nil
}
