package cli

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelbench/pkg/bench"
	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/wheelhouse"
)

type benchmarkOpts struct {
	wheelhouse string
	python     string
	logDir     string
	warmups    int
	runs       int
	generate   bool
	showOutput bool
}

// benchmarkCommand creates the benchmark command.
func (c *CLI) benchmarkCommand() *cobra.Command {
	var opts benchmarkOpts

	cmd := &cobra.Command{
		Use:   "benchmark [scenario]",
		Short: "Time pip resolving a scenario against its wheelhouse",
		Long: `Benchmark runs "pip install --dry-run" for the root requirements of a
scenario against its generated wheelhouse, first for a number of warmups and
then for the timed runs, and prints the mean and standard deviation.

The benchmark stops at the first failing pip invocation and exits with its
status. Without a scenario argument an interactive picker is shown.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeScenarios(true),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return c.runBenchmark(cmd.Context(), ref, opts)
		},
	}

	cmd.Flags().StringVar(&opts.wheelhouse, "wheelhouse", "", "wheelhouse directory (default from config: wheelhouse.ignore)")
	cmd.Flags().StringVar(&opts.python, "python", "", "interpreter whose pip is benchmarked")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "where pip log files go (default: the wheelhouse's parent)")
	cmd.Flags().IntVar(&opts.warmups, "warmups", bench.DefaultWarmups, "untimed runs before measuring")
	cmd.Flags().IntVar(&opts.runs, "runs", bench.DefaultRuns, "timed runs")
	cmd.Flags().BoolVar(&opts.generate, "generate", false, "regenerate the wheelhouse first")
	cmd.Flags().BoolVar(&opts.showOutput, "show-output", false, "pass pip's output through")

	return cmd
}

func (c *CLI) runBenchmark(ctx context.Context, ref string, opts benchmarkOpts) error {
	ctx, logger, _ := withRun(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.wheelhouse != "" {
		cfg.WheelhouseDir = opts.wheelhouse
	}
	if opts.python != "" {
		cfg.Python = opts.python
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if ref == "" {
		if ref, err = pickScenario(ctx, store); err != nil {
			return err
		}
	}
	s, name, err := loadScenario(ctx, store, ref)
	if err != nil {
		return err
	}

	if opts.generate {
		spinner := newSpinnerWithContext(ctx, "Generating wheelhouse for "+name)
		spinner.Start()
		res, err := wheelhouse.Populate(ctx, s, cfg.WheelhouseDir, wheelhouse.Options{
			Workers: cfg.Generate.Workers,
			Replace: true,
			Logger:  logger,
		})
		spinner.Stop()
		if err != nil {
			return err
		}
		printSuccess("Generated %d wheels", res.Wheels)
	} else if _, err := os.Stat(cfg.WheelhouseDir); err != nil {
		return wberrors.Wrap(wberrors.ErrCodeNotFound, err, "no wheelhouse at %s; run '%s generate %s' or pass --generate", cfg.WheelhouseDir, appName, name)
	}

	runOpts := bench.Options{
		Python:       cfg.Python,
		Wheelhouse:   cfg.WheelhouseDir,
		Name:         name,
		Requirements: s.Input.Requirements,
		LogDir:       opts.logDir,
		Warmups:      opts.warmups,
		Runs:         opts.runs,
		Logger:       logger,
	}
	if opts.warmups == 0 {
		runOpts.Warmups = -1
	}
	if opts.showOutput {
		runOpts.Stdout, runOpts.Stderr = os.Stdout, os.Stderr
	}
	runner := bench.NewRunner(runOpts)
	if index, err := runner.IndexURL(); err == nil {
		printInfo("Benchmarking %s against %s", StyleHighlight.Render(name), StyleLink.Render(index))
	}

	res, err := runner.Run(ctx)
	if res != nil {
		printBenchResult(res)
	}
	if err != nil {
		var runErr *bench.RunError
		if errors.As(err, &runErr) {
			printError("pip failed in %s %d (exit status %d)", runErr.Stage, runErr.N, runErr.ExitCode())
		}
		return err
	}
	return nil
}

// printBenchResult prints the individual times and a summary per stage.
func printBenchResult(res *bench.Result) {
	for _, stage := range []struct {
		label string
		times []time.Duration
	}{
		{"warmups", res.Warmups},
		{"runs", res.Runs},
	} {
		if len(stage.times) == 0 {
			continue
		}
		printKeyValue(stage.label, bench.Summarize(stage.times).String())
		printTimings(stage.times)
	}
}
