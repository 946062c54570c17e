package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelbench/internal/config"
	"github.com/matzehuels/wheelbench/pkg/deps"
	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/observability"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/pyenv"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// crawlOpts holds the flags of the crawl command.
type crawlOpts struct {
	input       string
	from        string
	sdistsFile  string
	indexURL    string
	python      string
	name        string
	maxPackages int
	noCache     bool
	refresh     bool
	noProgress  bool
}

// crawlCommand creates the crawl command.
func (c *CLI) crawlCommand() *cobra.Command {
	var opts crawlOpts

	cmd := &cobra.Command{
		Use:   "crawl [requirement...]",
		Short: "Crawl the dependency closure of requirements into a scenario",
		Long: `Crawl fetches every package reachable from the given requirements,
following unconditional dependencies and the extras that are actually
requested, and stores the frozen metadata as a scenario.

Wheels are chosen for the target interpreter, which is inspected with
--python unless --input names a scenario whose environment is reused.`,
		Example: `  wheelbench crawl requests
  wheelbench crawl "black[jupyter]" --sdists-file allow.txt
  wheelbench crawl --from requirements.txt
  wheelbench crawl --input scenarios/requests-0.ignore.json --refresh`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCrawl(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.input, "input", "", "re-crawl the input of a scenario or input file (JSON or YAML)")
	cmd.Flags().StringVar(&opts.from, "from", "", "read requirements from requirements.txt or pyproject.toml")
	cmd.Flags().StringVar(&opts.sdistsFile, "sdists-file", "", "file listing packages whose sdists may be built for metadata")
	cmd.Flags().StringVar(&opts.indexURL, "index-url", "", "Simple API root (overrides config and environment)")
	cmd.Flags().StringVar(&opts.python, "python", "", "interpreter to inspect and to build sdists with")
	cmd.Flags().StringVar(&opts.name, "name", "", "scenario name (default: joined root names plus a counter)")
	cmd.Flags().IntVar(&opts.maxPackages, "max-packages", 0, "abort when the closure grows beyond this many packages (0: no limit)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the HTTP response cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "refetch project pages even when cached")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "log progress instead of drawing a live view")

	return cmd
}

func (c *CLI) runCrawl(ctx context.Context, args []string, opts crawlOpts) error {
	ctx, logger, _ := withRun(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.indexURL != "" {
		cfg.IndexURL = opts.indexURL
	}
	if opts.python != "" {
		cfg.Python = opts.python
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Debug("crawl config", "index", cfg.IndexURL, "python", cfg.Python, "max_packages", opts.maxPackages)
	if opts.name != "" {
		if err := wberrors.ValidateScenarioName(opts.name); err != nil {
			return err
		}
	}

	input, err := buildCrawlInput(args, opts)
	if err != nil {
		return err
	}

	allow, bad, err := scenario.LoadAllowList(opts.sdistsFile)
	if err != nil {
		return fmt.Errorf("read sdists file: %w", err)
	}
	reportBadAllowList(opts.sdistsFile, bad)
	input.AllowSdistsFor = append(input.AllowSdistsFor, allow...)
	slices.Sort(input.AllowSdistsFor)
	input.AllowSdistsFor = slices.Compact(input.AllowSdistsFor)

	printInfo("Using index URL: %s", StyleLink.Render(cfg.IndexURL))
	if n := len(input.AllowSdistsFor); n > 0 {
		printInfo("Allowing sdists for %d packages", n)
	}

	env, err := targetEnvironment(ctx, input, cfg.Python)
	if err != nil {
		return err
	}
	tags, err := env.SupportedTags()
	if err != nil {
		return err
	}
	input.Environment = env.Details()
	input.Timestamp = scenario.Now()
	if v := env.PythonVersion(); v != "" {
		printDetail("Target Python %s, %d supported tags", v, tags.Len())
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := c.crawl(ctx, cfg, input, opts, tags)
	if err != nil {
		return err
	}

	name := opts.name
	if name == "" {
		if name, err = store.NextName(ctx, s.Input.Requirements); err != nil {
			return err
		}
	}
	if err := s.Validate(name); err != nil {
		return err
	}
	if err := store.Save(ctx, name, s); err != nil {
		return fmt.Errorf("save scenario: %w", err)
	}

	issues := s.CheckForIssues()
	printSuccess("Saved scenario %s", StyleHighlight.Render(name))
	printFile(describeStored(store, name))
	printStats(len(s.Packages), s.DistributionCount(), len(issues))
	for _, issue := range issues {
		printWarning("FYI: %s", issue)
	}
	printNextStep("Generate its wheelhouse", fmt.Sprintf("%s generate %s", appName, name))
	return nil
}

// reportBadAllowList prints the non-canonical lines of an allow-list as
// errors. They are excluded but do not stop the crawl.
func reportBadAllowList(path string, bad []scenario.BadLine) {
	if len(bad) == 0 {
		return
	}
	printError("Found non-canonical names in %s", path)
	for _, b := range bad {
		printDetail("line %d: %s (ignored)", b.Line, b.Text)
	}
}

// crawl runs the crawler with the index client and progress reporting it
// needs. Both are released before it returns.
func (c *CLI) crawl(ctx context.Context, cfg config.Config, input scenario.ScenarioInput, opts crawlOpts, tags *packaging.SupportedTags) (*scenario.Scenario, error) {
	logger := loggerFromContext(ctx)

	httpCache, err := newHTTPCache(ctx, cfg, opts.noCache)
	if err != nil {
		return nil, err
	}
	var sdists pypi.SdistBuilder
	if len(input.AllowSdistsFor) > 0 {
		sdists = pypi.NewPipReportBuilder(cfg.Python, logger)
	}
	client, err := newIndexClient(cfg, httpCache, tags, sdists, opts.refresh, logger)
	if err != nil {
		httpCache.Close()
		return nil, err
	}
	defer client.Close()

	traffic := &trafficStats{}
	defer observability.Install(traffic)()
	if !opts.noProgress && isTerminal(os.Stderr) {
		view := startCrawlProgress(ctx, os.Stderr)
		logger.SetOutput(view.Writer())
		defer logger.SetOutput(os.Stderr)
		defer view.Stop()
		defer observability.Install(view)()
	} else {
		defer observability.Install(logCrawlHooks{logger: logger})()
	}

	prog := newProgress(logger)
	crawler := deps.NewCrawler(client, deps.Options{MaxPackages: opts.maxPackages, Logger: logger})
	s, err := crawler.Crawl(ctx, input)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Crawled %d packages", len(s.Packages)))
	printDetail("%s", traffic.Summary())
	return s, nil
}

// buildCrawlInput assembles the crawl input from --input, or from the
// positional requirements plus --from. Requirements are stored in their
// canonical rendering.
func buildCrawlInput(args []string, opts crawlOpts) (scenario.ScenarioInput, error) {
	if opts.input != "" {
		if len(args) > 0 || opts.from != "" {
			return scenario.ScenarioInput{}, wberrors.New(wberrors.ErrCodeInvalidInput, "--input cannot be combined with requirements or --from")
		}
		in, err := scenario.LoadInput(opts.input)
		if err != nil {
			return scenario.ScenarioInput{}, wberrors.Wrap(wberrors.ErrCodeInvalidInput, err, "load input")
		}
		reqs, err := normalizeRequirements(in.Requirements)
		if err != nil {
			return scenario.ScenarioInput{}, err
		}
		in.Requirements = reqs
		return *in, nil
	}

	raw := slices.Clone(args)
	if opts.from != "" {
		fromManifest, err := deps.ReadManifest(opts.from)
		if err != nil {
			return scenario.ScenarioInput{}, wberrors.Wrap(wberrors.ErrCodeInvalidInput, err, "read %s", opts.from)
		}
		raw = append(raw, fromManifest...)
	}
	reqs, err := normalizeRequirements(raw)
	if err != nil {
		return scenario.ScenarioInput{}, err
	}
	return scenario.ScenarioInput{Requirements: reqs}, nil
}

// normalizeRequirements parses each requirement and renders it back,
// dropping exact duplicates. At least one requirement is needed.
func normalizeRequirements(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, wberrors.New(wberrors.ErrCodeInvalidInput, "no requirements given")
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		req, err := packaging.ParseRequirement(r)
		if err != nil {
			return nil, wberrors.Wrap(wberrors.ErrCodeInvalidInput, err, "requirement %q", r)
		}
		if s := req.String(); !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// targetEnvironment reuses the environment recorded in input when there is
// one and inspects python otherwise.
func targetEnvironment(ctx context.Context, input scenario.ScenarioInput, python string) (*pyenv.Environment, error) {
	if len(input.Environment.Tags) > 0 {
		env, err := pyenv.FromDetails(input.Environment)
		if err != nil {
			return nil, err
		}
		env.Python = python
		printInfo("Reusing the recorded environment")
		return env, nil
	}

	spinner := newSpinnerWithContext(ctx, "Probing "+python)
	spinner.Start()
	env, err := pyenv.Inspect(ctx, python)
	spinner.Stop()
	if err != nil {
		return nil, wberrors.Wrap(wberrors.ErrCodeInspectFailed, err, "inspect %s", python)
	}
	printInfo("Inspected %s", python)
	return env, nil
}
