package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored scenarios",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.Context(), namesOnly)
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names", false, "print only scenario names, one per line")

	return cmd
}

func (c *CLI) runList(ctx context.Context, namesOnly bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if namesOnly {
		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			emit(name)
		}
		return nil
	}

	summaries, err := summarizeScenarios(ctx, store)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		printInfo("No scenarios yet")
		printNextStep("Create one", appName+" crawl <requirement>")
		return nil
	}
	emit(renderScenarioTable(summaries, 0, -1))
	return nil
}

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Check scenarios for structural problems",
		Long: `Validate loads each scenario strictly and prints every structural problem
it finds, such as non-canonical package names, unparsable versions or
dependencies that still carry markers. Non-fatal issues, like packages
without any usable version, are reported as well.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeScenarios(false),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), args)
		},
	}
}

func (c *CLI) runValidate(ctx context.Context, refs []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	failed := 0
	for _, ref := range refs {
		s, name, err := loadScenario(ctx, store, ref)
		if err != nil {
			failed++
			var verr *wberrors.ValidationError
			if errors.As(err, &verr) {
				printError("%s: %d problems", ref, len(verr.Issues))
				for _, issue := range verr.Issues {
					printDetail("%s", issue)
				}
			} else {
				printError("%s: %s", ref, wberrors.UserMessage(err))
			}
			continue
		}
		issues := s.CheckForIssues()
		printSuccess("%s is valid", name)
		printStats(len(s.Packages), s.DistributionCount(), len(issues))
		for _, issue := range issues {
			printWarning("FYI: %s", issue)
		}
	}
	if failed > 0 {
		return wberrors.New(wberrors.ErrCodeInvalidScenario, "%d of %d scenarios failed validation", failed, len(refs))
	}
	return nil
}
