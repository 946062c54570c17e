package cli

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// completionCommand prints a shell completion script.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for your shell. Besides commands and flags it
completes the names of stored scenarios.

  bash:        source <(wheelbench completion bash)
  zsh:         wheelbench completion zsh > "${fpath[1]}/_wheelbench"
  fish:        wheelbench completion fish > ~/.config/fish/completions/wheelbench.fish
  powershell:  wheelbench completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeScenarios completes stored scenario names, falling back to file
// names. With single set, only the first positional argument is completed.
func (c *CLI) completeScenarios(single bool) cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if single && len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		cfg, err := c.loadConfig()
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		store, err := openStore(ctx, cfg)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		defer store.Close()
		names, err := store.List(ctx)
		if err != nil {
			return nil, cobra.ShellCompDirectiveError
		}
		matches := filterCompletions(names, args, toComplete)
		if len(matches) == 0 {
			// Scenario files are accepted too.
			return nil, cobra.ShellCompDirectiveDefault
		}
		return matches, cobra.ShellCompDirectiveNoFileComp
	}
}

// filterCompletions keeps names starting with prefix that are not already
// among args.
func filterCompletions(names, args []string, prefix string) []string {
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) && !slices.Contains(args, n) {
			out = append(out, n)
		}
	}
	return out
}

// fixedCompletions completes a flag from a fixed set of values.
func fixedCompletions(values ...string) cobra.CompletionFunc {
	return cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp)
}
