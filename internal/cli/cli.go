// Package cli implements the wheelbench command-line interface.
package cli

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelbench/internal/config"
	"github.com/matzehuels/wheelbench/pkg/buildinfo"
	"github.com/matzehuels/wheelbench/pkg/cache"
	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/httputil"
	"github.com/matzehuels/wheelbench/pkg/integrations/pypi"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "wheelbench"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	logFormat  string
	getenv     func(string) string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		getenv: os.Getenv,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Wheelbench builds synthetic package indexes for resolver benchmarks",
		Long: `Wheelbench crawls the dependency closure of a set of requirements from a
Python package index, freezes the metadata it finds into a scenario, and
turns scenarios into synthetic wheelhouses that pip can resolve against.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := parseLogFormat(c.logFormat)
			if err != nil {
				return err
			}
			c.Logger.SetFormatter(formatter)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/wheelbench/config.toml)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", LogFormatText, "log format: text, json or logfmt")
	_ = root.RegisterFlagCompletionFunc("log-format", fixedCompletions(LogFormatText, LogFormatJSON, LogFormatLogfmt))

	// Register all subcommands
	root.AddCommand(c.crawlCommand())
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.benchmarkCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.envCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Config
// =============================================================================

// loadConfig reads the config file and applies the environment on top.
// Commands apply their own flag overrides afterwards and call Validate.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	getenv := c.getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)
	return cfg, nil
}

// =============================================================================
// Factories
// =============================================================================

// newHTTPCache picks the transport cache backend: none with --no-cache,
// Redis when configured, files below the cache directory otherwise.
func newHTTPCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if cfg.Redis.Addr != "" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return cache.NewFileCache(cfg.HTTPCacheDir())
}

// newIndexClient builds the index client. The client owns httpCache and
// releases it on Close.
func newIndexClient(cfg config.Config, httpCache cache.Cache, tags *packaging.SupportedTags, sdists pypi.SdistBuilder, refresh bool, logger *log.Logger) (*pypi.Client, error) {
	return pypi.NewClient(pypi.Options{
		IndexURL:    cfg.IndexURL,
		Cache:       httpCache,
		CacheTTL:    cfg.HTTPCacheTTL,
		MetadataDir: cfg.MetadataCacheDir(),
		Tags:        tags,
		Sdists:      sdists,
		RateLimit:   httputil.RateLimit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
		Refresh:     refresh,
		Logger:      logger,
	})
}

// openStore opens MongoDB when a URI is configured and the scenarios
// directory otherwise.
func openStore(ctx context.Context, cfg config.Config) (scenario.Store, error) {
	if cfg.Mongo.URI != "" {
		return scenario.NewMongoStore(ctx, scenario.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	}
	return scenario.NewFileStore(cfg.ScenariosDir), nil
}

// loadScenario resolves ref as a path to a scenario file when one exists,
// and as a stored scenario name otherwise. It returns the scenario and the
// name it is known by.
func loadScenario(ctx context.Context, store scenario.Store, ref string) (*scenario.Scenario, string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		s, err := scenario.ReadFile(ref)
		if err != nil {
			return nil, "", err
		}
		return s, scenarioNameFromPath(ref), nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", err
	}

	if err := wberrors.ValidateScenarioName(ref); err != nil {
		return nil, "", err
	}
	s, err := store.Load(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	return s, ref, nil
}

// scenarioNameFromPath strips the directory and the .json extension.
func scenarioNameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// describeStored returns where a stored scenario lives, for display.
func describeStored(store scenario.Store, name string) string {
	if files, ok := store.(*scenario.FileStore); ok {
		return files.Path(name)
	}
	return name
}
