package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelbench/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the HTTP response and metadata caches",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var httpOnly, metadataOnly, expiredOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cached index responses and extracted metadata",
		Long: `Clear removes cached project pages and the extracted-metadata cache,
including the markers of sdists that failed to build. Use --http or
--metadata to clear only one of them. --expired keeps fresh responses and
only drops those past http_cache_ttl.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if expiredOnly {
				return c.runCachePrune(cmd.Context())
			}
			clearHTTP := !metadataOnly || httpOnly
			clearMetadata := !httpOnly || metadataOnly
			return c.runCacheClear(cmd.Context(), clearHTTP, clearMetadata)
		},
	}

	cmd.Flags().BoolVar(&httpOnly, "http", false, "clear only the HTTP response cache")
	cmd.Flags().BoolVar(&metadataOnly, "metadata", false, "clear only the metadata cache")
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "remove only expired HTTP responses from the file cache")
	cmd.MarkFlagsMutuallyExclusive("expired", "metadata")

	return cmd
}

func (c *CLI) runCacheClear(ctx context.Context, clearHTTP, clearMetadata bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	if clearHTTP {
		if cfg.Redis.Addr != "" {
			rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err != nil {
				return err
			}
			n, err := rc.Clear(ctx)
			rc.Close()
			if err != nil {
				return fmt.Errorf("clear redis cache: %w", err)
			}
			printSuccess("Cleared %d cached responses", n)
			printDetail("Redis: %s", cfg.Redis.Addr)
		} else {
			if err := reportClear("cached responses", cfg.HTTPCacheDir()); err != nil {
				return err
			}
		}
	}
	if clearMetadata {
		if err := reportClear("metadata entries", cfg.MetadataCacheDir()); err != nil {
			return err
		}
	}
	return nil
}

// runCachePrune drops expired responses from the file cache. Redis expires
// keys on its own.
func (c *CLI) runCachePrune(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Redis.Addr != "" {
		printInfo("Redis expires cached responses by itself")
		return nil
	}
	fc, err := cache.NewFileCache(cfg.HTTPCacheDir())
	if err != nil {
		return err
	}
	n, err := fc.Prune(ctx)
	if err != nil {
		return fmt.Errorf("prune %s: %w", fc.Dir(), err)
	}
	printSuccess("Removed %s", plural(n, "expired response"))
	printDetail("Directory: %s", fc.Dir())
	return nil
}

func reportClear(what, dir string) error {
	n, err := clearDir(dir)
	if err != nil {
		return err
	}
	if n == 0 {
		printInfo("No %s to clear", what)
	} else {
		printSuccess("Cleared %d %s", n, what)
	}
	printDetail("Directory: %s", dir)
	return nil
}

// clearDir removes everything below dir, keeping dir itself, and returns
// the number of files removed. A missing dir counts as empty.
func clearDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				count++
			}
			return nil
		})
		if err := os.RemoveAll(path); err != nil {
			return count, err
		}
	}
	return count, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			emit(cfg.CacheDir)
			return nil
		},
	}
}
