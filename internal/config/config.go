// Package config loads wheelbench settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// a TOML file, and environment variables. Command-line flags are applied
// on top by the CLI.
//
//	index_url = "https://pypi.org/simple/"
//	python = "python3.12"
//	http_cache_ttl = "24h"
//
//	[rate_limit]
//	requests = 10
//	window = "1s"
//
//	[redis]
//	addr = "localhost:6379"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
)

const appName = "wheelbench"

// Environment variables consulted by ApplyEnv.
const (
	EnvIndexURL    = "WHEELBENCH_INDEX_URL"
	EnvPipIndexURL = "PIP_INDEX_URL"
	EnvPython      = "WHEELBENCH_PYTHON"
	EnvRedisAddr   = "WHEELBENCH_REDIS_ADDR"
	EnvMongoURI    = "WHEELBENCH_MONGO_URI"
)

// DefaultIndexURL is PyPI's Simple API root.
const DefaultIndexURL = "https://pypi.org/simple/"

// RateLimit bounds requests per host.
type RateLimit struct {
	Requests int           `toml:"requests"`
	Window   time.Duration `toml:"window"`
}

// Redis selects the shared HTTP cache backend. An empty Addr keeps the
// file cache.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Mongo selects the scenario store. An empty URI keeps scenarios on disk.
type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Generate configures wheelhouse generation.
type Generate struct {
	Workers int `toml:"workers"`
}

// Config is the full settings document.
type Config struct {
	IndexURL      string        `toml:"index_url"`
	CacheDir      string        `toml:"cache_dir"`
	ScenariosDir  string        `toml:"scenarios_dir"`
	WheelhouseDir string        `toml:"wheelhouse_dir"`
	Python        string        `toml:"python"`
	HTTPCacheTTL  time.Duration `toml:"http_cache_ttl"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	Redis         Redis         `toml:"redis"`
	Mongo         Mongo         `toml:"mongo"`
	Generate      Generate      `toml:"generate"`
}

// Default returns the built-in settings.
func Default() Config {
	cacheDir, err := defaultCacheDir()
	if err != nil {
		cacheDir = ".cache." + appName
	}
	return Config{
		IndexURL:      DefaultIndexURL,
		CacheDir:      cacheDir,
		ScenariosDir:  "scenarios",
		WheelhouseDir: "wheelhouse.ignore",
		Python:        "python3",
		HTTPCacheTTL:  24 * time.Hour,
		RateLimit:     RateLimit{Requests: 10, Window: time.Second},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/wheelbench/config.toml, falling back
// to ~/.config.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// defaultCacheDir uses the XDG cache directory (~/.cache/wheelbench/).
func defaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// Load reads the TOML file at path over the defaults. An empty path means
// DefaultPath, which may be absent; an explicitly named file must exist.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, wberrors.Wrap(wberrors.ErrCodeInvalidConfig, err, "load config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slices.Sort(keys)
		return Config{}, wberrors.New(wberrors.ErrCodeInvalidConfig, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables. WHEELBENCH_INDEX_URL wins over
// PIP_INDEX_URL.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvPipIndexURL); v != "" {
		c.IndexURL = v
	}
	if v := getenv(EnvIndexURL); v != "" {
		c.IndexURL = v
	}
	if v := getenv(EnvPython); v != "" {
		c.Python = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Mongo.URI = v
	}
}

// HTTPCacheDir is where transport-level responses are cached.
func (c Config) HTTPCacheDir() string { return filepath.Join(c.CacheDir, "http") }

// MetadataCacheDir roots the extracted-metadata cache.
func (c Config) MetadataCacheDir() string { return filepath.Join(c.CacheDir, "metadata") }

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	if err := wberrors.ValidateURL(c.IndexURL); err != nil {
		return fmt.Errorf("index_url: %w", err)
	}
	if c.CacheDir == "" {
		return wberrors.New(wberrors.ErrCodeInvalidInput, "cache_dir cannot be empty")
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Window < 0 {
		return wberrors.New(wberrors.ErrCodeInvalidInput, "rate_limit must not be negative")
	}
	if c.Generate.Workers < 0 {
		return wberrors.New(wberrors.ErrCodeInvalidInput, "generate.workers must not be negative")
	}
	return nil
}
