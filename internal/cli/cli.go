package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/buildinfo"
	"github.com/matzehuels/stitch/pkg/cache"
	"github.com/matzehuels/stitch/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "stitch"

	// redisKeyPrefix namespaces CLI entries in a shared Redis.
	redisKeyPrefix = "stitch:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
	LogWarn  = log.WarnLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// quiet reports whether info-level progress logs are suppressed, in which
// case commands show a spinner instead.
func (c *CLI) quiet() bool {
	return c.Logger.GetLevel() > log.InfoLevel
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Stitch aligns overlapping images and blends them into one",
		Long:         `Stitch finds the translational offsets between overlapping images in a directory, resolves them into one consistent layout and blends the positioned images into a single seamless output.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("config")
			cfg, err := loadConfig(c.configPath, explicit)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/stitch/config.toml)")

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.alignCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cache, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cache, nil, c.Logger), nil
}

// newCache picks the backend: none, Redis when configured, else the file cache.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if url := c.config.RedisURL; url != "" {
		rc, err := cache.NewRedisCache(ctx, url, redisKeyPrefix)
		if err != nil {
			c.Logger.Warn("redis cache unavailable, falling back to file cache", "err", err)
		} else {
			return rc, nil
		}
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/stitch/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configPath returns the default config file (~/.config/stitch/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}
