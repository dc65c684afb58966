package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the pairwise offset cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
// It clears whichever backend the run command would use.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached offsets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			backend, err := c.newCache(ctx, false)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer backend.Close()

			clearer, ok := backend.(cache.Clearer)
			if !ok {
				printInfo("Cache is disabled")
				return nil
			}
			count, err := clearer.Clear(ctx)
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Location: %s", c.cacheLocation())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache location (directory or Redis URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(c.cacheLocation())
			return nil
		},
	}
}

// cacheLocation describes where cached offsets live.
func (c *CLI) cacheLocation() string {
	if c.config.RedisURL != "" {
		return c.config.RedisURL
	}
	dir, err := cacheDir()
	if err != nil {
		return "(unavailable)"
	}
	return dir
}
