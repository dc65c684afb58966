package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/pipeline"
)

// Config is the optional TOML configuration file.
//
//	metric    = "lab"
//	workers   = 4
//	quality   = 85
//	no_cache  = false
//	redis_url = "redis://localhost:6379/0"
//
//	[server]
//	addr          = ":8080"
//	max_upload_mb = 128
type Config struct {
	Metric   string       `toml:"metric"`
	Workers  int          `toml:"workers"`
	Quality  int          `toml:"quality"`
	NoCache  bool         `toml:"no_cache"`
	RedisURL string       `toml:"redis_url"`
	Server   ServerConfig `toml:"server"`
}

// ServerConfig configures `stitch serve`.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	MaxUploadMB   int64  `toml:"max_upload_mb"`
	MaxMegapixels int    `toml:"max_megapixels"`
	MaxImages     int    `toml:"max_images"`
}

// loadConfig reads the config at path, or the default location when path is
// empty. A missing file is only an error when the path was given explicitly.
// Unknown keys are rejected so typos do not go unnoticed.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	if path == "" {
		p, err := configPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && !explicit {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// applyConfig fills opts from cfg for every setting whose flag the user did
// not set explicitly.
func applyConfig(cmd *cobra.Command, cfg Config, opts *pipeline.Options) {
	flags := cmd.Flags()
	if !flags.Changed("metric") && cfg.Metric != "" {
		opts.Metric = cfg.Metric
	}
	if !flags.Changed("workers") && cfg.Workers != 0 {
		opts.Workers = cfg.Workers
	}
	if !flags.Changed("quality") && cfg.Quality != 0 {
		opts.Quality = cfg.Quality
	}
	if !flags.Changed("no-cache") && cfg.NoCache {
		opts.NoCache = true
	}
}

// addPipelineFlags registers the flags shared by commands that run the pipeline.
func addPipelineFlags(cmd *cobra.Command, opts *pipeline.Options) {
	cmd.Flags().StringVar(&opts.Metric, "metric", "", "color distance: rgb (default), lab")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "j", 0, "parallel workers (default: number of CPUs)")
	cmd.Flags().BoolVar(&opts.NoCache, "no-cache", false, "disable the pairwise offset cache")
}
