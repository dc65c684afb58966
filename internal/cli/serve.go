package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stitch/pkg/cache"
	"github.com/matzehuels/stitch/pkg/pipeline"
	"github.com/matzehuels/stitch/pkg/server"
)

const defaultAddr = ":8080"

// serverKeyPrefix keeps offsets cached by the server apart from CLI entries
// when both share one Redis.
const serverKeyPrefix = "api:"

// serveCommand creates the serve command: run the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		opts pipeline.Options
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stitching HTTP API",
		Long: `Serve exposes POST /v1/stitch, which accepts images as multipart "image"
parts and returns the stitched image, and GET /healthz. Set redis_url in the
config file to share the offset cache between instances.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfig(cmd, c.config, &opts)
			if !cmd.Flags().Changed("addr") && c.config.Server.Addr != "" {
				addr = c.config.Server.Addr
			}
			return c.runServe(cmd.Context(), opts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	addPipelineFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts pipeline.Options, addr string) error {
	runner, err := c.newServeRunner(ctx, opts.NoCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	srv := server.New(runner, c.Logger, server.Config{
		MaxUploadBytes: c.config.Server.MaxUploadMB << 20,
		MaxPixels:      c.config.Server.MaxMegapixels * 1_000_000,
		MaxImages:      c.config.Server.MaxImages,
		Defaults:       opts,
	})
	printInfo("Listening on %s", styleHighlight.Render(addr))
	if err := srv.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newServeRunner is newRunner with offset keys scoped to the server.
func (c *CLI) newServeRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return nil, err
	}
	runner.Keyer = cache.NewScopedKeyer(runner.Keyer, serverKeyPrefix)
	return runner, nil
}
