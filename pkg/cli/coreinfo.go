package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
)

func cmdGenerateCoreInfo() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)

	return &cli.Command{
		Name:      "generate-core-info",
		Usage:     "Render and validate the release descriptor",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			path, err := pipeline.GenerateCoreInfo(ctx)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Descriptor generated", slog.String("path", path))
			return nil
		},
	}
}
