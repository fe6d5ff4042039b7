package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
)

func cmdFetchAssets() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)

	return &cli.Command{
		Name:      "fetch-assets",
		Usage:     "Download release assets and record their hashes",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			assets, err := pipeline.FetchAssets(ctx)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Assets ready",
				slog.String("edition", pipeline.Ref().Edition),
				slog.Int("packages", len(assets)),
				slog.String("workdir", pipeline.Workdir()),
			)
			return nil
		},
	}
}
