package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
)

func cmdMirrorArtifacts() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
		mirrorCfg  config.Mirror
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, mirrorCfg.Flags()...)

	return &cli.Command{
		Name:      "mirror-artifacts",
		Usage:     "Upload release assets to a blob bucket for store_url packages",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			var objects interfaces.ObjectStore
			if !releaseCfg.DryRun {
				if objects, err = mirrorCfg.Build(ctx); err != nil {
					return err
				}
			}
			packages, err := pipeline.MirrorArtifacts(ctx, objects)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Artifacts mirrored",
				slog.String("bucket", mirrorCfg.Bucket),
				slog.Int("packages", len(packages)),
			)
			return nil
		},
	}
}
