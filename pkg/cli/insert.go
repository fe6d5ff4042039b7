package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
)

func cmdInsertArtifacts() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
		fcpCfg     config.FCP
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, fcpCfg.Flags()...)

	return &cli.Command{
		Name:      "insert-artifacts",
		Usage:     "Insert release assets as content keys",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			store := fcpCfg.Build()
			defer store.Close()

			packages, err := pipeline.InsertArtifacts(ctx, store)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Artifacts inserted",
				slog.String("edition", pipeline.Ref().Edition),
				slog.Int("packages", len(packages)),
			)
			return nil
		},
	}
}
