package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
)

func cmdUploadChangelogs() *cli.Command {
	var (
		releaseCfg    config.Release
		githubCfg     config.GitHub
		fcpCfg        config.FCP
		shortOverride string
		fullOverride  string
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, fcpCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "changelog-file",
			Usage:       "File overriding the derived short changelog",
			Destination: &shortOverride,
			Sources:     cli.EnvVars("RELEASER_CHANGELOG_FILE"),
		},
		&cli.StringFlag{
			Name:        "full-changelog-file",
			Usage:       "File overriding the derived full changelog",
			Destination: &fullOverride,
			Sources:     cli.EnvVars("RELEASER_FULL_CHANGELOG_FILE"),
		},
	)

	return &cli.Command{
		Name:      "upload-changelogs",
		Usage:     "Derive and insert the short and full changelogs",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			store := fcpCfg.Build()
			defer store.Close()

			record, err := pipeline.UploadChangelogs(ctx, store, shortOverride, fullOverride)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Changelogs uploaded",
				slog.String("changelog_chk", record.ChangelogCHK),
				slog.String("fullchangelog_chk", record.FullChangelogCHK),
			)
			return nil
		},
	}
}
