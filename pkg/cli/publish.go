package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/types"
)

func cmdPublishDescriptor() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
		fcpCfg     config.FCP
		keysCfg    config.Keys
		to         string
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, fcpCfg.Flags()...)
	flags = append(flags, keysCfg.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "to",
		Usage:       "Publish target: staging or production",
		Value:       string(types.TargetStaging),
		Destination: &to,
		Sources:     cli.EnvVars("RELEASER_PUBLISH_TO"),
	})

	return &cli.Command{
		Name:      "publish-descriptor",
		Usage:     "Insert the descriptor under the target update pointer",
		ArgsUsage: "<release page URL>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			target, err := parseTarget(to)
			if err != nil {
				return err
			}
			pipeline, err := buildPipeline(c, &releaseCfg, &githubCfg)
			if err != nil {
				return err
			}
			keys, err := keysCfg.Resolver(target, releaseCfg.DryRun)
			if err != nil {
				return err
			}
			store := fcpCfg.Build()
			defer store.Close()

			resultURI, err := pipeline.PublishDescriptor(ctx, target, store, keys)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Info("Descriptor published",
				slog.String("target", string(target)),
				slog.String("result_uri", resultURI),
			)
			return nil
		},
	}
}
