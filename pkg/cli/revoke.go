package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

func cmdRevoke() *cli.Command {
	var (
		fcpCfg    config.FCP
		revokeURI string
		message   string
		dryRun    bool
	)

	flags := append(fcpCfg.Flags(),
		&cli.StringFlag{
			Name:        "uri",
			Usage:       "Revocation target URI (insert-capable)",
			Required:    true,
			Destination: &revokeURI,
			Sources:     cli.EnvVars("RELEASER_REVOKE_URI"),
		},
		&cli.StringFlag{
			Name:        "message",
			Usage:       "Human-readable revocation reason",
			Destination: &message,
			Sources:     cli.EnvVars("RELEASER_REVOKE_MESSAGE"),
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Print the planned revocation without inserting anything",
			Destination: &dryRun,
			Sources:     cli.EnvVars("RELEASER_DRY_RUN"),
		},
	)

	return &cli.Command{
		Name:  "revoke",
		Usage: "Publish an emergency revocation message",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if message == "" {
				return goerr.New("a revocation message is required",
					goerr.T(types.TagConfig))
			}
			if dryRun {
				ctxlog.From(ctx).Info("[dry-run] Would publish revocation message",
					slog.String("uri", revokeURI))
				return nil
			}
			store := fcpCfg.Build()
			defer store.Close()

			resultURI, err := usecase.PublishRevocation(ctx, store, revokeURI, message)
			if err != nil {
				return err
			}
			ctxlog.From(ctx).Warn("Revocation published",
				slog.String("result_uri", resultURI),
			)
			return nil
		},
	}
}
