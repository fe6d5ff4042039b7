package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

func cmdVerify() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
		fcpCfg     config.FCP
		keysCfg    config.Keys
		to         string
		timeout    time.Duration
		deep       bool
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, fcpCfg.Flags()...)
	flags = append(flags, keysCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Verify target: staging or production",
			Value:       string(types.TargetStaging),
			Destination: &to,
			Sources:     cli.EnvVars("RELEASER_PUBLISH_TO"),
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Per-fetch timeout for descriptor and content probes",
			Value:       5 * time.Minute,
			Destination: &timeout,
			Sources:     cli.EnvVars("RELEASER_VERIFY_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:        "deep",
			Usage:       "Also download probed content instead of checking presence",
			Destination: &deep,
			Sources:     cli.EnvVars("RELEASER_VERIFY_DEEP"),
		},
	)

	return &cli.Command{
		Name:      "verify",
		Usage:     "Fetch the published descriptor back and audit it",
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

			report, err := pipeline.Verify(ctx, target, store, keys, timeout, deep)
			if err != nil {
				return err
			}
			printVerifySummary(pipeline, target, report)
			if !report.OK {
				return goerr.Wrap(errVerificationFailed, "published descriptor is unhealthy",
					goerr.V("target", string(target)))
			}
			ctxlog.From(ctx).Info("Verification passed",
				slog.String("target", string(target)),
				slog.String("descriptor_uri", report.DescriptorURI),
			)
			return nil
		},
	}
}

// printVerifySummary prints the short operator-facing outcome line; the
// full evidence lives in the persisted report file.
func printVerifySummary(pipeline *usecase.Pipeline, target types.PublishTarget, report *model.VerifyReport) {
	if report.OK {
		color.New(color.FgGreen, color.Bold).Printf("VERIFY OK")
	} else {
		color.New(color.FgRed, color.Bold).Printf("VERIFY FAILED")
	}
	fmt.Printf("  edition=%s target=%s schema_errors=%d identity_errors=%d chk_checks=%d\n",
		pipeline.Ref().Edition, target,
		len(report.SchemaErrors), len(report.IdentityErrors), len(report.ChkChecks))
	for _, check := range report.ChkChecks {
		if !check.Retrievable {
			fmt.Printf("  unreachable %s %s: %s\n", check.Kind, check.Key, check.CHK)
		}
	}
	fmt.Printf("  report: %s\n", usecase.VerifyReportFileName)
}
