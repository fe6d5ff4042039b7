package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

func cmdPromote() *cli.Command {
	var (
		releaseCfg config.Release
		githubCfg  config.GitHub
		fcpCfg     config.FCP
		keysCfg    config.Keys
		notifyCfg  config.Notify
		to         string
		timeout    time.Duration
		deep       bool
	)

	flags := append(releaseCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, fcpCfg.Flags()...)
	flags = append(flags, keysCfg.Flags()...)
	flags = append(flags, notifyCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Publish target: staging or production",
			Value:       string(types.TargetStaging),
			Destination: &to,
			Sources:     cli.EnvVars("RELEASER_PUBLISH_TO"),
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "Per-fetch timeout for the closing verification",
			Value:       5 * time.Minute,
			Destination: &timeout,
			Sources:     cli.EnvVars("RELEASER_VERIFY_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:        "deep",
			Usage:       "Download probed content during the closing verification",
			Destination: &deep,
			Sources:     cli.EnvVars("RELEASER_VERIFY_DEEP"),
		},
	)

	return &cli.Command{
		Name:      "promote",
		Usage:     "Run the whole pipeline: fetch, insert, changelogs, descriptor, publish, verify",
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

			err = runPromotion(ctx, pipeline, target, store, keys, timeout, deep)
			if releaseCfg.DryRun {
				return err
			}
			notifyOutcome(ctx, notifyCfg.Build(), pipeline, target, err)
			return err
		},
	}
}

// runPromotion executes every stage in order. Each stage is idempotent,
// so a failed promotion is rerun as a whole and picks up where the state
// document left off.
func runPromotion(ctx context.Context, pipeline *usecase.Pipeline, target types.PublishTarget, store interfaces.ContentStore, keys *usecase.KeyResolver, timeout time.Duration, deep bool) error {
	logger := ctxlog.From(ctx)

	if _, err := pipeline.FetchAssets(ctx); err != nil {
		return err
	}
	if _, err := pipeline.InsertArtifacts(ctx, store); err != nil {
		return err
	}
	if _, err := pipeline.UploadChangelogs(ctx, store, "", ""); err != nil {
		return err
	}
	if _, err := pipeline.GenerateCoreInfo(ctx); err != nil {
		return err
	}
	resultURI, err := pipeline.PublishDescriptor(ctx, target, store, keys)
	if err != nil {
		return err
	}
	logger.Info("Promotion published, closing the loop",
		slog.String("target", string(target)),
		slog.String("result_uri", resultURI),
	)

	report, err := pipeline.Verify(ctx, target, store, keys, timeout, deep)
	if err != nil {
		return err
	}
	printVerifySummary(pipeline, target, report)
	if !report.OK {
		return goerr.Wrap(errVerificationFailed, "promotion published but verification failed",
			goerr.V("target", string(target)))
	}
	return nil
}

// notifyOutcome posts the promotion result when a notifier is configured.
// Notification trouble is logged, never escalated.
func notifyOutcome(ctx context.Context, notifier interfaces.Notifier, pipeline *usecase.Pipeline, target types.PublishTarget, outcome error) {
	if notifier == nil {
		return
	}

	ref := pipeline.Ref()
	var text string
	switch {
	case outcome == nil:
		text = fmt.Sprintf(":white_check_mark: update-releaser promoted %s/%s %s (edition %s) to %s",
			ref.Owner, ref.Repo, ref.Tag, ref.Edition, target)
	default:
		text = fmt.Sprintf(":x: update-releaser failed promoting %s/%s %s (edition %s) to %s: %v",
			ref.Owner, ref.Repo, ref.Tag, ref.Edition, target, outcome)
	}

	if err := notifier.Notify(ctx, text); err != nil {
		ctxlog.From(ctx).Warn("Failed to send notification", slog.Any("error", err))
	}
}
