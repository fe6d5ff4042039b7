// Package cli wires the command tree: flag parsing, logger setup, and
// the mapping from pipeline outcomes to process exit codes.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/types"
)

// Exit codes: 0 success, 1 crash, 2 the pipeline ran but verification
// found the published descriptor unhealthy.
const (
	ExitOK                 = 0
	ExitError              = 1
	ExitVerificationFailed = 2
)

// errVerificationFailed marks a completed verification whose report came
// back not OK. It is an outcome, not a crash.
var errVerificationFailed = errors.New("verification failed")

// Run executes the CLI and returns the process exit code.
func Run(ctx context.Context, args []string) int {
	var (
		loggerCfg  config.Logger
		sentryCfg  config.Sentry
		configPath string
		logger     *slog.Logger
	)

	// The defaults file must be loaded before flag parsing so env-var
	// sources pick its values up.
	if path := configFileArg(args); path != "" {
		if err := config.LoadDefaults(path); err != nil {
			slog.Default().Error("Failed to load config file", slog.Any("error", err))
			return ExitError
		}
	}

	flushSentry := func() {}
	defer func() { flushSentry() }()

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "config",
		Usage:       "TOML defaults file (flags and env vars take precedence)",
		Destination: &configPath,
		Sources:     cli.EnvVars("RELEASER_CONFIG"),
	})

	app := &cli.Command{
		Name:    "update-releaser",
		Usage:   "Promote GitHub release artifacts into the update network",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)

			if flushSentry, err = sentryCfg.Configure(); err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdFetchAssets(),
			cmdInsertArtifacts(),
			cmdUploadChangelogs(),
			cmdGenerateCoreInfo(),
			cmdPublishDescriptor(),
			cmdVerify(),
			cmdPromote(),
			cmdMirrorArtifacts(),
			cmdRevoke(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, errVerificationFailed) {
			return ExitVerificationFailed
		}
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		if goerr.HasTag(err, types.TagCollaborator) || goerr.HasTag(err, types.TagIntegrity) {
			sentry.CaptureException(err)
		}
		return ExitError
	}

	return ExitOK
}

// configFileArg pre-scans args for the defaults file path, because the
// file has to be applied before urfave parses the rest.
func configFileArg(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		}
	}
	return os.Getenv("RELEASER_CONFIG")
}
