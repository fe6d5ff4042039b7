package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
)

// Release holds the per-invocation release selection: the release page
// URL positional argument plus the working directory base.
type Release struct {
	WorkdirBase string
	DryRun      bool
}

// Flags returns CLI flags for release selection
func (c *Release) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "workdir",
			Usage:       "Base directory for per-edition working directories",
			Value:       "./dist",
			Destination: &c.WorkdirBase,
			Sources:     cli.EnvVars("RELEASER_WORKDIR"),
		},
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Print planned operations without mutating remote services or state",
			Destination: &c.DryRun,
			Sources:     cli.EnvVars("RELEASER_DRY_RUN"),
		},
	}
}

// Ref parses the release page URL positional argument of cmd.
func (c *Release) Ref(cmd *cli.Command) (*model.ReleaseRef, error) {
	rawURL := cmd.Args().First()
	if rawURL == "" {
		return nil, goerr.New("release page URL argument is required",
			goerr.T(types.TagConfig))
	}
	return model.ParseReleasePageURL(rawURL)
}
