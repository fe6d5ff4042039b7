package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/infra/github"
)

// GitHub holds release-host configuration
type GitHub struct {
	Token  string `masq:"secret"`
	Source string
}

// Flags returns CLI flags for release-host configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token (falls back to GITHUB_TOKEN)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("RELEASER_GITHUB_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "source",
			Usage:       "Release source: auto, api or gh",
			Value:       string(types.SourceAuto),
			Destination: &c.Source,
			Sources:     cli.EnvVars("RELEASER_SOURCE"),
		},
	}
}

// Build creates the release-host client for the configured source.
func (c *GitHub) Build() (interfaces.ReleaseHost, error) {
	source, ok := types.ParseReleaseSource(c.Source)
	if !ok {
		return nil, goerr.New("invalid release source", goerr.T(types.TagConfig),
			goerr.V("source", c.Source))
	}
	switch source {
	case types.SourceAPI:
		return github.NewClient(c.Token), nil
	case types.SourceGH:
		return github.NewGHClient(), nil
	default:
		return github.NewAutoClient(c.Token), nil
	}
}
