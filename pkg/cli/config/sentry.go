package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/domain/types"
)

// Sentry holds crash-reporting configuration
type Sentry struct {
	DSN string `masq:"secret"`
	Env string
}

// Flags returns CLI flags for crash-reporting configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN (crash reporting disabled when empty)",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("RELEASER_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Value:       "production",
			Destination: &c.Env,
			Sources:     cli.EnvVars("RELEASER_SENTRY_ENV"),
		},
	}
}

// Configure initializes Sentry when a DSN is set. The returned flush
// function is safe to call unconditionally.
func (c *Sentry) Configure() (func(), error) {
	if c.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     "update-releaser@" + types.Version,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize Sentry", goerr.T(types.TagConfig))
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}
