package config

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/infra/gcs"
)

// Mirror holds artifact-mirror configuration
type Mirror struct {
	Bucket string
	Prefix string
}

// Flags returns CLI flags for artifact-mirror configuration
func (c *Mirror) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mirror-bucket",
			Usage:       "Cloud Storage bucket receiving mirrored artifacts",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("RELEASER_MIRROR_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "mirror-prefix",
			Usage:       "Object name prefix inside the mirror bucket",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("RELEASER_MIRROR_PREFIX"),
		},
	}
}

// Build creates the object-store client.
func (c *Mirror) Build(ctx context.Context) (interfaces.ObjectStore, error) {
	return gcs.New(ctx, c.Bucket, c.Prefix)
}
