package config

import (
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/infra/fcp"
)

// FCP holds node connection configuration
type FCP struct {
	Host        string
	Port        int
	Priority    int
	Persistence string
	GlobalQueue bool
}

// Flags returns CLI flags for node connection configuration
func (c *FCP) Flags() []cli.Flag {
	defaults := fcp.DefaultPutOptions()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "fcp-host",
			Usage:       "FCP node host",
			Value:       "127.0.0.1",
			Destination: &c.Host,
			Sources:     cli.EnvVars("RELEASER_FCP_HOST"),
		},
		&cli.IntFlag{
			Name:        "fcp-port",
			Usage:       "FCP node port",
			Value:       9481,
			Destination: &c.Port,
			Sources:     cli.EnvVars("RELEASER_FCP_PORT"),
		},
		&cli.IntFlag{
			Name:        "fcp-priority",
			Usage:       "Insert priority class (0 highest, 6 lowest)",
			Value:       defaults.Priority,
			Destination: &c.Priority,
			Sources:     cli.EnvVars("RELEASER_FCP_PRIORITY"),
		},
		&cli.StringFlag{
			Name:        "fcp-persistence",
			Usage:       "Insert persistence (connection, reboot, forever)",
			Value:       defaults.Persistence,
			Destination: &c.Persistence,
			Sources:     cli.EnvVars("RELEASER_FCP_PERSISTENCE"),
		},
		&cli.BoolFlag{
			Name:        "fcp-global-queue",
			Usage:       "Put inserts on the node's global queue",
			Value:       defaults.GlobalQueue,
			Destination: &c.GlobalQueue,
			Sources:     cli.EnvVars("RELEASER_FCP_GLOBAL_QUEUE"),
		},
	}
}

// Build creates an FCP client. The connection is opened lazily on first use.
func (c *FCP) Build() *fcp.Client {
	return fcp.New(c.Host, c.Port, fcp.WithPutOptions(fcp.PutOptions{
		Priority:    c.Priority,
		Persistence: c.Persistence,
		GlobalQueue: c.GlobalQueue,
	}))
}
