package config

import (
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/infra/slackmsg"
)

// Notify holds notification configuration
type Notify struct {
	SlackWebhookURL string `masq:"secret"`
}

// Flags returns CLI flags for notification configuration
func (c *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook",
			Usage:       "Slack incoming webhook URL for pipeline notifications",
			Destination: &c.SlackWebhookURL,
			Sources:     cli.EnvVars("RELEASER_SLACK_WEBHOOK"),
		},
	}
}

// Build creates the notifier, or nil when notification is not configured.
func (c *Notify) Build() interfaces.Notifier {
	if c.SlackWebhookURL == "" {
		return nil
	}
	return slackmsg.New(c.SlackWebhookURL)
}
