// Package slackmsg posts pipeline notifications to a Slack incoming webhook.
package slackmsg

import (
	"context"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

type client struct {
	webhookURL string
}

// New creates a notifier for the given incoming-webhook URL.
func New(webhookURL string) interfaces.Notifier {
	return &client{webhookURL: webhookURL}
}

func (c *client) Notify(ctx context.Context, text string) error {
	msg := &slack.WebhookMessage{Text: text}
	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack notification",
			goerr.T(types.TagCollaborator))
	}
	return nil
}
