package interfaces

import "context"

// Notifier delivers operator-facing one-line notifications.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
