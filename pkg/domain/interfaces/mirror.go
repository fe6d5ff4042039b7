package interfaces

import "context"

// ObjectStore is an external blob store used to mirror package artifacts
// as plain HTTPS downloads (the store_url branch of the descriptor).
type ObjectStore interface {
	// Upload stores a local file under objectName and returns the public
	// download URL.
	Upload(ctx context.Context, localPath, objectName string) (string, error)
}
