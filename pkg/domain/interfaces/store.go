package interfaces

import (
	"context"
	"time"
)

// ContentStore is the content-addressed network collaborator. Insert
// operations block until the store acknowledges and carry no built-in
// timeout; fetch and probe operations take a caller-supplied timeout.
type ContentStore interface {
	// PutBytes inserts raw bytes at the given URI and returns the
	// resulting URI (a content key for CHK@ inserts).
	PutBytes(ctx context.Context, uri string, data []byte) (string, error)

	// PutFile inserts a local file at the given URI.
	PutFile(ctx context.Context, uri string, path string) (string, error)

	// GetBytes fetches the full payload behind a URI. Missing content is
	// an error.
	GetBytes(ctx context.Context, uri string, timeout time.Duration) ([]byte, error)

	// CheckRetrievable probes a URI without transferring the payload.
	// Absence is data, not an error.
	CheckRetrievable(ctx context.Context, uri string, timeout time.Duration) bool

	// GenerateKeypair creates a fresh signing key pair and returns the
	// private (publish-capable) and public (verify-only) pointer bases.
	GenerateKeypair(ctx context.Context) (privateBase, publicBase string, err error)

	// DerivePublicBase converts a private pointer base into its public
	// form.
	DerivePublicBase(ctx context.Context, privateBase string) (string, error)
}
