package interfaces

import (
	"context"

	"github.com/cryptad/update-releaser/pkg/domain/model"
)

// ReleaseHost is the remote release host collaborator.
type ReleaseHost interface {
	// GetRelease fetches release metadata including the asset list.
	GetRelease(ctx context.Context, owner, repo, tag string) (*model.Release, error)

	// DownloadAsset downloads one release asset to dest.
	DownloadAsset(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error

	// Name identifies which backend actually served the request, for the
	// fetched_at/source bookkeeping in state.
	Name() string
}
