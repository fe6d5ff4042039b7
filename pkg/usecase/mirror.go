package usecase

import (
	"context"
	"path"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// MirrorArtifacts uploads cached package assets to an external blob store
// and records store_url package entries. It only fills gaps: a package
// that already carries a content key or a store URL with matching size is
// left alone, because a descriptor package must reference exactly one
// distribution channel.
func (p *Pipeline) MirrorArtifacts(ctx context.Context, objects interfaces.ObjectStore) (map[string]model.PackageRecord, error) {
	logger := ctxlog.From(ctx)

	if p.dryRun {
		logger.Info("[dry-run] Would mirror package assets to the object store")
		return p.state.Packages, nil
	}
	if objects == nil {
		return nil, goerr.New("object store client is required for mirror-artifacts",
			goerr.T(types.TagConfig))
	}

	assets := p.state.Assets
	if !p.cachedAssetsExist() {
		var err error
		if assets, err = p.FetchAssets(ctx); err != nil {
			return nil, err
		}
	}

	packages := p.state.Packages
	if packages == nil {
		packages = map[string]model.PackageRecord{}
	}
	for _, packageKey := range sortedKeys(assets) {
		assetRecord := assets[packageKey]
		if existing, ok := packages[packageKey]; ok {
			if existing.Size == assetRecord.Size && (existing.CHK != "" || existing.StoreURL != "") {
				logger.Info("Reusing existing package record", "package", packageKey)
				continue
			}
		}

		assetPath := fsx.FromWorkdirRelative(assetRecord.Path, p.workdir)
		objectName := path.Join(p.ref.Edition, assetRecord.AssetName)
		logger.Info("Mirroring package artifact", "package", packageKey, "object", objectName)
		storeURL, err := objects.Upload(ctx, assetPath, objectName)
		if err != nil {
			return nil, err
		}
		packages[packageKey] = model.PackageRecord{
			StoreURL:  storeURL,
			Size:      assetRecord.Size,
			AssetName: assetRecord.AssetName,
		}
	}

	p.state.Packages = packages
	if err := p.saveState(); err != nil {
		return nil, err
	}
	return packages, nil
}
