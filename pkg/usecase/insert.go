package usecase

import (
	"context"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// chkInsertURI asks the store to derive the content key from the payload.
const chkInsertURI = "CHK@"

// InsertArtifacts inserts every cached package asset into the content
// store and records the resulting content keys. An asset whose package
// record already carries a content key and an identical size is skipped;
// the recorded key is reused. Missing asset records (or missing local
// files) trigger FetchAssets first.
func (p *Pipeline) InsertArtifacts(ctx context.Context, store interfaces.ContentStore) (map[string]model.PackageRecord, error) {
	logger := ctxlog.From(ctx)

	if p.dryRun {
		logger.Info("[dry-run] Would insert package artifacts as content keys")
		return p.state.Packages, nil
	}
	if store == nil {
		return nil, goerr.New("content store client is required for insert-artifacts",
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
		if existing, ok := packages[packageKey]; ok && existing.CHK != "" && existing.Size == assetRecord.Size {
			logger.Info("Reusing existing content key", "package", packageKey, "chk", existing.CHK)
			continue
		}

		assetPath := fsx.FromWorkdirRelative(assetRecord.Path, p.workdir)
		logger.Info("Inserting package artifact", "package", packageKey, "path", assetPath)
		chk, err := store.PutFile(ctx, chkInsertURI, assetPath)
		if err != nil {
			return nil, err
		}
		packages[packageKey] = model.PackageRecord{
			CHK:       chk,
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
