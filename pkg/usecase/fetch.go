package usecase

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// FetchAssets obtains the release's asset list from the release host,
// classifies each asset into a package key, downloads what is missing,
// and records per-asset content hashes. When every cached asset is still
// on disk the stage is a no-op.
func (p *Pipeline) FetchAssets(ctx context.Context) (map[string]model.AssetRecord, error) {
	logger := ctxlog.From(ctx)

	if p.dryRun {
		logger.Info("[dry-run] Would fetch release assets",
			"owner", p.ref.Owner, "repo", p.ref.Repo, "tag", p.ref.Tag)
		return p.state.Assets, nil
	}

	if p.cachedAssetsExist() {
		logger.Info("Reusing previously downloaded assets", "workdir", p.workdir)
		return p.state.Assets, nil
	}
	if p.host == nil {
		return nil, goerr.New("release host client is required for fetch-assets",
			goerr.T(types.TagConfig))
	}

	release, err := p.host.GetRelease(ctx, p.ref.Owner, p.ref.Repo, p.ref.Tag)
	if err != nil {
		return nil, err
	}
	if err := p.saveReleaseSnapshot(release); err != nil {
		return nil, err
	}

	mapped, err := model.MapReleaseAssets(release.Assets)
	if err != nil {
		return nil, err
	}

	assetDir := filepath.Join(p.workdir, "assets")
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create asset directory", goerr.V("path", assetDir))
	}

	records := map[string]model.AssetRecord{}
	for _, packageKey := range sortedKeys(mapped) {
		asset := mapped[packageKey].Asset
		destination := filepath.Join(assetDir, asset.Name)

		if info, err := os.Stat(destination); err == nil && info.Size() == asset.Size {
			logger.Info("Using cached asset", "name", asset.Name)
		} else {
			logger.Info("Downloading asset", "name", asset.Name, "size", asset.Size)
			if err := p.host.DownloadAsset(ctx, p.ref, asset, destination); err != nil {
				return nil, err
			}
		}

		info, err := os.Stat(destination)
		if err != nil {
			return nil, goerr.Wrap(err, "downloaded asset is missing",
				goerr.T(types.TagCollaborator), goerr.V("path", destination))
		}
		digest, err := fsx.SHA256File(destination)
		if err != nil {
			return nil, err
		}
		records[packageKey] = model.AssetRecord{
			AssetID:     asset.ID,
			AssetName:   asset.Name,
			DownloadURL: asset.DownloadURL,
			Path:        fsx.ToWorkdirRelative(destination, p.workdir),
			Size:        info.Size(),
			SHA256:      digest,
		}
	}

	p.state.GithubRel = &model.FetchedReleaseRecord{
		ID:        release.ID,
		TagName:   release.Tag,
		Source:    p.host.Name(),
		FetchedAt: fsx.NowUTC(),
	}
	p.state.ReleaseBody = release.Body
	p.state.Assets = records
	if err := p.saveState(); err != nil {
		return nil, err
	}
	return records, nil
}

// ensureReleaseBody returns the cached release body, fetching the release
// again when state has none. A cached body is trusted as-is: the cached
// release id is not re-validated against a fresh fetch (accepted
// non-invariant).
func (p *Pipeline) ensureReleaseBody(ctx context.Context) (string, error) {
	if p.state.ReleaseBody != "" {
		return p.state.ReleaseBody, nil
	}
	if p.host == nil {
		return "", goerr.New("release host client is required to fetch the release body",
			goerr.T(types.TagConfig))
	}

	release, err := p.host.GetRelease(ctx, p.ref.Owner, p.ref.Repo, p.ref.Tag)
	if err != nil {
		return "", err
	}
	if err := p.saveReleaseSnapshot(release); err != nil {
		return "", err
	}
	p.state.GithubRel = &model.FetchedReleaseRecord{
		ID:        release.ID,
		TagName:   release.Tag,
		Source:    p.host.Name(),
		FetchedAt: fsx.NowUTC(),
	}
	p.state.ReleaseBody = release.Body
	if err := p.saveState(); err != nil {
		return "", err
	}
	return release.Body, nil
}

func (p *Pipeline) saveReleaseSnapshot(release *model.Release) error {
	if release.Raw == nil {
		return nil
	}
	return fsx.SaveJSON(filepath.Join(p.workdir, "release.json"), release.Raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
