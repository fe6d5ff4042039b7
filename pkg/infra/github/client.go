// Package github implements the release-host collaborator against the
// GitHub REST API, with an alternative backend shelling out to the `gh`
// CLI (useful for draft releases the API hides from token scopes).
package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	gh "github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
)

type apiClient struct {
	client *gh.Client
	token  string
}

// NewClient creates a release-host client backed by the GitHub REST API.
// An empty token falls back to GITHUB_TOKEN from the environment; no
// token means unauthenticated access (fine for public releases).
func NewClient(token string) interfaces.ReleaseHost {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &apiClient{client: client, token: token}
}

func (c *apiClient) Name() string { return string(types.SourceAPI) }

// GetRelease fetches release metadata including the asset list.
func (c *apiClient) GetRelease(ctx context.Context, owner, repo, tag string) (*model.Release, error) {
	release, resp, err := c.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, goerr.Wrap(err, "GitHub release not found",
				goerr.T(types.TagCollaborator),
				goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("tag", tag))
		}
		return nil, goerr.Wrap(err, "GitHub API request failed",
			goerr.T(types.TagCollaborator),
			goerr.V("owner", owner), goerr.V("repo", repo), goerr.V("tag", tag))
	}

	assets := make([]model.ReleaseAsset, 0, len(release.Assets))
	for _, asset := range release.Assets {
		assets = append(assets, model.ReleaseAsset{
			ID:          asset.GetID(),
			Name:        asset.GetName(),
			DownloadURL: asset.GetBrowserDownloadURL(),
			Size:        int64(asset.GetSize()),
			ContentType: asset.GetContentType(),
		})
	}

	return &model.Release{
		ID:     release.GetID(),
		Tag:    release.GetTagName(),
		Body:   release.GetBody(),
		Assets: assets,
		Raw:    releaseRaw(release),
	}, nil
}

// DownloadAsset streams one asset to dest via a temp file so a partial
// download never looks like a cached asset.
func (c *apiClient) DownloadAsset(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create download directory", goerr.V("path", dest))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create download request",
			goerr.V("url", asset.DownloadURL))
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "update-releaser/"+types.Version)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to download asset",
			goerr.T(types.TagCollaborator), goerr.V("url", asset.DownloadURL))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return goerr.New("failed to download asset",
			goerr.T(types.TagCollaborator),
			goerr.V("url", asset.DownloadURL), goerr.V("status", resp.StatusCode))
	}

	return writeDownload(resp.Body, dest)
}

// writeDownload copies payload into dest through a .tmp sibling and an
// atomic rename.
func writeDownload(payload io.Reader, dest string) error {
	tempPath := dest + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return goerr.Wrap(err, "failed to create temp download file", goerr.V("path", tempPath))
	}
	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		os.Remove(tempPath)
		return goerr.Wrap(err, "failed to write downloaded asset",
			goerr.T(types.TagCollaborator), goerr.V("path", tempPath))
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return goerr.Wrap(err, "failed to close downloaded asset", goerr.V("path", tempPath))
	}
	if err := os.Rename(tempPath, dest); err != nil {
		return goerr.Wrap(err, "failed to move downloaded asset into place", goerr.V("path", dest))
	}
	return nil
}

// releaseRaw keeps the host's full response for the on-disk snapshot.
func releaseRaw(release *gh.RepositoryRelease) map[string]any {
	encoded, err := json.Marshal(release)
	if err != nil {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(encoded, &raw); err != nil {
		return nil
	}
	return raw
}
