package github

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// ghRelease mirrors the JSON shape of `gh release view --json ...`.
type ghRelease struct {
	DatabaseID int64     `json:"databaseId"`
	TagName    string    `json:"tagName"`
	Body       string    `json:"body"`
	IsDraft    bool      `json:"isDraft"`
	Assets     []ghAsset `json:"assets"`
}

type ghAsset struct {
	APIURL      string `json:"apiUrl"`
	ContentType string `json:"contentType"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

type ghCLIClient struct {
	binary string
}

// NewGHClient creates a release-host client that shells out to the `gh`
// CLI. Unlike the REST API path it can see draft releases the invoking
// user has access to.
func NewGHClient() interfaces.ReleaseHost {
	return &ghCLIClient{binary: "gh"}
}

func (c *ghCLIClient) Name() string { return string(types.SourceGH) }

func (c *ghCLIClient) GetRelease(ctx context.Context, owner, repo, tag string) (*model.Release, error) {
	output, err := c.run(ctx, "release", "view", tag,
		"--repo", owner+"/"+repo,
		"--json", "databaseId,tagName,body,isDraft,assets")
	if err != nil {
		return nil, err
	}

	var release ghRelease
	if err := json.Unmarshal(output, &release); err != nil {
		return nil, goerr.Wrap(err, "failed to decode gh release output",
			goerr.T(types.TagCollaborator), goerr.V("tag", tag))
	}

	assets := make([]model.ReleaseAsset, 0, len(release.Assets))
	for _, asset := range release.Assets {
		assets = append(assets, model.ReleaseAsset{
			Name:        asset.Name,
			DownloadURL: asset.URL,
			Size:        asset.Size,
			ContentType: asset.ContentType,
		})
	}

	var raw map[string]any
	if err := json.Unmarshal(output, &raw); err != nil {
		raw = nil
	}

	return &model.Release{
		ID:     release.DatabaseID,
		Tag:    release.TagName,
		Body:   release.Body,
		Assets: assets,
		Raw:    raw,
	}, nil
}

// DownloadAsset uses `gh release download` into a scratch directory, then
// moves the file into place. gh refuses to clobber, so the scratch dir
// keeps reruns safe.
func (c *ghCLIClient) DownloadAsset(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create download directory", goerr.V("path", dest))
	}
	scratch, err := os.MkdirTemp(filepath.Dir(dest), ".gh-download-*")
	if err != nil {
		return goerr.Wrap(err, "failed to create scratch download directory")
	}
	defer os.RemoveAll(scratch)

	if _, err := c.run(ctx, "release", "download", ref.Tag,
		"--repo", ref.Owner+"/"+ref.Repo,
		"--pattern", asset.Name,
		"--dir", scratch); err != nil {
		return err
	}

	downloaded := filepath.Join(scratch, asset.Name)
	if _, err := os.Stat(downloaded); err != nil {
		return goerr.Wrap(err, "gh did not produce the requested asset",
			goerr.T(types.TagCollaborator), goerr.V("asset", asset.Name))
	}
	if err := os.Rename(downloaded, dest); err != nil {
		return goerr.Wrap(err, "failed to move downloaded asset into place", goerr.V("path", dest))
	}
	return nil
}

func (c *ghCLIClient) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, goerr.Wrap(err, "gh command failed",
			goerr.T(types.TagCollaborator),
			goerr.V("args", args),
			goerr.V("stderr", stderr.String()))
	}
	return stdout.Bytes(), nil
}

type autoClient struct {
	api interfaces.ReleaseHost
	gh  interfaces.ReleaseHost
}

// NewAutoClient tries the REST API first and falls back to the gh CLI,
// which covers draft releases a plain token cannot see.
func NewAutoClient(token string) interfaces.ReleaseHost {
	return &autoClient{api: NewClient(token), gh: NewGHClient()}
}

func (c *autoClient) Name() string { return string(types.SourceAuto) }

func (c *autoClient) GetRelease(ctx context.Context, owner, repo, tag string) (*model.Release, error) {
	release, apiErr := c.api.GetRelease(ctx, owner, repo, tag)
	if apiErr == nil {
		return release, nil
	}
	ctxlog.From(ctx).Warn("GitHub API fetch failed, falling back to gh CLI", "error", apiErr)

	release, ghErr := c.gh.GetRelease(ctx, owner, repo, tag)
	if ghErr != nil {
		return nil, goerr.Wrap(ghErr, "release fetch failed via both the API and the gh CLI",
			goerr.T(types.TagCollaborator), goerr.V("api_error", apiErr.Error()))
	}
	return release, nil
}

func (c *autoClient) DownloadAsset(ctx context.Context, ref *model.ReleaseRef, asset model.ReleaseAsset, dest string) error {
	apiErr := c.api.DownloadAsset(ctx, ref, asset, dest)
	if apiErr == nil {
		return nil
	}
	ctxlog.From(ctx).Warn("GitHub API download failed, falling back to gh CLI",
		"asset", asset.Name, "error", apiErr)

	if ghErr := c.gh.DownloadAsset(ctx, ref, asset, dest); ghErr != nil {
		return goerr.Wrap(ghErr, "asset download failed via both the API and the gh CLI",
			goerr.T(types.TagCollaborator),
			goerr.V("asset", asset.Name), goerr.V("api_error", apiErr.Error()))
	}
	return nil
}
