package model

// PipelineState is the single persisted document that makes every stage
// resumable. It lives at <workdir>/<edition>/state.json, is read fully at
// pipeline construction, and is rewritten after each completed stage.
//
// Field names mirror the document layout of earlier releases of this
// tooling so that editions published by either can be resumed.
type PipelineState struct {
	Release      *ReleaseRef                `json:"release,omitempty"`
	GithubRel    *FetchedReleaseRecord      `json:"github_release,omitempty"`
	ReleaseBody  string                     `json:"github_release_body,omitempty"`
	Assets       map[string]AssetRecord     `json:"assets,omitempty"`
	Packages     map[string]PackageRecord   `json:"packages,omitempty"`
	Changelogs   *ChangelogRecord           `json:"changelogs,omitempty"`
	CoreInfo     *CoreInfoRecord            `json:"core_info,omitempty"`
	Published    map[string]PublishRecord   `json:"published,omitempty"`
	Verification map[string]VerifyStateItem `json:"verification,omitempty"`
}

// FetchedReleaseRecord remembers which release was fetched and how.
type FetchedReleaseRecord struct {
	ID        int64  `json:"id"`
	TagName   string `json:"tag_name"`
	Source    string `json:"source"`
	FetchedAt string `json:"fetched_at"`
}

// AssetRecord caches one downloaded package asset, keyed by package key.
type AssetRecord struct {
	AssetID     int64  `json:"asset_id"`
	AssetName   string `json:"asset_name"`
	DownloadURL string `json:"browser_download_url"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// PackageRecord caches the network result for one inserted or mirrored
// package. Exactly one of CHK and StoreURL is set.
type PackageRecord struct {
	CHK       string `json:"chk,omitempty"`
	StoreURL  string `json:"store_url,omitempty"`
	Size      int64  `json:"size"`
	AssetName string `json:"asset_name"`
}

// ChangelogRecord caches short/full changelog uploads, keyed by content
// hash so a re-run with unchanged text reuses the recorded keys.
type ChangelogRecord struct {
	ChangelogCHK     string `json:"changelog_chk,omitempty"`
	FullChangelogCHK string `json:"fullchangelog_chk,omitempty"`
	ShortPath        string `json:"short_path,omitempty"`
	FullPath         string `json:"full_path,omitempty"`
	ShortSHA256      string `json:"short_sha256,omitempty"`
	FullSHA256       string `json:"full_sha256,omitempty"`
}

// CoreInfoRecord remembers the generated descriptor file and its hash.
type CoreInfoRecord struct {
	Path        string `json:"path"`
	SHA256      string `json:"sha256"`
	GeneratedAt string `json:"generated_at"`
}

// PublishRecord remembers one publish per target, keyed by descriptor
// hash and destination so an identical re-publish becomes a no-op.
type PublishRecord struct {
	DescriptorURI string `json:"descriptor_uri"`
	ResultURI     string `json:"result_uri"`
	CoreSHA256    string `json:"core_sha256"`
	PublishedAt   string `json:"published_at"`
}

// VerifyStateItem is the per-target verification summary kept in state;
// the full report lives in verify.json.
type VerifyStateItem struct {
	OK            bool   `json:"ok"`
	CheckedAt     string `json:"checked_at"`
	DescriptorURI string `json:"descriptor_uri"`
	VerifyReport  string `json:"verify_report"`
}
