package model

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

var (
	releasePathRe = regexp.MustCompile(`^/([^/]+)/([^/]+)/releases/tag/([^/]+)$`)
	numericTagRe  = regexp.MustCompile(`^v(\d+)$`)
	safeSegmentRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// ReleaseRef identifies one release to publish. It is fixed at pipeline
// construction and must match the persisted state for the same edition.
type ReleaseRef struct {
	Owner          string `json:"owner"`
	Repo           string `json:"repo"`
	Tag            string `json:"tag"`
	Edition        string `json:"edition"`
	ReleasePageURL string `json:"release_page_url"`
}

// ReleaseAsset is one downloadable artifact attached to a release.
type ReleaseAsset struct {
	ID          int64
	Name        string
	DownloadURL string
	Size        int64
	ContentType string
}

// Release is the release host's view of a release, reduced to the fields
// the pipeline consumes. Raw carries the host's full response for the
// on-disk snapshot.
type Release struct {
	ID     int64
	Tag    string
	Body   string
	Assets []ReleaseAsset
	Raw    map[string]any
}

// DeriveEdition maps a Git tag to the edition label used as the
// descriptor version and as the path segment under the update pointer.
// Numeric tags of the form v<digits> collapse to the digits; anything
// else is sanitized into a safe token.
func DeriveEdition(tag string) string {
	if m := numericTagRe.FindStringSubmatch(tag); m != nil {
		return m[1]
	}
	return SanitizeEditionSegment(tag)
}

// SanitizeEditionSegment reduces a tag to [A-Za-z0-9._-] characters,
// falling back to a hash-derived token when nothing survives.
func SanitizeEditionSegment(tag string) string {
	sanitized := safeSegmentRe.ReplaceAllString(strings.TrimSpace(tag), "-")
	sanitized = strings.Trim(sanitized, ".-_")
	if sanitized != "" {
		return sanitized
	}
	digest := sha256.Sum256([]byte(tag))
	return "tag-" + hex.EncodeToString(digest[:])[:12]
}

// ParseReleasePageURL parses a GitHub release page URL of the form
// https://github.com/<owner>/<repo>/releases/tag/<tag> into a ReleaseRef.
func ParseReleasePageURL(releasePageURL string) (*ReleaseRef, error) {
	if releasePageURL == "" {
		return nil, goerr.New("release URL is required", goerr.T(types.TagConfig))
	}

	parsed, err := url.Parse(releasePageURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid release URL", goerr.T(types.TagConfig))
	}
	if parsed.Scheme != "https" {
		return nil, goerr.New("invalid release URL: expected https://github.com/<owner>/<repo>/releases/tag/<tag>",
			goerr.T(types.TagConfig), goerr.V("url", releasePageURL))
	}
	host := strings.ToLower(parsed.Host)
	if host != "github.com" && host != "www.github.com" {
		return nil, goerr.New("invalid release URL: expected host github.com",
			goerr.T(types.TagConfig), goerr.V("host", parsed.Host))
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return nil, goerr.New("invalid release URL: query string and fragments are not allowed",
			goerr.T(types.TagConfig), goerr.V("url", releasePageURL))
	}

	normalizedPath := strings.TrimRight(parsed.EscapedPath(), "/")
	m := releasePathRe.FindStringSubmatch(normalizedPath)
	if m == nil {
		return nil, goerr.New("invalid release URL path: expected /<owner>/<repo>/releases/tag/<tag>",
			goerr.T(types.TagConfig), goerr.V("path", parsed.Path))
	}

	owner, err := url.PathUnescape(m[1])
	if err != nil {
		return nil, goerr.Wrap(err, "invalid release URL owner segment", goerr.T(types.TagConfig))
	}
	repo, err := url.PathUnescape(m[2])
	if err != nil {
		return nil, goerr.Wrap(err, "invalid release URL repo segment", goerr.T(types.TagConfig))
	}
	tag, err := url.PathUnescape(m[3])
	if err != nil {
		return nil, goerr.Wrap(err, "invalid release URL tag segment", goerr.T(types.TagConfig))
	}
	if owner == "" || repo == "" || tag == "" {
		return nil, goerr.New("invalid release URL: owner, repo, and tag must all be non-empty",
			goerr.T(types.TagConfig))
	}
	if strings.Contains(tag, "/") {
		return nil, goerr.New("invalid release URL: tag may not contain '/'",
			goerr.T(types.TagConfig), goerr.V("tag", tag))
	}

	return &ReleaseRef{
		Owner:          owner,
		Repo:           repo,
		Tag:            tag,
		Edition:        DeriveEdition(tag),
		ReleasePageURL: releasePageURL,
	}, nil
}
