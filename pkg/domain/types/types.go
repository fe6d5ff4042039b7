package types

// Version is the application version, overridden at build time via ldflags.
var Version = "0.1.0"

// PublishTarget selects which update pointer a descriptor is published to.
type PublishTarget string

const (
	// TargetStaging publishes under the locally held staging key.
	TargetStaging PublishTarget = "staging"
	// TargetProduction publishes under the externally supplied production key.
	TargetProduction PublishTarget = "production"
)

// ParsePublishTarget validates a raw target string.
func ParsePublishTarget(s string) (PublishTarget, bool) {
	switch PublishTarget(s) {
	case TargetStaging, TargetProduction:
		return PublishTarget(s), true
	}
	return "", false
}

// ReleaseSource selects how release metadata and assets are fetched.
type ReleaseSource string

const (
	// SourceAuto tries the REST API first and falls back to the gh CLI.
	SourceAuto ReleaseSource = "auto"
	// SourceAPI uses the GitHub REST API only.
	SourceAPI ReleaseSource = "api"
	// SourceGH uses `gh release` commands, useful for draft releases.
	SourceGH ReleaseSource = "gh"
)

// ParseReleaseSource validates a raw source string.
func ParseReleaseSource(s string) (ReleaseSource, bool) {
	switch ReleaseSource(s) {
	case SourceAuto, SourceAPI, SourceGH:
		return ReleaseSource(s), true
	}
	return "", false
}
