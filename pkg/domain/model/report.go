package model

// Fetch sources recorded in a VerifyReport.
const (
	FetchSourceRequested = "requested"
	FetchSourceFallback  = "published_result_uri"
)

// ChkCheck records the retrievability probe outcome for one referenced
// content key.
type ChkCheck struct {
	Kind        string `json:"kind"`
	Key         string `json:"key"`
	CHK         string `json:"chk"`
	Retrievable bool   `json:"retrievable"`
}

// VerifyReport is the persisted evidence record for one verification run.
// It is written regardless of outcome so failed runs stay auditable.
type VerifyReport struct {
	DescriptorURI         string     `json:"descriptor_uri"`
	DescriptorURIResolved string     `json:"descriptor_uri_resolved,omitempty"`
	CheckedAt             string     `json:"checked_at"`
	Deep                  bool       `json:"deep"`
	SchemaErrors          []string   `json:"schema_errors"`
	IdentityErrors        []string   `json:"identity_errors"`
	FetchFallbackUsed     bool       `json:"descriptor_fetch_fallback_used"`
	FetchSource           string     `json:"descriptor_fetch_source"`
	PrimaryFetchError     string     `json:"primary_fetch_error,omitempty"`
	DescriptorVersion     string     `json:"descriptor_version,omitempty"`
	DescriptorPageURL     string     `json:"descriptor_release_page_url,omitempty"`
	ChkChecks             []ChkCheck `json:"chk_checks"`
	OK                    bool       `json:"ok"`
	DryRun                bool       `json:"dry_run"`
}
