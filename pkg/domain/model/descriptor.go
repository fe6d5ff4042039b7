package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// chkPrefixes are the accepted spellings of a content-address key URI.
var chkPrefixes = []string{"CHK@", "freenet:CHK@"}

// KeyBaseSuffix is the fixed final segment of a versioned update pointer
// base. Appending an edition to the base yields the per-edition target.
const KeyBaseSuffix = "/info/"

// PackageDescriptor describes one published package. Exactly one of CHK
// and StoreURL must be set.
type PackageDescriptor struct {
	CHK      string `json:"chk,omitempty"`
	StoreURL string `json:"store_url,omitempty"`
	Size     *int64 `json:"size,omitempty"`
}

// CoreInfoDescriptor is the document published under the update pointer.
type CoreInfoDescriptor struct {
	Version          string                       `json:"version"`
	ReleasePageURL   string                       `json:"release_page_url"`
	ChangelogCHK     string                       `json:"changelog_chk,omitempty"`
	FullChangelogCHK string                       `json:"fullchangelog_chk,omitempty"`
	Packages         map[string]PackageDescriptor `json:"packages"`
}

// Validate returns accumulated schema findings. An empty slice means the
// descriptor is valid. Findings are data, not errors: the caller decides
// whether they are fatal.
func (d *CoreInfoDescriptor) Validate() []string {
	var findings []string

	if d.Version == "" {
		findings = append(findings, "'version' must be a non-empty string")
	}
	if d.ReleasePageURL == "" {
		findings = append(findings, "'release_page_url' must be a non-empty string")
	}
	for field, value := range map[string]string{
		"changelog_chk":     d.ChangelogCHK,
		"fullchangelog_chk": d.FullChangelogCHK,
	} {
		if value != "" && !hasCHKPrefix(value) {
			findings = append(findings, fmt.Sprintf("'%s' must be a CHK URI when present", field))
		}
	}

	if len(d.Packages) == 0 {
		findings = append(findings, "'packages' must not be empty")
		return findings
	}
	for packageKey, pkg := range d.Packages {
		if finding := ValidatePackageKey(packageKey); finding != "" {
			findings = append(findings, finding)
			continue
		}
		findings = append(findings, pkg.validate(packageKey)...)
	}
	return findings
}

func (p PackageDescriptor) validate(packageKey string) []string {
	var findings []string
	hasCHK := p.CHK != ""
	hasStoreURL := p.StoreURL != ""
	if hasCHK == hasStoreURL {
		findings = append(findings, fmt.Sprintf(
			"package %q must contain exactly one of 'chk' or 'store_url'", packageKey))
	}
	if hasCHK && !hasCHKPrefix(p.CHK) {
		findings = append(findings, fmt.Sprintf("package %q has invalid 'chk' value", packageKey))
	}
	if p.Size != nil && *p.Size < 0 {
		findings = append(findings, fmt.Sprintf("package %q has invalid 'size'; must be >= 0", packageKey))
	}
	return findings
}

// Render serializes the descriptor deterministically: stable field order,
// sorted package keys, two-space indentation, trailing newline. Rendering
// a descriptor with schema findings is refused.
func (d *CoreInfoDescriptor) Render() (string, error) {
	if findings := d.Validate(); len(findings) > 0 {
		return "", goerr.New("descriptor failed schema validation",
			goerr.T(types.TagIntegrity), goerr.V("findings", findings))
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", goerr.Wrap(err, "failed to render descriptor", goerr.T(types.TagIntegrity))
	}
	return buf.String(), nil
}

// ValidateDocument applies the descriptor schema rules to an untyped
// decoded document. The verifier uses it so that a publish bug producing
// a malformed document is still caught against the published bytes.
func ValidateDocument(document any) []string {
	root, ok := document.(map[string]any)
	if !ok {
		return []string{"descriptor root must be a JSON object"}
	}

	var findings []string
	if s, ok := root["version"].(string); !ok || s == "" {
		findings = append(findings, "'version' must be a non-empty string")
	}
	if s, ok := root["release_page_url"].(string); !ok || s == "" {
		findings = append(findings, "'release_page_url' must be a non-empty string")
	}

	for _, field := range []string{"changelog_chk", "fullchangelog_chk"} {
		value, present := root[field]
		if !present || value == nil {
			continue
		}
		s, ok := value.(string)
		if !ok {
			findings = append(findings, fmt.Sprintf("'%s' must be a string when present", field))
			continue
		}
		if !hasCHKPrefix(s) {
			findings = append(findings, fmt.Sprintf("'%s' must be a CHK URI when present", field))
		}
	}

	packages, ok := root["packages"].(map[string]any)
	if !ok {
		findings = append(findings, "'packages' must be an object")
		return findings
	}
	if len(packages) == 0 {
		findings = append(findings, "'packages' must not be empty")
		return findings
	}

	for packageKey, value := range packages {
		if finding := ValidatePackageKey(packageKey); finding != "" {
			findings = append(findings, finding)
			continue
		}
		pkg, ok := value.(map[string]any)
		if !ok {
			findings = append(findings, fmt.Sprintf("package %q value must be an object", packageKey))
			continue
		}

		_, hasCHK := pkg["chk"]
		_, hasStoreURL := pkg["store_url"]
		if hasCHK == hasStoreURL {
			findings = append(findings, fmt.Sprintf(
				"package %q must contain exactly one of 'chk' or 'store_url'", packageKey))
		}
		if hasCHK {
			if s, ok := pkg["chk"].(string); !ok || !hasCHKPrefix(s) {
				findings = append(findings, fmt.Sprintf("package %q has invalid 'chk' value", packageKey))
			}
		}
		if hasStoreURL {
			if s, ok := pkg["store_url"].(string); !ok || s == "" {
				findings = append(findings, fmt.Sprintf("package %q has invalid 'store_url' value", packageKey))
			}
		}
		if rawSize, present := pkg["size"]; present {
			size, ok := rawSize.(float64)
			if !ok || size < 0 || size != float64(int64(size)) {
				findings = append(findings, fmt.Sprintf("package %q has invalid 'size'; must be >= 0", packageKey))
			}
		}
	}
	return findings
}

// ValidateKeyBase normalizes a versioned update pointer base and checks
// the fixed suffix segment.
func ValidateKeyBase(keyBase string) (string, error) {
	normalized := strings.TrimSpace(keyBase)
	if normalized == "" {
		return "", goerr.New("update key base URI is empty", goerr.T(types.TagConfig))
	}
	if !strings.HasSuffix(normalized, KeyBaseSuffix) {
		return "", goerr.New("update key base must end with '"+KeyBaseSuffix+"'",
			goerr.T(types.TagConfig))
	}
	return normalized, nil
}

// DescriptorTargetURI derives the per-edition publish target from a
// validated key base.
func DescriptorTargetURI(keyBase, edition string) (string, error) {
	normalized, err := ValidateKeyBase(keyBase)
	if err != nil {
		return "", err
	}
	return normalized + edition, nil
}

func hasCHKPrefix(value string) bool {
	for _, prefix := range chkPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
