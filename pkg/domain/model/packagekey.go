package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// SupportedArches are the architecture tokens recognized in asset names.
var SupportedArches = []string{"amd64", "arm64"}

// TarGzExtension needs special casing because it spans two dots.
const TarGzExtension = "tar.gz"

// SupportedExtensions is the package format whitelist.
var SupportedExtensions = []string{
	"deb", "rpm", "dmg", "exe", "msi", TarGzExtension, "zip", "pkg", "flatpak", "snap",
}

var ignoredExactNames = map[string]struct{}{
	"sha256sums.txt": {},
	"cryptad.jar":    {},
}

var archTokenRe = regexp.MustCompile(`(?:^|[-_.])(amd64|arm64)(?:[-_.]|$)`)

// MappedAsset pairs a release asset with its package key.
type MappedAsset struct {
	PackageKey string
	Asset      ReleaseAsset
	Arch       string
	Extension  string
}

// IsIgnoredAsset reports whether a release asset never participates in
// package mapping (checksum manifests, signatures, the bare jar).
func IsIgnoredAsset(filename string) bool {
	lowered := strings.ToLower(filename)
	if _, ok := ignoredExactNames[lowered]; ok {
		return true
	}
	return strings.HasSuffix(lowered, ".sig") || strings.HasSuffix(lowered, ".sig.txt")
}

// DetectExtension returns the supported package extension of a filename,
// or "" when the file is not a package.
func DetectExtension(filename string) string {
	lowered := strings.ToLower(filename)
	if strings.HasSuffix(lowered, "."+TarGzExtension) {
		return TarGzExtension
	}
	for _, ext := range SupportedExtensions {
		if ext == TarGzExtension {
			continue
		}
		if strings.HasSuffix(lowered, "."+ext) {
			return ext
		}
	}
	return ""
}

// MapAssetName classifies an asset filename into a package key.
//
// It returns ok=false for ignored and non-package assets. It returns an
// error for package-like assets that carry no supported arch token, since
// silently skipping those would drop a real artifact from the descriptor.
func MapAssetName(filename string) (packageKey, arch, ext string, ok bool, err error) {
	if IsIgnoredAsset(filename) {
		return "", "", "", false, nil
	}

	ext = DetectExtension(filename)
	if ext == "" {
		return "", "", "", false, nil
	}

	stem := filename[:len(filename)-len("."+ext)]
	m := archTokenRe.FindStringSubmatch(strings.ToLower(stem))
	if m == nil {
		return "", "", "", false, fmt.Errorf(
			"asset %q looks like a package (.%s) but has no supported arch token (amd64 or arm64)",
			filename, ext)
	}
	arch = m[1]
	return arch + "." + ext, arch, ext, true, nil
}

// MapReleaseAssets classifies all assets of a release into package keys.
// All unmapped and conflicting findings are accumulated into a single
// configuration error so the operator sees every problem at once.
func MapReleaseAssets(assets []ReleaseAsset) (map[string]MappedAsset, error) {
	mapped := map[string]MappedAsset{}
	var findings []string

	for _, asset := range assets {
		packageKey, arch, ext, ok, err := MapAssetName(asset.Name)
		if err != nil {
			findings = append(findings, err.Error())
			continue
		}
		if !ok {
			continue
		}
		if prev, exists := mapped[packageKey]; exists {
			findings = append(findings, fmt.Sprintf(
				"package key %q matched both %q and %q", packageKey, prev.Asset.Name, asset.Name))
			continue
		}
		mapped[packageKey] = MappedAsset{
			PackageKey: packageKey,
			Asset:      asset,
			Arch:       arch,
			Extension:  ext,
		}
	}

	if len(findings) > 0 {
		sort.Strings(findings)
		return nil, goerr.New("release assets contain unmapped or conflicting package files",
			goerr.T(types.TagConfig), goerr.V("findings", findings))
	}
	if len(mapped) == 0 {
		return nil, goerr.New("no package assets were detected in the release",
			goerr.T(types.TagConfig))
	}
	return mapped, nil
}

// ValidatePackageKey checks the <arch>.<ext> shape against the fixed
// whitelists. It returns a finding string, empty when valid.
func ValidatePackageKey(packageKey string) string {
	arch, ext, found := strings.Cut(packageKey, ".")
	if !found {
		return fmt.Sprintf("invalid package key %q: expected <arch>.<ext> format", packageKey)
	}
	if !contains(SupportedArches, arch) {
		return fmt.Sprintf("invalid package key %q: arch must be one of %v", packageKey, SupportedArches)
	}
	if !contains(SupportedExtensions, ext) {
		return fmt.Sprintf("invalid package key %q: extension must be one of %v", packageKey, SupportedExtensions)
	}
	return ""
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
