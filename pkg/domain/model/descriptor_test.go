package model_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/domain/model"
)

func sizePtr(v int64) *int64 { return &v }

func validDescriptor() *model.CoreInfoDescriptor {
	return &model.CoreInfoDescriptor{
		Version:          "12",
		ReleasePageURL:   "https://github.com/cryptad/cryptad/releases/tag/v12",
		ChangelogCHK:     "CHK@shortchangelog",
		FullChangelogCHK: "freenet:CHK@fullchangelog",
		Packages: map[string]model.PackageDescriptor{
			"amd64.deb":    {CHK: "CHK@debkey", Size: sizePtr(1024)},
			"arm64.tar.gz": {StoreURL: "https://storage.googleapis.com/bucket/12/cryptad-arm64.tar.gz", Size: sizePtr(2048)},
		},
	}
}

func TestDescriptorValidate_Valid(t *testing.T) {
	gt.Value(t, len(validDescriptor().Validate())).Equal(0)
}

func TestDescriptorValidate_Findings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *model.CoreInfoDescriptor)
		finding string
	}{
		{
			"missing version",
			func(d *model.CoreInfoDescriptor) { d.Version = "" },
			"'version' must be a non-empty string",
		},
		{
			"missing release page url",
			func(d *model.CoreInfoDescriptor) { d.ReleasePageURL = "" },
			"'release_page_url' must be a non-empty string",
		},
		{
			"bad changelog chk",
			func(d *model.CoreInfoDescriptor) { d.ChangelogCHK = "USK@notachk" },
			"'changelog_chk' must be a CHK URI when present",
		},
		{
			"empty packages",
			func(d *model.CoreInfoDescriptor) { d.Packages = nil },
			"'packages' must not be empty",
		},
		{
			"invalid package key",
			func(d *model.CoreInfoDescriptor) {
				d.Packages["i386.deb"] = model.PackageDescriptor{CHK: "CHK@x"}
			},
			"invalid package key",
		},
		{
			"chk and store_url together",
			func(d *model.CoreInfoDescriptor) {
				d.Packages["amd64.deb"] = model.PackageDescriptor{CHK: "CHK@x", StoreURL: "https://example.com/x"}
			},
			"exactly one of 'chk' or 'store_url'",
		},
		{
			"neither chk nor store_url",
			func(d *model.CoreInfoDescriptor) {
				d.Packages["amd64.deb"] = model.PackageDescriptor{Size: sizePtr(1)}
			},
			"exactly one of 'chk' or 'store_url'",
		},
		{
			"negative size",
			func(d *model.CoreInfoDescriptor) {
				d.Packages["amd64.deb"] = model.PackageDescriptor{CHK: "CHK@x", Size: sizePtr(-1)}
			},
			"invalid 'size'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			descriptor := validDescriptor()
			tt.mutate(descriptor)
			findings := descriptor.Validate()
			gt.Number(t, len(findings)).Greater(0)
			gt.String(t, strings.Join(findings, "\n")).Contains(tt.finding)
		})
	}
}

func TestDescriptorRender_Deterministic(t *testing.T) {
	first, err := validDescriptor().Render()
	gt.NoError(t, err)
	second, err := validDescriptor().Render()
	gt.NoError(t, err)
	gt.Value(t, first).Equal(second)

	gt.Value(t, strings.HasSuffix(first, "\n")).Equal(true)
	gt.String(t, first).Contains("  \"version\": \"12\"")

	// Package keys come out sorted.
	gt.Value(t, strings.Index(first, "amd64.deb") < strings.Index(first, "arm64.tar.gz")).Equal(true)

	// URLs must not be HTML-escaped: & stays literal.
	descriptor := validDescriptor()
	descriptor.ReleasePageURL = "https://github.com/a/b/releases/tag/v1"
	pkg := descriptor.Packages["arm64.tar.gz"]
	pkg.StoreURL = "https://example.com/file?a=1&b=2"
	descriptor.Packages["arm64.tar.gz"] = pkg
	rendered, err := descriptor.Render()
	gt.NoError(t, err)
	gt.String(t, rendered).Contains("a=1&b=2")
}

func TestDescriptorRender_RefusesInvalid(t *testing.T) {
	descriptor := validDescriptor()
	descriptor.Version = ""
	_, err := descriptor.Render()
	gt.Error(t, err)
}

func TestValidateDocument(t *testing.T) {
	rendered, err := validDescriptor().Render()
	gt.NoError(t, err)
	var document any
	gt.NoError(t, json.Unmarshal([]byte(rendered), &document))
	gt.Value(t, len(model.ValidateDocument(document))).Equal(0)
}

func TestValidateDocument_Findings(t *testing.T) {
	tests := []struct {
		name     string
		document string
		finding  string
	}{
		{"non-object root", `[1, 2]`, "descriptor root must be a JSON object"},
		{"version wrong type", `{"version": 12, "release_page_url": "https://x", "packages": {"amd64.deb": {"chk": "CHK@x"}}}`, "'version' must be a non-empty string"},
		{"packages missing", `{"version": "12", "release_page_url": "https://x"}`, "'packages' must be an object"},
		{"fractional size", `{"version": "12", "release_page_url": "https://x", "packages": {"amd64.deb": {"chk": "CHK@x", "size": 10.5}}}`, "invalid 'size'"},
		{"both channels", `{"version": "12", "release_page_url": "https://x", "packages": {"amd64.deb": {"chk": "CHK@x", "store_url": "https://y"}}}`, "exactly one of 'chk' or 'store_url'"},
		{"bad changelog type", `{"version": "12", "release_page_url": "https://x", "changelog_chk": 5, "packages": {"amd64.deb": {"chk": "CHK@x"}}}`, "'changelog_chk' must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var document any
			gt.NoError(t, json.Unmarshal([]byte(tt.document), &document))
			findings := model.ValidateDocument(document)
			gt.Number(t, len(findings)).Greater(0)
			gt.String(t, strings.Join(findings, "\n")).Contains(tt.finding)
		})
	}
}

func TestValidateKeyBase(t *testing.T) {
	base, err := model.ValidateKeyBase("  USK@abc,def,AQACAAE/cryptad/info/ \n")
	gt.NoError(t, err)
	gt.Value(t, base).Equal("USK@abc,def,AQACAAE/cryptad/info/")

	_, err = model.ValidateKeyBase("")
	gt.Error(t, err)
	_, err = model.ValidateKeyBase("USK@abc,def,AQACAAE/cryptad/")
	gt.Error(t, err)
}

func TestDescriptorTargetURI(t *testing.T) {
	uri, err := model.DescriptorTargetURI("USK@abc/cryptad/info/", "12")
	gt.NoError(t, err)
	gt.Value(t, uri).Equal("USK@abc/cryptad/info/12")

	_, err = model.DescriptorTargetURI("USK@abc/cryptad", "12")
	gt.Error(t, err)
}
