package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
)

const descriptorURI = "USK@pub,AQACAAE/updates/info/12"

func publishedStore(t *testing.T) *MockContentStore {
	t.Helper()
	store := newMockContentStore()
	descriptor := &model.CoreInfoDescriptor{
		Version:          "12",
		ReleasePageURL:   testReleaseRef().ReleasePageURL,
		ChangelogCHK:     "CHK@short",
		FullChangelogCHK: "CHK@full",
		Packages: map[string]model.PackageDescriptor{
			"amd64.deb": {CHK: "CHK@amd64deb"},
			"arm64.deb": {CHK: "CHK@arm64deb"},
		},
	}
	rendered, err := descriptor.Render()
	gt.NoError(t, err)
	store.stored[descriptorURI] = []byte(rendered)
	for _, chk := range []string{"CHK@short", "CHK@full", "CHK@amd64deb", "CHK@arm64deb"} {
		store.stored[chk] = []byte("content of " + chk)
	}
	return store
}

func TestVerifyPublishedDescriptor_OK(t *testing.T) {
	ctx := context.Background()
	store := publishedStore(t)
	workdir := t.TempDir()

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI:          descriptorURI,
		ExpectedVersion:        "12",
		ExpectedReleasePageURL: testReleaseRef().ReleasePageURL,
		Timeout:                time.Minute,
		Workdir:                workdir,
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(true)
	gt.Value(t, len(report.SchemaErrors)).Equal(0)
	gt.Value(t, len(report.IdentityErrors)).Equal(0)
	gt.Value(t, report.FetchFallbackUsed).Equal(false)
	gt.Value(t, report.FetchSource).Equal("requested")
	gt.Value(t, report.DescriptorVersion).Equal("12")

	// Packages in sorted order, changelogs after them.
	gt.Value(t, len(report.ChkChecks)).Equal(4)
	gt.Value(t, report.ChkChecks[0].Key).Equal("amd64.deb")
	gt.Value(t, report.ChkChecks[1].Key).Equal("arm64.deb")
	gt.Value(t, report.ChkChecks[2].Key).Equal("changelog_chk")
	gt.Value(t, report.ChkChecks[3].Key).Equal("fullchangelog_chk")

	// The evidence file is persisted.
	var persisted model.VerifyReport
	found, err := fsx.LoadJSON(filepath.Join(workdir, usecase.VerifyReportFileName), &persisted)
	gt.NoError(t, err)
	gt.Value(t, found).Equal(true)
	gt.Value(t, persisted.OK).Equal(true)
}

func TestVerifyPublishedDescriptor_FallbackURI(t *testing.T) {
	ctx := context.Background()
	store := publishedStore(t)
	fallbackURI := "USK@pub,AQACAAE/updates/info/12/descriptor-result"
	store.stored[fallbackURI] = store.stored[descriptorURI]
	delete(store.stored, descriptorURI)

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		FallbackURI:   fallbackURI,
		Timeout:       time.Minute,
		Workdir:       t.TempDir(),
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(true)
	gt.Value(t, report.FetchFallbackUsed).Equal(true)
	gt.Value(t, report.FetchSource).Equal("published_result_uri")
	gt.Value(t, report.PrimaryFetchError).NotEqual("")
	gt.Value(t, report.DescriptorURIResolved).Equal(fallbackURI)
}

func TestVerifyPublishedDescriptor_BothFetchesFail(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	store.getBytesFunc = func(ctx context.Context, uri string, timeout time.Duration) ([]byte, error) {
		return nil, errors.New("node unreachable")
	}

	_, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		FallbackURI:   descriptorURI + "/other",
		Timeout:       time.Minute,
		Workdir:       t.TempDir(),
	})
	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.TagCollaborator)).Equal(true)
}

func TestVerifyPublishedDescriptor_SchemaFindings(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	store.stored[descriptorURI] = []byte(`{"version": "12"}`)

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		Timeout:       time.Minute,
		Workdir:       t.TempDir(),
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(false)
	gt.Number(t, len(report.SchemaErrors)).Greater(0)
}

func TestVerifyPublishedDescriptor_IdentityMismatch(t *testing.T) {
	ctx := context.Background()
	store := publishedStore(t)

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI:          descriptorURI,
		ExpectedVersion:        "13",
		ExpectedReleasePageURL: "https://github.com/cryptad/cryptad/releases/tag/v13",
		Timeout:                time.Minute,
		Workdir:                t.TempDir(),
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(false)
	gt.Value(t, len(report.IdentityErrors)).Equal(2)
}

func TestVerifyPublishedDescriptor_UnretrievableReference(t *testing.T) {
	ctx := context.Background()
	store := publishedStore(t)
	delete(store.stored, "CHK@arm64deb")

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		Timeout:       time.Minute,
		Workdir:       t.TempDir(),
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(false)

	var unreachable []string
	for _, check := range report.ChkChecks {
		if !check.Retrievable {
			unreachable = append(unreachable, check.Key)
		}
	}
	gt.Value(t, unreachable).Equal([]string{"arm64.deb"})
}

func TestVerifyPublishedDescriptor_InvalidJSON(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	store.stored[descriptorURI] = []byte("{broken")

	_, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		Timeout:       time.Minute,
		Workdir:       t.TempDir(),
	})
	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.TagIntegrity)).Equal(true)
}

func TestVerifyPublishedDescriptor_DeepDownloads(t *testing.T) {
	ctx := context.Background()
	store := publishedStore(t)
	workdir := t.TempDir()

	report, err := usecase.VerifyPublishedDescriptor(ctx, store, usecase.VerifyInput{
		DescriptorURI: descriptorURI,
		Timeout:       time.Minute,
		Deep:          true,
		Workdir:       workdir,
	})
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(true)

	payload, err := os.ReadFile(filepath.Join(workdir, "downloads", "amd64.deb.bin"))
	gt.NoError(t, err)
	gt.Value(t, string(payload)).Equal("content of CHK@amd64deb")
	_, err = os.Stat(filepath.Join(workdir, "downloads", "changelog_chk.txt"))
	gt.NoError(t, err)
}
