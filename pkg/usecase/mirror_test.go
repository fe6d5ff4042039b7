package usecase_test

import (
	"context"
	"path"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

// MockObjectStore records uploads and hands back bucket-style URLs.
type MockObjectStore struct {
	uploadFunc func(ctx context.Context, localPath, objectName string) (string, error)
	Uploads    []string
}

func (m *MockObjectStore) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	m.Uploads = append(m.Uploads, objectName)
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, localPath, objectName)
	}
	return "https://storage.googleapis.com/test-bucket/" + objectName, nil
}

func TestMirrorArtifacts_RecordsStoreURLs(t *testing.T) {
	ctx := context.Background()
	objects := &MockObjectStore{}
	pipeline, err := usecase.NewPipeline(testReleaseRef(), t.TempDir(), testHost())
	gt.NoError(t, err)

	packages, err := pipeline.MirrorArtifacts(ctx, objects)
	gt.NoError(t, err)
	gt.Value(t, len(packages)).Equal(2)
	gt.Value(t, len(objects.Uploads)).Equal(2)

	amd64 := packages["amd64.deb"]
	gt.Value(t, amd64.StoreURL).Equal("https://storage.googleapis.com/test-bucket/" + path.Join("12", "cryptad_12_amd64.deb"))
	gt.Value(t, amd64.CHK).Equal("")
	gt.Value(t, amd64.Size).Equal(int64(64))
}

func TestMirrorArtifacts_OnlyFillsGaps(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	objects := &MockObjectStore{}

	// Insert first: every package already carries a content key, so the
	// mirror has nothing to do.
	pipeline := preparedPipeline(t, t.TempDir(), store)
	packages, err := pipeline.MirrorArtifacts(ctx, objects)
	gt.NoError(t, err)
	gt.Value(t, len(objects.Uploads)).Equal(0)
	gt.String(t, packages["amd64.deb"].CHK).Contains("CHK@")
}

func TestMirrorArtifacts_NilObjectStore(t *testing.T) {
	pipeline, err := usecase.NewPipeline(testReleaseRef(), t.TempDir(), testHost())
	gt.NoError(t, err)

	_, err = pipeline.MirrorArtifacts(context.Background(), nil)
	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.TagConfig)).Equal(true)
}
