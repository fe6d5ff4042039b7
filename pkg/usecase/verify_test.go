package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
)

func TestVerify_StagingUsesPublicKeyPointer(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	pipeline := preparedPipeline(t, t.TempDir(), store)
	_, err := pipeline.GenerateCoreInfo(ctx)
	gt.NoError(t, err)

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	keys := &usecase.KeyResolver{StagingKeyFile: keyFile}

	_, err = pipeline.PublishDescriptor(ctx, types.TargetStaging, store, keys)
	gt.NoError(t, err)

	// The publish lands on the private pointer; make the descriptor
	// available on the public pointer the clients will fetch.
	store.stored["USK@pub,AQACAAE/updates/info/12"] = store.stored["USK@priv,AQECAAE/updates/info/12"]

	report, err := pipeline.Verify(ctx, types.TargetStaging, store, keys, time.Minute, false)
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(true)
	gt.Value(t, report.DescriptorURI).Equal("USK@pub,AQACAAE/updates/info/12")

	// The outcome summary is recorded in state.
	var state model.PipelineState
	found, err := fsx.LoadJSON(filepath.Join(pipeline.Workdir(), usecase.StateFileName), &state)
	gt.NoError(t, err)
	gt.Value(t, found).Equal(true)
	item := state.Verification["staging"]
	gt.Value(t, item.OK).Equal(true)
	gt.Value(t, item.DescriptorURI).Equal("USK@pub,AQACAAE/updates/info/12")
	gt.Value(t, item.VerifyReport).Equal("verify.json")
}

func TestVerify_FallsBackToPublishedResultURI(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	pipeline := preparedPipeline(t, t.TempDir(), store)
	_, err := pipeline.GenerateCoreInfo(ctx)
	gt.NoError(t, err)

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	keys := &usecase.KeyResolver{StagingKeyFile: keyFile}

	_, err = pipeline.PublishDescriptor(ctx, types.TargetStaging, store, keys)
	gt.NoError(t, err)

	// Nothing was stored under the public pointer, so the verifier falls
	// back to the recorded publish result URI.
	report, err := pipeline.Verify(ctx, types.TargetStaging, store, keys, time.Minute, false)
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(true)
	gt.Value(t, report.FetchFallbackUsed).Equal(true)
	gt.Value(t, report.FetchSource).Equal("published_result_uri")
}

func TestVerify_RecordsFailure(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	pipeline := preparedPipeline(t, t.TempDir(), store)
	_, err := pipeline.GenerateCoreInfo(ctx)
	gt.NoError(t, err)

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	keys := &usecase.KeyResolver{StagingKeyFile: keyFile}

	_, err = pipeline.PublishDescriptor(ctx, types.TargetStaging, store, keys)
	gt.NoError(t, err)

	// Drop one referenced artifact from the store: verification completes
	// but reports the descriptor unhealthy.
	for uri := range store.stored {
		if uri != "USK@priv,AQECAAE/updates/info/12" && len(uri) > 4 && uri[:4] == "CHK@" {
			delete(store.stored, uri)
			break
		}
	}

	report, err := pipeline.Verify(ctx, types.TargetStaging, store, keys, time.Minute, false)
	gt.NoError(t, err)
	gt.Value(t, report.OK).Equal(false)

	var state model.PipelineState
	_, err = fsx.LoadJSON(filepath.Join(pipeline.Workdir(), usecase.StateFileName), &state)
	gt.NoError(t, err)
	gt.Value(t, state.Verification["staging"].OK).Equal(false)
}
