package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

func TestKeyResolver_GeneratesStagingKeypairOnFirstUse(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	keyFile := filepath.Join(t.TempDir(), "staging-usk.txt")
	resolver := &usecase.KeyResolver{StagingKeyFile: keyFile}

	keyBase, err := resolver.ResolveForPublish(ctx, types.TargetStaging, store)
	gt.NoError(t, err)
	gt.Value(t, keyBase).Equal("USK@priv,AQECAAE/updates/info/")

	// Private file is written 0600, public companion 0644.
	info, err := os.Stat(keyFile)
	gt.NoError(t, err)
	if runtime.GOOS != "windows" {
		gt.Value(t, info.Mode().Perm()).Equal(os.FileMode(0o600))
	}
	publicFile := filepath.Join(filepath.Dir(keyFile), "staging-usk.public.txt")
	content, err := os.ReadFile(publicFile)
	gt.NoError(t, err)
	gt.Value(t, strings.TrimSpace(string(content))).Equal("USK@pub,AQACAAE/updates/info/")
}

func TestKeyResolver_ReusesExistingStagingKey(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	keyFile := filepath.Join(t.TempDir(), "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	resolver := &usecase.KeyResolver{StagingKeyFile: keyFile}

	keyBase, err := resolver.ResolveForPublish(ctx, types.TargetStaging, store)
	gt.NoError(t, err)
	gt.Value(t, keyBase).Equal("USK@priv,AQECAAE/updates/info/")
	gt.Value(t, len(store.PutCalls)).Equal(0)
}

func TestKeyResolver_VerifyPrefersPublicCompanion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "staging-usk.public.txt"),
		[]byte("USK@pub,AQACAAE/updates/info/\n"), 0o644))
	resolver := &usecase.KeyResolver{StagingKeyFile: keyFile}

	keyBase, err := resolver.ResolveForVerify(ctx, types.TargetStaging, newMockContentStore())
	gt.NoError(t, err)
	gt.Value(t, keyBase).Equal("USK@pub,AQACAAE/updates/info/")
}

func TestKeyResolver_VerifyDerivesPublicWhenMissing(t *testing.T) {
	ctx := context.Background()
	store := newMockContentStore()
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "staging-usk.txt")
	gt.NoError(t, os.WriteFile(keyFile, []byte("USK@priv,AQECAAE/updates/info/\n"), 0o600))
	resolver := &usecase.KeyResolver{StagingKeyFile: keyFile}

	keyBase, err := resolver.ResolveForVerify(ctx, types.TargetStaging, store)
	gt.NoError(t, err)
	gt.Value(t, keyBase).Equal("USK@pub,AQACAAE/updates/info/")

	// The derived public base is persisted for the next run.
	content, err := os.ReadFile(filepath.Join(dir, "staging-usk.public.txt"))
	gt.NoError(t, err)
	gt.Value(t, strings.TrimSpace(string(content))).Equal("USK@pub,AQACAAE/updates/info/")
}

func TestKeyResolver_ProductionRequiresKeyBase(t *testing.T) {
	resolver := &usecase.KeyResolver{StagingKeyFile: "unused"}

	_, err := resolver.ResolveForPublish(context.Background(), types.TargetProduction, newMockContentStore())
	gt.Error(t, err)
	gt.Value(t, goerr.HasTag(err, types.TagConfig)).Equal(true)
	gt.String(t, err.Error()).Contains("never persisted")
}

func TestKeyResolver_ProductionValidatesKeyBase(t *testing.T) {
	ctx := context.Background()

	resolver := &usecase.KeyResolver{ProductionKeyBase: "USK@prod,AQECAAE/cryptad/info/"}
	keyBase, err := resolver.ResolveForPublish(ctx, types.TargetProduction, nil)
	gt.NoError(t, err)
	gt.Value(t, keyBase).Equal("USK@prod,AQECAAE/cryptad/info/")

	bad := &usecase.KeyResolver{ProductionKeyBase: "USK@prod,AQECAAE/cryptad"}
	_, err = bad.ResolveForPublish(ctx, types.TargetProduction, nil)
	gt.Error(t, err)
}
