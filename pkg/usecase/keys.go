package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// KeyResolver resolves the versioned signed pointer base for a publish
// target. The staging base lives in a local key file and is generated on
// first use; the production base is supplied per invocation and never
// persisted.
type KeyResolver struct {
	StagingKeyFile    string
	ProductionKeyBase string `masq:"secret"`
	DryRun            bool
}

// Placeholder bases stand in for real keys during a dry run so planned
// target URIs can still be shown without generating keys or prompting.
const (
	stagingPlaceholderBase = "USK@<staging-placeholder>/info/"
	productionRedactedBase = "USK@<production-redacted>/info/"
)

type resolveKeyOptions struct {
	autoGenerateStaging    bool
	preferPublicForStaging bool
}

// ResolveForPublish returns the publish-capable key base for target,
// generating a staging key pair when the key file does not exist yet.
func (r *KeyResolver) ResolveForPublish(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore) (string, error) {
	return r.resolve(ctx, target, store, resolveKeyOptions{autoGenerateStaging: true})
}

// ResolveForVerify returns the key base used to derive the descriptor
// fetch URI. For staging it prefers the public (verify-only) form so the
// check exercises the same key update clients will use.
func (r *KeyResolver) ResolveForVerify(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore) (string, error) {
	return r.resolve(ctx, target, store, resolveKeyOptions{preferPublicForStaging: true})
}

func (r *KeyResolver) resolve(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore, opts resolveKeyOptions) (string, error) {
	switch target {
	case types.TargetStaging:
		if fileExists(r.StagingKeyFile) {
			return r.resolveExistingStaging(ctx, store, opts.preferPublicForStaging)
		}
		if r.DryRun {
			return stagingPlaceholderBase, nil
		}
		if opts.autoGenerateStaging {
			if store == nil {
				return "", goerr.New("content store client is required to auto-generate a staging key pair",
					goerr.T(types.TagConfig))
			}
			return r.generateStagingKeyFile(ctx, store)
		}
		return readKeyBaseFile(r.StagingKeyFile)
	case types.TargetProduction:
		if r.ProductionKeyBase == "" {
			if r.DryRun {
				return productionRedactedBase, nil
			}
			return "", goerr.New("production key base is required and is never persisted; supply it per invocation",
				goerr.T(types.TagConfig))
		}
		return model.ValidateKeyBase(r.ProductionKeyBase)
	}
	return "", goerr.New("unknown publish target", goerr.T(types.TagConfig),
		goerr.V("target", string(target)))
}

// resolveExistingStaging reads the staging key file and, when the public
// form is preferred and the file holds a private key, switches to (or
// derives and persists) the .public companion file.
func (r *KeyResolver) resolveExistingStaging(ctx context.Context, store interfaces.ContentStore, preferPublic bool) (string, error) {
	logger := ctxlog.From(ctx)

	primary, err := readKeyBaseFile(r.StagingKeyFile)
	if err != nil {
		return "", err
	}
	if !preferPublic || !looksPrivateKeyBase(primary) {
		return primary, nil
	}

	publicFile := publicCompanionPath(r.StagingKeyFile)
	if fileExists(publicFile) {
		logger.Info("Using public staging key companion file", "path", publicFile)
		return readKeyBaseFile(publicFile)
	}

	if store != nil {
		publicBase, err := store.DerivePublicBase(ctx, primary)
		if err != nil {
			return "", err
		}
		if err := writeKeyBaseFile(publicFile, publicBase, 0o644); err != nil {
			return "", err
		}
		logger.Warn("Derived public staging key from private key and wrote companion file",
			"path", publicFile)
		return model.ValidateKeyBase(publicBase)
	}

	logger.Warn("Staging key file appears private and no companion public file was found; using provided key")
	return primary, nil
}

func (r *KeyResolver) generateStagingKeyFile(ctx context.Context, store interfaces.ContentStore) (string, error) {
	logger := ctxlog.From(ctx)

	privateBase, publicBase, err := store.GenerateKeypair(ctx)
	if err != nil {
		return "", err
	}
	if err := writeKeyBaseFile(r.StagingKeyFile, privateBase, 0o600); err != nil {
		return "", err
	}
	publicFile := publicCompanionPath(r.StagingKeyFile)
	if err := writeKeyBaseFile(publicFile, publicBase, 0o644); err != nil {
		return "", err
	}

	logger.Warn("Staging key file was missing; generated a new key pair",
		"private_file", r.StagingKeyFile, "public_file", publicFile)
	return privateBase, nil
}

func readKeyBaseFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", goerr.New("staging key file is missing; create it with a base URI ending in '"+model.KeyBaseSuffix+"'",
			goerr.T(types.TagConfig), goerr.V("path", path))
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to read key file", goerr.V("path", path))
	}
	return model.ValidateKeyBase(string(raw))
}

func writeKeyBaseFile(path, value string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create key file directory", goerr.V("path", path))
	}
	if err := os.WriteFile(path, []byte(strings.TrimRight(value, "\n")+"\n"), mode); err != nil {
		return goerr.Wrap(err, "failed to write key file", goerr.V("path", path))
	}
	return nil
}

// looksPrivateKeyBase detects publish-capable key bases: bare SSK@ forms
// and USK@ forms carrying the private-key algorithm marker.
func looksPrivateKeyBase(keyBase string) bool {
	normalized := strings.TrimSpace(keyBase)
	if strings.HasPrefix(normalized, "SSK@") {
		return true
	}
	return strings.HasPrefix(normalized, "USK@") && strings.Contains(normalized, ",AQECAAE/")
}

func publicCompanionPath(keyFile string) string {
	ext := filepath.Ext(keyFile)
	if ext != "" {
		return strings.TrimSuffix(keyFile, ext) + ".public" + ext
	}
	return keyFile + ".public"
}
