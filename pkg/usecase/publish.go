package usecase

import (
	"context"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// PublishDescriptor inserts the descriptor under the per-edition target
// URI of the resolved key base. When a prior publish for the same target
// recorded the same descriptor hash to the same destination, the recorded
// result URI is returned without a second insert.
func (p *Pipeline) PublishDescriptor(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore, keys *KeyResolver) (string, error) {
	logger := ctxlog.From(ctx)

	if store == nil && !p.dryRun {
		return "", goerr.New("content store client is required for publish-descriptor",
			goerr.T(types.TagConfig))
	}

	coreInfoPath := p.coreInfoPath()
	if coreInfoPath == "" || !fileExists(coreInfoPath) {
		var err error
		if coreInfoPath, err = p.GenerateCoreInfo(ctx); err != nil {
			return "", err
		}
	}

	keyBase, err := keys.ResolveForPublish(ctx, target, store)
	if err != nil {
		return "", err
	}
	targetURI, err := model.DescriptorTargetURI(keyBase, p.ref.Edition)
	if err != nil {
		return "", err
	}

	if p.dryRun {
		logger.Info("[dry-run] Would publish descriptor",
			"path", coreInfoPath, "uri", targetURI)
		return targetURI, nil
	}

	coreSHA := ""
	if p.state.CoreInfo != nil {
		coreSHA = p.state.CoreInfo.SHA256
	}
	if p.state.Published == nil {
		p.state.Published = map[string]model.PublishRecord{}
	}
	if existing, ok := p.state.Published[string(target)]; ok &&
		existing.DescriptorURI == targetURI &&
		existing.CoreSHA256 == coreSHA &&
		existing.ResultURI != "" {
		logger.Info("Reusing published descriptor", "target", string(target), "result_uri", existing.ResultURI)
		return existing.ResultURI, nil
	}

	logger.Info("Publishing descriptor", "target", string(target), "uri", targetURI)
	resultURI, err := store.PutFile(ctx, targetURI, coreInfoPath)
	if err != nil {
		return "", err
	}

	p.state.Published[string(target)] = model.PublishRecord{
		DescriptorURI: targetURI,
		ResultURI:     resultURI,
		CoreSHA256:    coreSHA,
		PublishedAt:   fsx.NowUTC(),
	}
	if err := p.saveState(); err != nil {
		return "", err
	}
	return resultURI, nil
}

// PublishRevocation inserts an emergency revocation message at the
// supplied revocation URI. It does not touch pipeline state.
func PublishRevocation(ctx context.Context, store interfaces.ContentStore, revokeURI, message string) (string, error) {
	if store == nil {
		return "", goerr.New("content store client is required to publish a revocation",
			goerr.T(types.TagConfig))
	}
	normalized := strings.TrimSpace(revokeURI)
	if normalized == "" {
		return "", goerr.New("revocation target URI is required", goerr.T(types.TagConfig))
	}
	payload := []byte(strings.TrimSpace(message) + "\n\npublished_at=" + fsx.NowUTC() + "\n")
	return store.PutBytes(ctx, normalized, payload)
}
