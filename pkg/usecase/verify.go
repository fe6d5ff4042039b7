package usecase

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Verify closes the loop on a publish: it resolves the descriptor URI a
// client would fetch (preferring the public staging key when available),
// runs the verification engine against it with the recorded publish
// result URI as fallback, and records the summary outcome in state.
func (p *Pipeline) Verify(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore, keys *KeyResolver, timeout time.Duration, deep bool) (*model.VerifyReport, error) {
	if store == nil && !p.dryRun {
		return nil, goerr.New("content store client is required for verify",
			goerr.T(types.TagConfig))
	}

	descriptorURI, err := p.descriptorURIForTarget(ctx, target, store, keys)
	if err != nil {
		return nil, err
	}

	if p.dryRun {
		report := &model.VerifyReport{
			DescriptorURI:  descriptorURI,
			CheckedAt:      fsx.NowUTC(),
			Deep:           deep,
			SchemaErrors:   []string{},
			IdentityErrors: []string{},
			FetchSource:    model.FetchSourceRequested,
			ChkChecks:      []model.ChkCheck{},
			OK:             true,
			DryRun:         true,
		}
		if err := fsx.SaveJSON(filepath.Join(p.workdir, VerifyReportFileName), report); err != nil {
			return nil, err
		}
		ctxlog.From(ctx).Info("[dry-run] Would verify published descriptor", "uri", descriptorURI)
		return report, nil
	}

	report, err := VerifyPublishedDescriptor(ctx, store, VerifyInput{
		DescriptorURI:          descriptorURI,
		FallbackURI:            p.resultURIForTarget(target),
		ExpectedVersion:        p.ref.Edition,
		ExpectedReleasePageURL: p.ref.ReleasePageURL,
		Timeout:                timeout,
		Deep:                   deep,
		Workdir:                p.workdir,
	})
	if err != nil {
		return nil, err
	}

	if p.state.Verification == nil {
		p.state.Verification = map[string]model.VerifyStateItem{}
	}
	p.state.Verification[string(target)] = model.VerifyStateItem{
		OK:            report.OK,
		CheckedAt:     report.CheckedAt,
		DescriptorURI: descriptorURI,
		VerifyReport:  VerifyReportFileName,
	}
	if err := p.saveState(); err != nil {
		return nil, err
	}
	return report, nil
}

// descriptorURIForTarget picks the URI verification should fetch: the
// public staging pointer when one can be resolved, else the recorded
// publish destination, else the freshly resolved target URI.
func (p *Pipeline) descriptorURIForTarget(ctx context.Context, target types.PublishTarget, store interfaces.ContentStore, keys *KeyResolver) (string, error) {
	if target == types.TargetStaging {
		keyBase, err := keys.ResolveForVerify(ctx, target, store)
		if err == nil {
			return model.DescriptorTargetURI(keyBase, p.ref.Edition)
		}
	}

	if record, ok := p.state.Published[string(target)]; ok && record.DescriptorURI != "" {
		return record.DescriptorURI, nil
	}

	keyBase, err := keys.ResolveForVerify(ctx, target, store)
	if err != nil {
		return "", err
	}
	return model.DescriptorTargetURI(keyBase, p.ref.Edition)
}

func (p *Pipeline) resultURIForTarget(target types.PublishTarget) string {
	record, ok := p.state.Published[string(target)]
	if !ok {
		return ""
	}
	return record.ResultURI
}
