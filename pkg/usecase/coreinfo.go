package usecase

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// CoreInfoFileName is the live descriptor file under the workdir.
	CoreInfoFileName = "core-info.json"
	auditDirName     = "audit"
)

// GenerateCoreInfo assembles the descriptor from current state, renders
// it deterministically, and writes both the live file and the append-only
// audit copy for this edition. An existing audit file with different
// content is an integrity error: the same edition must never carry two
// different descriptors.
func (p *Pipeline) GenerateCoreInfo(ctx context.Context) (string, error) {
	logger := ctxlog.From(ctx)

	if p.dryRun {
		target := filepath.Join(p.workdir, CoreInfoFileName)
		logger.Info("[dry-run] Would generate descriptor", "path", target)
		return target, nil
	}

	if len(p.state.Packages) == 0 {
		return "", goerr.New("no package entries available in state; run insert-artifacts first",
			goerr.T(types.TagConfig))
	}

	packages := map[string]model.PackageDescriptor{}
	for packageKey, record := range p.state.Packages {
		size := record.Size
		packages[packageKey] = model.PackageDescriptor{
			CHK:      record.CHK,
			StoreURL: record.StoreURL,
			Size:     &size,
		}
	}

	descriptor := &model.CoreInfoDescriptor{
		Version:        p.ref.Edition,
		ReleasePageURL: p.ref.ReleasePageURL,
		Packages:       packages,
	}
	if p.state.Changelogs != nil {
		descriptor.ChangelogCHK = p.state.Changelogs.ChangelogCHK
		descriptor.FullChangelogCHK = p.state.Changelogs.FullChangelogCHK
	}

	rendered, err := descriptor.Render()
	if err != nil {
		return "", err
	}

	coreInfoPath := filepath.Join(p.workdir, CoreInfoFileName)
	if err := os.WriteFile(coreInfoPath, []byte(rendered), 0o644); err != nil {
		return "", goerr.Wrap(err, "failed to write descriptor", goerr.V("path", coreInfoPath))
	}
	if err := p.writeAuditCopy(rendered); err != nil {
		return "", err
	}

	digest, err := fsx.SHA256File(coreInfoPath)
	if err != nil {
		return "", err
	}
	p.state.CoreInfo = &model.CoreInfoRecord{
		Path:        fsx.ToWorkdirRelative(coreInfoPath, p.workdir),
		SHA256:      digest,
		GeneratedAt: fsx.NowUTC(),
	}
	if err := p.saveState(); err != nil {
		return "", err
	}

	logger.Info("Generated descriptor", "path", coreInfoPath, "sha256", digest)
	return coreInfoPath, nil
}

// writeAuditCopy stores the rendered descriptor once per edition. A
// pre-existing audit file must match byte for byte; anything else means a
// different descriptor is being republished under a reused edition.
func (p *Pipeline) writeAuditCopy(rendered string) error {
	auditDir := filepath.Join(p.workdir, auditDirName)
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create audit directory", goerr.V("path", auditDir))
	}

	auditPath := filepath.Join(auditDir, "core-info."+p.ref.Edition+".json")
	existing, err := os.ReadFile(auditPath)
	if os.IsNotExist(err) {
		if err := os.WriteFile(auditPath, []byte(rendered), 0o644); err != nil {
			return goerr.Wrap(err, "failed to write audit copy", goerr.V("path", auditPath))
		}
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to read existing audit copy", goerr.V("path", auditPath))
	}
	if string(existing) != rendered {
		return goerr.New("immutable audit file already exists with different content",
			goerr.T(types.TagIntegrity), goerr.V("path", auditPath))
	}
	return nil
}

// coreInfoPath returns the recorded descriptor path, empty when the
// descriptor has not been generated.
func (p *Pipeline) coreInfoPath() string {
	if p.state.CoreInfo == nil || p.state.CoreInfo.Path == "" {
		return ""
	}
	return fsx.FromWorkdirRelative(p.state.CoreInfo.Path, p.workdir)
}
