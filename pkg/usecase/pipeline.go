package usecase

import (
	"path/filepath"

	"github.com/cryptad/update-releaser/pkg/domain/interfaces"
	"github.com/cryptad/update-releaser/pkg/domain/model"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/utils/fsx"
	"github.com/m-mizutani/goerr/v2"
)

// Pipeline sequences the publish stages for one release edition. Stages
// are idempotent against the persisted state document: re-running a stage
// whose recorded inputs are unchanged reuses the recorded network result
// instead of repeating the operation.
//
// A Pipeline is not safe for concurrent use, and two instances must never
// share a state document; callers provide that mutual exclusion.
type Pipeline struct {
	ref       *model.ReleaseRef
	workdir   string
	statePath string
	host      interfaces.ReleaseHost
	state     *model.PipelineState
	dryRun    bool
}

// StateFileName is the per-edition state document name under the workdir.
const StateFileName = "state.json"

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithDryRun makes every stage log its planned operations and return the
// recorded state without touching the network, the state document, or any
// key file.
func WithDryRun(enabled bool) PipelineOption {
	return func(p *Pipeline) { p.dryRun = enabled }
}

// NewPipeline loads (or creates) the state document for ref's edition and
// verifies that it belongs to the same release. An identity mismatch on
// any field is a configuration error raised before any network call.
func NewPipeline(ref *model.ReleaseRef, workdirBase string, host interfaces.ReleaseHost, opts ...PipelineOption) (*Pipeline, error) {
	workdir, err := fsx.ResolveWorkdir(workdirBase, ref.Edition, true)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ref:       ref,
		workdir:   workdir,
		statePath: filepath.Join(workdir, StateFileName),
		host:      host,
		state:     &model.PipelineState{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if _, err := fsx.LoadJSON(p.statePath, p.state); err != nil {
		return nil, err
	}
	if err := p.ensureReleaseIdentity(); err != nil {
		return nil, err
	}
	return p, nil
}

// Workdir returns the per-edition working directory.
func (p *Pipeline) Workdir() string { return p.workdir }

// Ref returns the immutable release identity.
func (p *Pipeline) Ref() *model.ReleaseRef { return p.ref }

func (p *Pipeline) ensureReleaseIdentity() error {
	if existing := p.state.Release; existing != nil {
		for _, field := range []struct {
			name     string
			current  string
			expected string
		}{
			{"owner", existing.Owner, p.ref.Owner},
			{"repo", existing.Repo, p.ref.Repo},
			{"tag", existing.Tag, p.ref.Tag},
			{"edition", existing.Edition, p.ref.Edition},
			{"release_page_url", existing.ReleasePageURL, p.ref.ReleasePageURL},
		} {
			if field.current != "" && field.current != field.expected {
				return goerr.New("existing state is for a different release",
					goerr.T(types.TagConfig),
					goerr.V("state_path", p.statePath),
					goerr.V("field", field.name),
					goerr.V("recorded", field.current),
					goerr.V("requested", field.expected))
			}
		}
	}
	snapshot := *p.ref
	p.state.Release = &snapshot
	return p.saveState()
}

func (p *Pipeline) saveState() error {
	if p.dryRun {
		return nil
	}
	return fsx.SaveJSON(p.statePath, p.state)
}

// cachedAssetsExist reports whether every recorded asset still has its
// local file in place.
func (p *Pipeline) cachedAssetsExist() bool {
	if len(p.state.Assets) == 0 {
		return false
	}
	for _, record := range p.state.Assets {
		if record.Path == "" {
			return false
		}
		if !fileExists(fsx.FromWorkdirRelative(record.Path, p.workdir)) {
			return false
		}
	}
	return true
}
