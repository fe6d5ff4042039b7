package cli

import (
	"github.com/urfave/cli/v3"

	"github.com/cryptad/update-releaser/pkg/cli/config"
	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
)

// buildPipeline constructs the per-edition pipeline from the release page
// URL argument and the common release/github configuration.
func buildPipeline(cmd *cli.Command, releaseCfg *config.Release, githubCfg *config.GitHub) (*usecase.Pipeline, error) {
	ref, err := releaseCfg.Ref(cmd)
	if err != nil {
		return nil, err
	}
	host, err := githubCfg.Build()
	if err != nil {
		return nil, err
	}
	return usecase.NewPipeline(ref, releaseCfg.WorkdirBase, host,
		usecase.WithDryRun(releaseCfg.DryRun))
}

// parseTarget validates a --to flag value.
func parseTarget(raw string) (types.PublishTarget, error) {
	target, ok := types.ParsePublishTarget(raw)
	if !ok {
		return "", goerr.New("invalid publish target; use staging or production",
			goerr.T(types.TagConfig), goerr.V("target", raw))
	}
	return target, nil
}
