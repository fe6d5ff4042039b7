package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/cryptad/update-releaser/pkg/usecase"
)

// Keys holds publish-key configuration. The production key base is never
// persisted anywhere: it comes from the flag, the environment, or an
// interactive terminal prompt, and is redacted from logs.
type Keys struct {
	StagingKeyFile    string
	ProductionKeyBase string `masq:"secret"`
}

// Flags returns CLI flags for publish-key configuration
func (c *Keys) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "staging-key-file",
			Usage:       "Path to the staging key base file (generated on first publish)",
			Value:       "staging-usk.txt",
			Destination: &c.StagingKeyFile,
			Sources:     cli.EnvVars("RELEASER_STAGING_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "production-key",
			Usage:       "Production key base (prompted on a TTY when publishing to production)",
			Destination: &c.ProductionKeyBase,
			Sources:     cli.EnvVars("RELEASER_PRODUCTION_KEY"),
		},
	}
}

// Resolver builds the key resolver for target, prompting for the
// production key base when it was not supplied and stdin is a terminal.
// A dry run never prompts; the resolver substitutes placeholder bases.
func (c *Keys) Resolver(target types.PublishTarget, dryRun bool) (*usecase.KeyResolver, error) {
	keyBase := c.ProductionKeyBase
	if target == types.TargetProduction && keyBase == "" && !dryRun {
		prompted, err := promptSecret("Production key base: ")
		if err != nil {
			return nil, err
		}
		keyBase = prompted
	}
	return &usecase.KeyResolver{
		StagingKeyFile:    c.StagingKeyFile,
		ProductionKeyBase: keyBase,
		DryRun:            dryRun,
	}, nil
}

func promptSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", goerr.New("production key base is required; pass --production-key or set RELEASER_PRODUCTION_KEY",
			goerr.T(types.TagConfig))
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read production key base from terminal",
			goerr.T(types.TagConfig))
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return "", goerr.New("empty production key base", goerr.T(types.TagConfig))
	}
	return value, nil
}
