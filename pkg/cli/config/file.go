package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	"github.com/cryptad/update-releaser/pkg/domain/types"
)

// LoadDefaults reads a TOML defaults file and exports each key as a
// RELEASER_* environment variable, but only when the variable is not
// already set. All flags source their env vars, so precedence falls out
// as flag, then environment, then defaults file.
//
// Keys are flag names (`log-level = "debug"`); one level of tables is
// flattened (`[fcp]` + `host` becomes RELEASER_FCP_HOST).
func LoadDefaults(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return goerr.Wrap(err, "failed to read config file",
			goerr.T(types.TagConfig), goerr.V("path", path))
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return goerr.Wrap(err, "failed to parse config file",
			goerr.T(types.TagConfig), goerr.V("path", path))
	}

	for key, value := range doc {
		if section, ok := value.(map[string]any); ok {
			for subKey, subValue := range section {
				if err := exportDefault(key+"_"+subKey, subValue); err != nil {
					return err
				}
			}
			continue
		}
		if err := exportDefault(key, value); err != nil {
			return err
		}
	}
	return nil
}

func exportDefault(key string, value any) error {
	envName := "RELEASER_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
	if _, exists := os.LookupEnv(envName); exists {
		return nil
	}

	switch v := value.(type) {
	case string:
		return setEnv(envName, v)
	case bool:
		return setEnv(envName, fmt.Sprintf("%t", v))
	case int64:
		return setEnv(envName, fmt.Sprintf("%d", v))
	case float64:
		return setEnv(envName, fmt.Sprintf("%g", v))
	default:
		return goerr.New("unsupported config file value type",
			goerr.T(types.TagConfig), goerr.V("key", key), goerr.V("value", value))
	}
}

func setEnv(name, value string) error {
	if err := os.Setenv(name, value); err != nil {
		return goerr.Wrap(err, "failed to export config default", goerr.V("name", name))
	}
	return nil
}
