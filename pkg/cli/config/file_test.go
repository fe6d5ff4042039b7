package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/cryptad/update-releaser/pkg/cli/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, name := range []string{
		"RELEASER_LOG_LEVEL", "RELEASER_FCP_HOST",
		"RELEASER_FCP_PORT", "RELEASER_FCP_GLOBAL_QUEUE",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("RELEASER_SOURCE", "gh")

	path := filepath.Join(t.TempDir(), "releaser.toml")
	content := `
log-level = "debug"
source = "api"

[fcp]
host = "10.0.0.5"
port = 9482
global-queue = false
`
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	gt.NoError(t, config.LoadDefaults(path))

	// File values fill unset variables.
	gt.Value(t, os.Getenv("RELEASER_LOG_LEVEL")).Equal("debug")
	gt.Value(t, os.Getenv("RELEASER_FCP_HOST")).Equal("10.0.0.5")
	gt.Value(t, os.Getenv("RELEASER_FCP_PORT")).Equal("9482")
	gt.Value(t, os.Getenv("RELEASER_FCP_GLOBAL_QUEUE")).Equal("false")

	// Already-set environment wins over the file.
	gt.Value(t, os.Getenv("RELEASER_SOURCE")).Equal("gh")
}

func TestLoadDefaults_MissingFile(t *testing.T) {
	gt.Error(t, config.LoadDefaults(filepath.Join(t.TempDir(), "absent.toml")))
}

func TestLoadDefaults_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	gt.NoError(t, os.WriteFile(path, []byte("log-level = ["), 0o644))
	gt.Error(t, config.LoadDefaults(path))
}
