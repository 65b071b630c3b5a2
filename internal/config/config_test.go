package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4567", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Providers.Active)
	assert.Equal(t, 5, cfg.Chat.MaxFunctionDepth)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Defaults.Model)
	assert.Equal(t, 1024, cfg.Defaults.MaxTokens)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
providers:
  active: ollama
chat:
  maxFunctionDepth: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "ollama", cfg.Providers.Active)
	assert.Equal(t, 3, cfg.Chat.MaxFunctionDepth)
	// untouched fields keep defaults
	assert.Equal(t, 15, cfg.Chat.FunctionTimeoutSeconds)
	assert.Equal(t, SupportedModels, cfg.Chat.SupportedModels)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [broken")
	_, err := Load(path)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestLoadExpandsEnvReferences(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test-123")
	path := writeConfig(t, `
providers:
  openai:
    apiKey: ${TEST_OPENAI_KEY}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Providers.OpenAI.APIKey)
}

func TestLoadUnsetEnvReferenceLeftAlone(t *testing.T) {
	path := writeConfig(t, `
auth:
  user: admin
  password: ${OSHABERI_TEST_UNSET_VAR}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${OSHABERI_TEST_UNSET_VAR}", cfg.Auth.Password)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OSHABERI_ADDR", ":7777")
	t.Setenv("OSHABERI_PROVIDER", "ollama")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.Equal(t, "ollama", cfg.Providers.Active)
}

func TestValidateCatchesIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Providers.Active = "claude"
	cfg.Defaults.Temperature = 3
	cfg.Auth.User = "admin" // no password
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	paths := make([]string, len(issues))
	for i, issue := range issues {
		paths[i] = issue.Path
	}
	assert.Contains(t, paths, "providers.active")
	assert.Contains(t, paths, "defaults.temperature")
	assert.Contains(t, paths, "auth")
	assert.Contains(t, paths, "logging.level")
}

func TestValidateDefaultsAreClean(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateModelMustBeSupported(t *testing.T) {
	cfg := Defaults()
	cfg.Defaults.Model = "gpt-9"
	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "defaults.model", issues[0].Path)
}

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("OSHABERI_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(base, "data", "oshaberi.db"), p.DefaultDBPath())

	require.NoError(t, p.EnsureDirs())
	for _, dir := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestUseFunctionsDefault(t *testing.T) {
	var d DefaultsConfig
	assert.True(t, d.UseFunctions())

	off := false
	d.UseFunctionCalling = &off
	assert.False(t, d.UseFunctions())
}
