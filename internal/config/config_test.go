package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nonlocal/indexd/internal/rules"
)

func TestLoadAppliesFileOverridesOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_directory = "/srv/indexd"
gateway_address = "0.0.0.0:9000"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/indexd", cfg.DataDirectory)
	require.Equal(t, "0.0.0.0:9000", cfg.GatewayAddress)
	// Unset fields keep the default's values.
	require.Equal(t, "text", cfg.LogFormat)
	require.NotEmpty(t, cfg.DefaultRules, "file omitted default_rules, so the built-in set applies")
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`not = [valid`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, "./indexd-data", cfg.DataDirectory)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`gateway_address = "0.0.0.0:9000"`), 0o644))
	t.Setenv(EnvGatewayAddr, "127.0.0.1:1234")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:1234", cfg.GatewayAddress, "environment is the highest-priority layer")
}

func TestDefaultsRuleSetBuildsExpectedKinds(t *testing.T) {
	cfg := Defaults()
	rs, err := cfg.RuleSet()
	require.NoError(t, err)
	require.Len(t, rs[rules.RejectFilesByGlob], 3)
}

func TestRuleConfigToRuleRejectsUnknownKind(t *testing.T) {
	rc := RuleConfig{Kind: "bogus", Name: "x"}
	_, err := rc.ToRule()
	require.Error(t, err)
}

func TestResolveLogLevelPrecedence(t *testing.T) {
	t.Setenv("INDEXD_DEBUG", "")
	require.Equal(t, slog.LevelInfo, ResolveLogLevel(false, false))
	require.Equal(t, slog.LevelError, ResolveLogLevel(false, true))
	require.Equal(t, slog.LevelDebug, ResolveLogLevel(true, true), "verbose wins over quiet")

	t.Setenv("INDEXD_DEBUG", "1")
	require.Equal(t, slog.LevelDebug, ResolveLogLevel(false, false), "env var overrides flags")
}

func TestSetupLoggingWithWriterProducesTextOutput(t *testing.T) {
	var buf bytes.Buffer
	SetupLoggingWithWriter(slog.LevelInfo, "text", &buf)
	slog.Default().Info("hello")
	require.Contains(t, buf.String(), "hello")
}
