package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./prompts", cfg.PromptsDir)
	assert.Equal(t, "all_nodes", cfg.SuccessPolicy.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "./.agentmap/bundles", cfg.BundleCacheDir)
}

func TestLoad_ExpandsEnvVarsAndDecodesTypedFields(t *testing.T) {
	t.Setenv("AGENTMAP_CHECKPOINT_DIR", "/var/run/agentmap/checkpoints")

	path := filepath.Join(t.TempDir(), "agentmap.yaml")
	contents := `
name: demo
checkpoint_dir: ${AGENTMAP_CHECKPOINT_DIR}
success_policy:
  name: critical_nodes
  critical_nodes: ["fetch", "publish"]
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "/var/run/agentmap/checkpoints", cfg.CheckpointDir)
	assert.Equal(t, "critical_nodes", cfg.SuccessPolicy.Name)
	assert.Equal(t, []string{"fetch", "publish"}, cfg.SuccessPolicy.CriticalNodes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidSuccessPolicyFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmap.yaml")
	contents := `
success_policy:
  name: critical_nodes
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidLoggingLevelFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmap.yaml")
	contents := `
logging:
  level: verbose
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEngineConfig_SetDefaultsDoesNotOverrideExplicitValues(t *testing.T) {
	cfg := &EngineConfig{PromptsDir: "./custom-prompts"}
	cfg.SetDefaults()
	assert.Equal(t, "./custom-prompts", cfg.PromptsDir)
	assert.Equal(t, "./.agentmap/checkpoints", cfg.CheckpointDir)
}
