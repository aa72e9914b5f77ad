package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoggingConfig controls pkg/logger construction (SPEC_FULL.md A.1).
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q: must be one of debug, info, warn, error", c.Level)
	}
}

// SuccessPolicyConfig selects and parameterizes the runner's success
// policy (spec.md section 4.12).
type SuccessPolicyConfig struct {
	Name          string   `yaml:"name,omitempty"`
	CriticalNodes []string `yaml:"critical_nodes,omitempty"`
}

func (c *SuccessPolicyConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "all_nodes"
	}
}

func (c *SuccessPolicyConfig) Validate() error {
	switch c.Name {
	case "all_nodes", "final_node":
		return nil
	case "critical_nodes":
		if len(c.CriticalNodes) == 0 {
			return fmt.Errorf("success_policy.critical_nodes: policy %q requires at least one node name", c.Name)
		}
		return nil
	default:
		return fmt.Errorf("success_policy.name %q: must be one of all_nodes, final_node, critical_nodes", c.Name)
	}
}

// ObservabilityConfig is the optional metrics/tracing ambient concern
// (SPEC_FULL.md domain stack B); disabled unless explicitly turned on.
type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled,omitempty"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty"`
	TracingEnabled bool   `yaml:"tracing_enabled,omitempty"`
}

func (c *ObservabilityConfig) SetDefaults() {
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
}

func (c *ObservabilityConfig) Validate() error { return nil }

// EngineConfig is the top-level configuration for a running AgentMap
// engine: where PromptResolver, GraphBundleStore, CheckpointStore, and
// the InteractionHandler keep their state, which DeclarationRegistry
// sources to load, and which success policy the GraphRunner enforces.
// Mirrors the teacher's Config aggregation-root shape (pkg/config/config.go),
// scoped to what this core actually owns.
type EngineConfig struct {
	Version  string            `yaml:"version,omitempty"`
	Name     string            `yaml:"name,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`

	PromptsDir         string `yaml:"prompts_dir,omitempty"`
	PromptRegistryPath string `yaml:"prompt_registry_path,omitempty"`
	BundleCacheDir     string `yaml:"bundle_cache_dir,omitempty"`
	CheckpointDir      string `yaml:"checkpoint_dir,omitempty"`
	InteractionDir     string `yaml:"interaction_dir,omitempty"`

	DeclarationSources []string `yaml:"declaration_sources,omitempty"`

	SuccessPolicy SuccessPolicyConfig `yaml:"success_policy,omitempty"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

func (c *EngineConfig) SetDefaults() {
	if c.PromptsDir == "" {
		c.PromptsDir = "./prompts"
	}
	if c.PromptRegistryPath == "" {
		c.PromptRegistryPath = "./prompts/registry.yaml"
	}
	if c.BundleCacheDir == "" {
		c.BundleCacheDir = "./.agentmap/bundles"
	}
	if c.CheckpointDir == "" {
		c.CheckpointDir = "./.agentmap/checkpoints"
	}
	if c.InteractionDir == "" {
		c.InteractionDir = "./.agentmap/interactions"
	}
	c.SuccessPolicy.SetDefaults()
	c.Logging.SetDefaults()
	c.Observability.SetDefaults()
}

func (c *EngineConfig) Validate() error {
	if err := c.SuccessPolicy.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Observability.Validate(); err != nil {
		return err
	}
	return nil
}

var _ ConfigInterface = (*EngineConfig)(nil)

// Load reads an EngineConfig from a YAML file, applying ${VAR} /
// ${VAR:-default} environment expansion before decoding into the typed
// struct (teacher's env-first-then-typed-decode convention), then
// SetDefaults + Validate. A missing path is not an error: Load returns
// a defaulted EngineConfig so a bare `agentmap run` works with no
// config file (spec.md section 6's CLI surface).
func Load(path string) (*EngineConfig, error) {
	cfg := &EngineConfig{}
	if path == "" {
		cfg.SetDefaults()
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.SetDefaults()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	expanded := ExpandEnvVarsInData(normalizeYAMLMaps(raw))

	expandedYAML, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("config: re-encode %q: %w", path, err)
	}
	if err := yaml.Unmarshal(expandedYAML, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// normalizeYAMLMaps converts yaml.v3's map[string]interface{} decode
// output (already string-keyed, unlike yaml.v2) into the map[string]any
// / []any shape ExpandEnvVarsInData expects; a no-op under yaml.v3 but
// keeps the expansion helper reusable if a source ever decodes through
// yaml.v2 instead.
func normalizeYAMLMaps(v any) any {
	switch m := v.(type) {
	case map[string]interface{}:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = normalizeYAMLMaps(val)
		}
		return out
	case []interface{}:
		out := make([]any, len(m))
		for i, val := range m {
			out[i] = normalizeYAMLMaps(val)
		}
		return out
	default:
		return v
	}
}
