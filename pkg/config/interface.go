// Package config provides the engine-level configuration loaded at
// startup (SPEC_FULL.md ambient stack A.3): prompts/bundle/checkpoint
// roots, the default success policy, and declaration sources. Adapted
// from the teacher's pkg/config ConfigInterface + per-section
// Validate()/SetDefaults() pattern, trimmed to the sections AgentMap's
// core actually has — no LLM/database/embedder provider config lives
// here, since those belong to concrete agent/service implementations
// the core treats as external collaborators (spec.md section 1).
package config

// ConfigInterface is the contract every configuration section
// implements, mirroring the teacher's pkg/config/interface.go.
type ConfigInterface interface {
	Validate() error
	SetDefaults()
}
