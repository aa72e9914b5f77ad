package container

import "log/slog"

// LoggingService is the builtin "logging" service: a thin wrapper
// handing out the container's *slog.Logger to whoever depends on it,
// standing in for the source's process-wide logger (spec.md section 9:
// "lifecycle is init(config) -> use -> teardown; the container owns the
// logger as a singleton; no module-level state").
type LoggingService struct {
	Log *slog.Logger
}

func newLoggingService(deps ServiceDeps) (any, error) {
	return &LoggingService{Log: deps.Log}, nil
}

// ConfigService is the builtin "config" service: a flat string-keyed
// settings map, constructed empty in Phase A; services declaring
// RequiredDeps: ["config"] receive this instance.
type ConfigService struct {
	Values map[string]string
}

func newConfigService(deps ServiceDeps) (any, error) {
	return &ConfigService{Values: map[string]string{}}, nil
}

// LLMService is a minimal stand-in LLMProvider whose Complete echoes
// the prompt back; a host application registers its own class_path
// under the "llm_service" ServiceDeclaration to replace it.
type LLMService struct{}

func newLLMService(deps ServiceDeps) (any, error) {
	return &LLMService{}, nil
}

// Complete is the capability surface an LLMConfigurable agent calls
// through after ConfigureLLM wires this service in.
func (s *LLMService) Complete(prompt string) (string, error) {
	return prompt, nil
}

var builtinServiceConstructors = map[string]ServiceConstructor{
	"agentmap.services.LoggingService": newLoggingService,
	"agentmap.services.ConfigService":  newConfigService,
	"agentmap.services.LLMService":     newLLMService,
}
