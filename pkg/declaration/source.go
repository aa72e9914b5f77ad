package declaration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticSource is a Source backed by an in-memory map, used for the
// registry's builtin declarations and in tests.
type StaticSource struct {
	SourceName string
	Agents     map[string]AgentDeclaration
	Services   map[string]ServiceDeclaration
	Functions  map[string]FunctionDeclaration
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) LoadAgents() (map[string]AgentDeclaration, error) {
	return s.Agents, nil
}

func (s *StaticSource) LoadServices() (map[string]ServiceDeclaration, error) {
	return s.Services, nil
}

func (s *StaticSource) LoadFunctions() (map[string]FunctionDeclaration, error) {
	return s.Functions, nil
}

// yamlDeclarationFile is the on-disk shape of a host-application
// declaration source (spec.md section 4.3: "optional host-application
// sources").
type yamlDeclarationFile struct {
	Agents    []AgentDeclaration     `yaml:"agents"`
	Services  []ServiceDeclaration   `yaml:"services"`
	Functions []FunctionDeclaration  `yaml:"functions"`
}

// YAMLFileSource loads agent/service declarations from a YAML file,
// following the teacher's gopkg.in/yaml.v3-based config loading
// (pkg/config/loader.go pattern).
type YAMLFileSource struct {
	SourceName string
	Path       string
}

func (s *YAMLFileSource) Name() string { return s.SourceName }

func (s *YAMLFileSource) read() (*yamlDeclarationFile, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("declaration source %q: %w", s.Path, err)
	}
	var doc yamlDeclarationFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("declaration source %q: %w", s.Path, err)
	}
	return &doc, nil
}

func (s *YAMLFileSource) LoadAgents() (map[string]AgentDeclaration, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]AgentDeclaration, len(doc.Agents))
	for _, a := range doc.Agents {
		a.Source = s.SourceName
		out[a.AgentType] = a
	}
	return out, nil
}

func (s *YAMLFileSource) LoadServices() (map[string]ServiceDeclaration, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ServiceDeclaration, len(doc.Services))
	for _, svc := range doc.Services {
		svc.Source = s.SourceName
		out[svc.ServiceName] = svc
	}
	return out, nil
}

func (s *YAMLFileSource) LoadFunctions() (map[string]FunctionDeclaration, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]FunctionDeclaration, len(doc.Functions))
	for _, fn := range doc.Functions {
		fn.Source = s.SourceName
		out[fn.Name] = fn
	}
	return out, nil
}

// BuiltinSource returns the engine's builtin declarations: the "default"
// agent type (a no-dependency passthrough used when a CSV row omits
// AgentType) and no builtin services, since concrete agents/services are
// external collaborators per spec.md section 1.
func BuiltinSource() Source {
	return &StaticSource{
		SourceName: "builtin",
		Agents: map[string]AgentDeclaration{
			"default": {
				AgentType: "default",
				ClassPath: "builtin.DefaultAgent",
				Source:    "builtin",
			},
		},
		Services:  map[string]ServiceDeclaration{},
		Functions: map[string]FunctionDeclaration{},
	}
}
