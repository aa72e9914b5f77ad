// Package declaration implements the DeclarationRegistry of spec.md
// section 4.3: an immutable, pure-metadata registry of agent and service
// declarations. It never loads implementation classes.
package declaration

// AgentDeclaration describes an agent type's metadata (spec.md section 3).
type AgentDeclaration struct {
	AgentType           string
	ClassPath           string
	RequiredServices    []string
	OptionalServices    []string
	ImplementsProtocols []string
	Source              string
}

// ServiceDeclaration describes a service's metadata (spec.md section 3).
type ServiceDeclaration struct {
	ServiceName         string
	ClassPath           string
	RequiredDeps        []string
	OptionalDeps        []string
	ImplementsProtocols []string
	RequiresProtocols   []string
	Singleton           bool
	FactoryMethod       string
	Source              string
}

// FunctionDeclaration describes a registered routing function, used to
// resolve a func:name(...) edge token (spec.md section 4.4 step 6 /
// section 4.11) without loading the function itself.
type FunctionDeclaration struct {
	Name     string
	ImplPath string
	Source   string
}

// Source provides declarations from one origin (builtin, host-application,
// ...). Sources are consulted in registration order; a later source
// overrides an earlier one at the same key (spec.md section 4.3: "last
// wins" — see DESIGN.md Open Question decision).
type Source interface {
	Name() string
	LoadAgents() (map[string]AgentDeclaration, error)
	LoadServices() (map[string]ServiceDeclaration, error)
	LoadFunctions() (map[string]FunctionDeclaration, error)
}

// Requirements is the result of resolving a set of agent types against
// the registry (spec.md section 4.3's resolve_agent_requirements).
type Requirements struct {
	Services  map[string]bool
	Protocols map[string]bool
	Missing   map[string]bool
}
