package container

import "fmt"

// MissingServiceError is raised in Phase A when service_load_order names
// a service absent from the declaration registry at runtime (spec.md
// section 4.6, error taxonomy section 7: "MissingService").
type MissingServiceError struct {
	ServiceName string
}

func (e *MissingServiceError) Error() string {
	return fmt.Sprintf("missing service declaration: %q", e.ServiceName)
}

// MissingDeclarationError mirrors spec.md section 7's "MissingDeclaration":
// a node's agent_type has no AgentDeclaration, so no class_path exists to
// materialize.
type MissingDeclarationError struct {
	AgentType string
}

func (e *MissingDeclarationError) Error() string {
	return fmt.Sprintf("missing agent declaration: %q", e.AgentType)
}

// UnconfigurableAgentError is raised in Phase B when an agent declares a
// capability protocol with no provider in protocol_mappings (spec.md
// section 4.6 / 7).
type UnconfigurableAgentError struct {
	NodeName string
	Protocol string
}

func (e *UnconfigurableAgentError) Error() string {
	return fmt.Sprintf("node %q: no provider configured for capability protocol %q", e.NodeName, e.Protocol)
}

// UnknownClassError is raised when a class_path has no registered
// constructor (spec.md section 9: class factories are statically
// registered, never loaded by arbitrary string at run time).
type UnknownClassError struct {
	ClassPath string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("no constructor registered for class_path %q", e.ClassPath)
}
