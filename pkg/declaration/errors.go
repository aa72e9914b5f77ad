package declaration

import "fmt"

// CyclicServiceGraphError is raised when the service dependency graph
// (required_deps ∪ optional_deps across all declared services) contains a
// cycle (spec.md section 4.3).
type CyclicServiceGraphError struct {
	Cycle []string
}

func (e *CyclicServiceGraphError) Error() string {
	return fmt.Sprintf("cyclic service dependency graph: %v", e.Cycle)
}

// CompatibilityWarning is a non-fatal finding from CheckCompatibility
// (SPEC_FULL.md section D.4, grounded in
// dependency_compatibility_service.py): a service declares
// RequiresProtocols that no loaded service implements.
type CompatibilityWarning struct {
	ServiceName string
	Protocol    string
}

func (w CompatibilityWarning) String() string {
	return fmt.Sprintf("service %q requires protocol %q which no loaded service implements", w.ServiceName, w.Protocol)
}
