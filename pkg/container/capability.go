package container

// Capability names a protocol an agent can declare it implements
// (spec.md section 4.6 Phase B, glossary "Capability protocol").
type Capability string

const (
	// LLMCapable agents receive the provider of protocol "LLMProvider".
	LLMCapable Capability = "LLMCapable"
	// CheckpointCapable agents receive the provider of protocol
	// "CheckpointProvider". When a bundle maps that protocol, the
	// assembler sets CompiledGraph.CheckpointEnabled; no checkpoint saver
	// is wired around the node steps.
	CheckpointCapable Capability = "CheckpointCapable"
	// OrchestrationCapable agents get a dynamic-router step inserted
	// after their node (spec.md section 4.7).
	OrchestrationCapable Capability = "OrchestrationCapable"
)

// CapabilityDescriptor pairs a detector with a configurator for one
// capability, replacing the source's isinstance+getattr dynamic
// dispatch (spec.md section 9): "define a capability-descriptor table:
// {CapabilityId -> (detectFn(agent)->bool, configureFn(agent,
// service))}. Agents register their capabilities statically."
type CapabilityDescriptor struct {
	ID       Capability
	Protocol string
	Detect   func(agent Agent) bool
	Configure func(agent Agent, service any) error
}

// CapabilityTable is the ordered set of descriptors the container
// consults during Phase B. NewCapabilityTable seeds it with the builtin
// descriptors; host applications append their own with Register before
// calling NewFactory.
type CapabilityTable struct {
	descriptors []CapabilityDescriptor
}

// NewCapabilityTable returns a table seeded with the builtin
// descriptors.
func NewCapabilityTable() *CapabilityTable {
	t := &CapabilityTable{}
	t.descriptors = append(t.descriptors, builtinCapabilities...)
	return t
}

// Register appends a descriptor, letting a host application declare a
// new capability protocol without modifying this package.
func (t *CapabilityTable) Register(d CapabilityDescriptor) {
	t.descriptors = append(t.descriptors, d)
}

// For returns every descriptor whose Detect(agent) is true.
func (t *CapabilityTable) For(agent Agent) []CapabilityDescriptor {
	var out []CapabilityDescriptor
	for _, d := range t.descriptors {
		if d.Detect(agent) {
			out = append(out, d)
		}
	}
	return out
}

// LLMConfigurable is the static interface-assertion form of the
// "LLMCapable" capability: an agent implements it instead of being
// isinstance-checked against a runtime protocol object.
type LLMConfigurable interface {
	ConfigureLLM(service any) error
}

// CheckpointConfigurable is the static form of "CheckpointCapable".
type CheckpointConfigurable interface {
	ConfigureCheckpoint(service any) error
}

// Orchestrator marks an agent as OrchestrationCapable; it carries no
// configuration hook, only a type tag the assembler checks for.
type Orchestrator interface {
	IsOrchestrator() bool
}

var builtinCapabilities = []CapabilityDescriptor{
	{
		ID:       LLMCapable,
		Protocol: "LLMProvider",
		Detect: func(agent Agent) bool {
			_, ok := agent.(LLMConfigurable)
			return ok
		},
		Configure: func(agent Agent, service any) error {
			return agent.(LLMConfigurable).ConfigureLLM(service)
		},
	},
	{
		ID:       CheckpointCapable,
		Protocol: "CheckpointProvider",
		Detect: func(agent Agent) bool {
			_, ok := agent.(CheckpointConfigurable)
			return ok
		},
		Configure: func(agent Agent, service any) error {
			return agent.(CheckpointConfigurable).ConfigureCheckpoint(service)
		},
	},
}

// IsOrchestrationCapable reports whether agent declares the
// OrchestrationCapable capability via the Orchestrator type tag.
func IsOrchestrationCapable(agent Agent) bool {
	o, ok := agent.(Orchestrator)
	return ok && o.IsOrchestrator()
}
