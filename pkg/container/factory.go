package container

import (
	"fmt"
	"log/slog"

	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/declaration"
)

// Factory runs both phases of spec.md section 4.6 against a bundle: it
// builds the ServiceContainer (Phase A) and then materializes one Agent
// per node (Phase B), wiring each agent's declared capability protocols
// through the CapabilityTable.
type Factory struct {
	classes      *ClassRegistry
	capabilities *CapabilityTable
	registry     *declaration.Registry
	log          *slog.Logger
}

// NewFactory builds a Factory. classes/capabilities may be nil to use
// the builtin defaults; log may be nil.
func NewFactory(registry *declaration.Registry, classes *ClassRegistry, capabilities *CapabilityTable, log *slog.Logger) *Factory {
	if classes == nil {
		classes = NewClassRegistry()
	}
	if capabilities == nil {
		capabilities = NewCapabilityTable()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Factory{classes: classes, capabilities: capabilities, registry: registry, log: log}
}

// Instantiated is the result of running both phases: a live
// ServiceContainer plus one Agent per node, keyed by node name.
type Instantiated struct {
	Services *ServiceContainer
	Agents   map[string]Agent
}

// Build runs Phase A then Phase B against b.
func (f *Factory) Build(b *bundle.GraphBundle) (*Instantiated, error) {
	services, err := BuildServiceContainer(b.ServiceLoadOrder, f.registry, f.classes, f.log)
	if err != nil {
		return nil, err
	}

	agents := make(map[string]Agent, len(b.Nodes))
	for name, node := range b.Nodes {
		agentType := node.AgentType
		if agentType == "" {
			agentType = "default"
		}

		classPath, ok := b.AgentClassMappings[agentType]
		if !ok {
			return nil, &MissingDeclarationError{AgentType: agentType}
		}

		ctor, ok := f.classes.agents.Get(classPath)
		if !ok {
			return nil, &UnknownClassError{ClassPath: classPath}
		}

		agent, err := ctor(AgentConfig{Name: node.Name, Prompt: node.Prompt, Context: node.Context, Logger: f.log})
		if err != nil {
			return nil, fmt.Errorf("node %q: construct agent: %w", node.Name, err)
		}

		decl, ok := f.registry.GetAgent(agentType)
		if ok {
			for _, protocol := range decl.ImplementsProtocols {
				if err := f.configureCapability(node.Name, agent, protocol, b, services); err != nil {
					return nil, err
				}
			}
		}

		agents[name] = agent
	}

	return &Instantiated{Services: services, Agents: agents}, nil
}

// configureCapability implements spec.md section 4.6 Phase B's last
// bullet: "For each capability protocol C the agent class declares
// implementing: look up protocol_mappings[C]; call the agent's
// protocol-specific configuration hook... Missing provider ->
// UnconfigurableAgent."
func (f *Factory) configureCapability(nodeName string, agent Agent, protocol string, b *bundle.GraphBundle, services *ServiceContainer) error {
	for _, d := range f.capabilities.For(agent) {
		if d.Protocol != protocol {
			continue
		}
		serviceName, ok := b.ProtocolMappings[protocol]
		if !ok {
			return &UnconfigurableAgentError{NodeName: nodeName, Protocol: protocol}
		}
		service, ok := services.Get(serviceName)
		if !ok {
			return &UnconfigurableAgentError{NodeName: nodeName, Protocol: protocol}
		}
		if err := d.Configure(agent, service); err != nil {
			return fmt.Errorf("node %q: configure capability %q: %w", nodeName, d.ID, err)
		}
	}
	return nil
}
