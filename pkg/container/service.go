package container

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kadirpekel/agentmap/pkg/declaration"
	"github.com/kadirpekel/agentmap/pkg/registry"
)

// ServiceConstructor builds a service instance from its resolved
// required/optional dependencies, already-constructed in load order
// (spec.md section 4.6 Phase A).
type ServiceConstructor func(deps ServiceDeps) (any, error)

// ServiceDeps exposes a service constructor's already-built
// dependencies by name.
type ServiceDeps struct {
	Required map[string]any
	Optional map[string]any
	Log      *slog.Logger
}

// ClassRegistry is the "statically registered class factory map built at
// startup" of spec.md section 9, replacing dotted-path class loading.
// Agent and service constructors are registered separately since they
// take different construction payloads; each is backed by the shared
// generic pkg/registry store so registration/lookup share one
// locking and overwrite discipline.
type ClassRegistry struct {
	agents   *registry.BaseRegistry[AgentConstructor]
	services *registry.BaseRegistry[ServiceConstructor]
}

// NewClassRegistry returns a registry seeded with the engine's builtin
// agent and service constructors.
func NewClassRegistry() *ClassRegistry {
	r := &ClassRegistry{
		agents:   registry.NewBaseRegistry[AgentConstructor](),
		services: registry.NewBaseRegistry[ServiceConstructor](),
	}
	for path, ctor := range builtinAgentConstructors {
		r.agents.Upsert(path, ctor)
	}
	for path, ctor := range builtinServiceConstructors {
		r.services.Upsert(path, ctor)
	}
	return r
}

// RegisterAgent binds a class_path to an AgentConstructor, overwriting
// any existing binding (including a builtin). Host applications call
// this before building a Factory so their own agent types resolve.
func (r *ClassRegistry) RegisterAgent(classPath string, ctor AgentConstructor) {
	r.agents.Upsert(classPath, ctor)
}

// RegisterService binds a class_path to a ServiceConstructor,
// overwriting any existing binding.
func (r *ClassRegistry) RegisterService(classPath string, ctor ServiceConstructor) {
	r.services.Upsert(classPath, ctor)
}

// ServiceContainer holds the service instances built in Phase A, one
// per service name (spec.md section 4.6, section 5 "Shared resources":
// singletons shared across the whole run; services are expected
// thread-safe; mutation outside Phase A is forbidden).
type ServiceContainer struct {
	mu        sync.RWMutex
	instances map[string]any
	snapshot  RegistrySnapshot
}

// RegistrySnapshot records Phase A's resolution decisions.
// BuildServiceContainer fills only ServiceLoadOrder; AgentClassMappings
// and ProtocolMappings stay nil, and the snapshot is not written into
// the bundle or checked on later loads.
type RegistrySnapshot struct {
	ServiceLoadOrder   []string
	AgentClassMappings map[string]string
	ProtocolMappings   map[string]string
}

// Get returns an already-constructed singleton service by name.
func (c *ServiceContainer) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.instances[name]
	return v, ok
}

// Snapshot returns the registry snapshot recorded at Phase A.
func (c *ServiceContainer) Snapshot() RegistrySnapshot { return c.snapshot }

// BuildServiceContainer runs Phase A: walk serviceLoadOrder, resolving
// each ServiceDeclaration against reg and materializing it through cr
// (spec.md section 4.6 Phase A). Every service is constructed exactly
// once and cached in the container; a declaration's Singleton flag is
// only logged, and no service is constructed per request. Construction is a loop over the precomputed topo sort, not
// an auto-wiring DI container (spec.md section 9).
func BuildServiceContainer(serviceLoadOrder []string, reg *declaration.Registry, cr *ClassRegistry, log *slog.Logger) (*ServiceContainer, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &ServiceContainer{
		instances: make(map[string]any, len(serviceLoadOrder)),
		snapshot:  RegistrySnapshot{ServiceLoadOrder: append([]string{}, serviceLoadOrder...)},
	}

	for _, name := range serviceLoadOrder {
		decl, ok := reg.GetService(name)
		if !ok {
			return nil, &MissingServiceError{ServiceName: name}
		}

		ctor, ok := cr.services.Get(decl.ClassPath)
		if !ok {
			return nil, &UnknownClassError{ClassPath: decl.ClassPath}
		}

		deps := ServiceDeps{Required: make(map[string]any), Optional: make(map[string]any), Log: log}
		for _, dep := range decl.RequiredDeps {
			v, ok := c.instances[dep]
			if !ok {
				return nil, fmt.Errorf("service %q: required dependency %q not yet constructed", name, dep)
			}
			deps.Required[dep] = v
		}
		for _, dep := range decl.OptionalDeps {
			if v, ok := c.instances[dep]; ok {
				deps.Optional[dep] = v
			}
		}

		instance, err := ctor(deps)
		if err != nil {
			return nil, fmt.Errorf("service %q: construct: %w", name, err)
		}

		c.instances[name] = instance
		log.Debug("service constructed", "service_name", name, "class_path", decl.ClassPath, "singleton", decl.Singleton)
	}

	return c, nil
}
