package declaration

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry is the immutable-after-load DeclarationRegistry of spec.md
// section 4.3. Sources are added in priority order (lowest first); a
// later source's declaration overrides an earlier one at the same key.
type Registry struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sources   []Source
	agents    map[string]AgentDeclaration
	services  map[string]ServiceDeclaration
	functions map[string]FunctionDeclaration
	loaded    bool
}

// New builds an empty Registry. log may be nil.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:       log,
		agents:    make(map[string]AgentDeclaration),
		services:  make(map[string]ServiceDeclaration),
		functions: make(map[string]FunctionDeclaration),
	}
}

// AddSource registers a declaration source. Sources are applied in the
// order added during Load.
func (r *Registry) AddSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

// Load runs every source's LoadAgents/LoadServices, applies last-wins
// override semantics, then runs the service-graph cycle check. Load is
// total and idempotent: calling it twice re-runs every source and
// replaces the registry contents, it does not accumulate duplicates.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agents := make(map[string]AgentDeclaration)
	services := make(map[string]ServiceDeclaration)
	functions := make(map[string]FunctionDeclaration)

	for _, src := range r.sources {
		loadedAgents, err := src.LoadAgents()
		if err != nil {
			return err
		}
		for k, v := range loadedAgents {
			if _, exists := agents[k]; exists {
				r.log.Warn("agent declaration overridden by later source", "agent_type", k, "source", src.Name())
			}
			agents[k] = v
		}

		loadedServices, err := src.LoadServices()
		if err != nil {
			return err
		}
		for k, v := range loadedServices {
			if _, exists := services[k]; exists {
				r.log.Warn("service declaration overridden by later source", "service_name", k, "source", src.Name())
			}
			services[k] = v
		}

		loadedFunctions, err := src.LoadFunctions()
		if err != nil {
			return err
		}
		for k, v := range loadedFunctions {
			functions[k] = v
		}
	}

	if cycle := detectCycle(services); cycle != nil {
		return &CyclicServiceGraphError{Cycle: cycle}
	}

	r.agents = agents
	r.services = services
	r.functions = functions
	r.loaded = true
	return nil
}

// GetFunction returns the function declaration for name, if any.
func (r *Registry) GetFunction(name string) (FunctionDeclaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.functions[name]
	return d, ok
}

// GetAgent returns the agent declaration for agentType, if any.
func (r *Registry) GetAgent(agentType string) (AgentDeclaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[agentType]
	return d, ok
}

// GetService returns the service declaration for serviceName, if any.
func (r *Registry) GetService(serviceName string) (ServiceDeclaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.services[serviceName]
	return d, ok
}

// AllServices returns every loaded service declaration.
func (r *Registry) AllServices() map[string]ServiceDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ServiceDeclaration, len(r.services))
	for k, v := range r.services {
		out[k] = v
	}
	return out
}

// ResolveAgentRequirements implements spec.md section 4.3: BFS from the
// set of agent declarations, collecting required_services and the
// transitive required_deps closure of those services; missing agent
// types are recorded; protocols are collected from both agents'
// implemented protocols and services' provided protocols.
func (r *Registry) ResolveAgentRequirements(agentTypes map[string]bool) Requirements {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req := Requirements{
		Services:  make(map[string]bool),
		Protocols: make(map[string]bool),
		Missing:   make(map[string]bool),
	}

	queue := make([]string, 0, len(agentTypes))
	for t := range agentTypes {
		decl, ok := r.agents[t]
		if !ok {
			req.Missing[t] = true
			continue
		}
		for _, p := range decl.ImplementsProtocols {
			req.Protocols[p] = true
		}
		queue = append(queue, decl.RequiredServices...)
	}

	visited := make(map[string]bool)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if visited[name] {
			continue
		}
		visited[name] = true
		req.Services[name] = true

		svc, ok := r.services[name]
		if !ok {
			continue
		}
		for _, p := range svc.ImplementsProtocols {
			req.Protocols[p] = true
		}
		queue = append(queue, svc.RequiredDeps...)
	}

	return req
}

// CheckCompatibility implements SPEC_FULL.md section D.4: flags any
// loaded service whose RequiresProtocols is not satisfied by any other
// loaded service's ImplementsProtocols. Non-fatal; returned as warnings.
func (r *Registry) CheckCompatibility() []CompatibilityWarning {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provided := make(map[string]bool)
	for _, svc := range r.services {
		for _, p := range svc.ImplementsProtocols {
			provided[p] = true
		}
	}

	var warnings []CompatibilityWarning
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		svc := r.services[name]
		for _, req := range svc.RequiresProtocols {
			if !provided[req] {
				warnings = append(warnings, CompatibilityWarning{ServiceName: name, Protocol: req})
			}
		}
	}
	return warnings
}

// detectCycle runs a tarjan-style DFS cycle check across the union of
// required_deps and optional_deps of every service (spec.md section 4.3).
// Returns the first cycle found as a node-name path, or nil if acyclic.
func detectCycle(services map[string]ServiceDeclaration) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(services))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		switch color[name] {
		case gray:
			// Found the back-edge; return the cycle slice.
			cut := 0
			for i, n := range path {
				if n == name {
					cut = i
					break
				}
			}
			cycle := append([]string{}, path[cut:]...)
			return append(cycle, name)
		case black:
			return nil
		}
		color[name] = gray
		path = append(path, name)

		svc, ok := services[name]
		if ok {
			deps := append(append([]string{}, svc.RequiredDeps...), svc.OptionalDeps...)
			sort.Strings(deps)
			for _, dep := range deps {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		color[name] = black
		path = path[:len(path)-1]
		return nil
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if color[name] == white {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
