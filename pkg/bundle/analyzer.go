package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentmap/pkg/csvspec"
	"github.com/kadirpekel/agentmap/pkg/declaration"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

// defaultAgentType is substituted for a node whose AgentType cell was
// blank (spec.md section 4.4 step 1).
const defaultAgentType = "default"

// Analyzer is the StaticBundleAnalyzer of spec.md section 4.4: given a
// parsed Graph and a DeclarationRegistry, it produces a portable
// GraphBundle without loading any implementation class. Grounded on
// original_source/agentmap/services/static_bundle_analyzer.py's
// create_static_bundle method shape (registry/parser/logging
// constructor, the numbered derivation steps, the "no imports" invariant
// its tests assert via mock_import.assert_not_called()).
type Analyzer struct {
	registry *declaration.Registry
	parser   *csvspec.Parser
	log      *slog.Logger
}

// New builds an Analyzer. log may be nil.
func New(registry *declaration.Registry, parser *csvspec.Parser, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{registry: registry, parser: parser, log: log}
}

// CreateStaticBundle reads csvPath, parses it, converts the named graph
// (or the CSV's sole graph when graphName is ""), and derives a
// GraphBundle per spec.md section 4.4's ten steps.
func (a *Analyzer) CreateStaticBundle(csvPath string, graphName string) (*GraphBundle, error) {
	if _, err := os.Stat(csvPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		return nil, err
	}

	spec, err := a.parser.Parse(csvPath)
	if err != nil {
		return nil, &InvalidCSVStructureError{Path: csvPath, Err: err}
	}

	conv := csvspec.NewConverter(a.log)
	graphs, err := conv.Convert(spec)
	if err != nil {
		return nil, &InvalidCSVStructureError{Path: csvPath, Err: err}
	}

	name := graphName
	if name == "" {
		if len(graphs) != 1 {
			return nil, &InvalidCSVStructureError{Path: csvPath, Err: fmt.Errorf("graph_name required: CSV declares %d graphs", len(graphs))}
		}
		for k := range graphs {
			name = k
		}
	}
	g, ok := graphs[name]
	if !ok {
		return nil, &InvalidCSVStructureError{Path: csvPath, Err: fmt.Errorf("graph %q not present in CSV", name)}
	}

	return a.analyze(g, data)
}

// analyze runs steps 1-10 of spec.md section 4.4 against an
// already-converted Graph.
func (a *Analyzer) analyze(g *graph.Graph, csvBytes []byte) (*GraphBundle, error) {
	agentTypes := a.extractAgentTypes(g)

	req := a.registry.ResolveAgentRequirements(agentTypes)

	order, err := a.serviceLoadOrder(req.Services)
	if err != nil {
		return nil, err
	}

	agentClassMappings := make(map[string]string)
	for t := range agentTypes {
		if decl, ok := a.registry.GetAgent(t); ok {
			agentClassMappings[t] = decl.ClassPath
		}
	}

	protocolMappings := a.protocolMappings(order)

	funcMappings := a.functionMappings(g)

	hash := sha256.Sum256(csvBytes)

	requiredAgents := make(map[string]bool, len(agentTypes))
	for t := range agentTypes {
		requiredAgents[t] = true
	}

	bundle := &GraphBundle{
		BundleID:            uuid.NewString(),
		GraphName:           g.Name,
		CSVHash:             hex.EncodeToString(hash[:]),
		Nodes:               g.Nodes,
		EntryPoint:          g.EntryPoint,
		RequiredAgents:      requiredAgents,
		RequiredServices:    req.Services,
		ServiceLoadOrder:    order,
		AgentClassMappings:  agentClassMappings,
		ProtocolMappings:    protocolMappings,
		FunctionMappings:    funcMappings,
		MissingDeclarations: req.Missing,
		GraphStructureStats: GraphStructure{
			NodeCount:     len(g.Nodes),
			IsDAG:         !g.HasCycle(),
			ParallelEdges: g.HasParallelEdges(),
		},
		ValidationMetadata: map[string]string{},
		CreatedAt:          time.Now().UTC(),
		BundleFormat:       BundleFormatV1,
	}

	a.log.Debug("static bundle created",
		"graph_name", bundle.GraphName,
		"nodes", len(bundle.Nodes),
		"services", len(bundle.ServiceLoadOrder),
		"missing_declarations", len(bundle.MissingDeclarations),
	)

	return bundle, nil
}

// extractAgentTypes implements step 1: collect the distinct AgentType
// across every node, defaulting a blank cell to "default".
func (a *Analyzer) extractAgentTypes(g *graph.Graph) map[string]bool {
	out := make(map[string]bool)
	for _, n := range g.Nodes {
		t := n.AgentType
		if t == "" {
			t = defaultAgentType
		}
		out[t] = true
	}
	if len(out) == 0 {
		out[defaultAgentType] = true
	}
	return out
}

// serviceLoadOrder implements step 3: a deterministic topological sort
// (Kahn's algorithm, alphabetical tie-break) of services closed under
// their RequiredDeps/OptionalDeps, restricted to the resolved service
// set.
func (a *Analyzer) serviceLoadOrder(services map[string]bool) ([]string, error) {
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	indegree := make(map[string]int, len(names))
	edges := make(map[string][]string, len(names)) // dep -> dependents
	for _, name := range names {
		indegree[name] = 0
	}
	for _, name := range names {
		decl, ok := a.registry.GetService(name)
		if !ok {
			continue
		}
		deps := append(append([]string{}, decl.RequiredDeps...), decl.OptionalDeps...)
		for _, dep := range deps {
			if !services[dep] {
				continue
			}
			edges[dep] = append(edges[dep], name)
			indegree[name]++
		}
	}

	var ready []string
	for _, name := range names {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		dependents := append([]string{}, edges[next]...)
		sort.Strings(dependents)
		for _, dep := range dependents {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) != len(names) {
		return nil, fmt.Errorf("service load order: cyclic dependency among resolved services")
	}
	return order, nil
}

// protocolMappings implements step 5: the first service implementing a
// protocol, in service_load_order.
func (a *Analyzer) protocolMappings(order []string) map[string]string {
	out := make(map[string]string)
	for _, name := range order {
		decl, ok := a.registry.GetService(name)
		if !ok {
			continue
		}
		for _, p := range decl.ImplementsProtocols {
			if _, exists := out[p]; !exists {
				out[p] = name
			}
		}
	}
	return out
}

// functionMappings implements step 6: resolve every func:name(...) edge
// token present in the graph against the declaration registry, without
// loading the function implementation (spec.md section 4.11).
func (a *Analyzer) functionMappings(g *graph.Graph) map[string]string {
	out := make(map[string]string)
	for _, n := range g.Nodes {
		if n.FuncEdge == "" {
			continue
		}
		name := functionName(n.FuncEdge)
		if name == "" {
			continue
		}
		if decl, ok := a.registry.GetFunction(name); ok {
			out[name] = decl.ImplPath
		} else {
			out[name] = ""
		}
	}
	return out
}

// functionName extracts "name" out of a "func:name(...)" token.
func functionName(token string) string {
	rest := strings.TrimPrefix(token, "func:")
	if rest == token {
		return ""
	}
	if i := strings.IndexByte(rest, '('); i >= 0 {
		return rest[:i]
	}
	return rest
}

// computeCSVHash is exposed for callers (e.g. the store's get_or_create)
// that need the hash before a bundle exists yet.
func computeCSVHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// bundleFilename builds the content-addressable filename of spec.md
// section 7: "{csv_hash}.{graph_name}.bundle".
func bundleFilename(csvHash, graphName string) string {
	return filepath.Clean(fmt.Sprintf("%s.%s.bundle", csvHash, graphName))
}
