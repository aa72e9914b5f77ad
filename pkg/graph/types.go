// Package graph holds the node/edge data model that the CSV compilation
// pipeline (pkg/csvspec) produces and the bundle analyzer (pkg/bundle)
// consumes. See SPEC_FULL.md section C for the module map.
package graph

import "fmt"

// EdgeLabel names the routing condition a node's outgoing edge is stored
// under. See spec.md section 3 (Node) for the label vocabulary.
type EdgeLabel string

const (
	// EdgeDefault is an unconditional transition.
	EdgeDefault EdgeLabel = "default"
	// EdgeSuccess fires when the node's last action succeeded.
	EdgeSuccess EdgeLabel = "success"
	// EdgeFailure fires when the node's last action failed.
	EdgeFailure EdgeLabel = "failure"
)

// Target is an edge's destination: either a single node name or a list of
// node names denoting a parallel fan-out (spec.md section 3, "Parallel edge").
type Target struct {
	Single string
	Many   []string
}

// IsParallel reports whether the target fans out to more than one node.
func (t Target) IsParallel() bool {
	return len(t.Many) > 1
}

// Names returns the flattened list of node names this target references.
func (t Target) Names() []string {
	if len(t.Many) > 0 {
		return t.Many
	}
	if t.Single != "" {
		return []string{t.Single}
	}
	return nil
}

func (t Target) String() string {
	if len(t.Many) > 0 {
		return fmt.Sprintf("%v", t.Many)
	}
	return t.Single
}

// SingleTarget builds a scalar Target.
func SingleTarget(name string) Target { return Target{Single: name} }

// ParallelTarget builds a fan-out Target from a list of node names.
func ParallelTarget(names []string) Target {
	if len(names) == 1 {
		return Target{Single: names[0]}
	}
	return Target{Many: names}
}

// Node is the compiled form of a CSV row (spec.md section 3).
type Node struct {
	Name          string
	AgentType     string
	Inputs        []string
	Output        []string // one entry unless the row declared a multi-output pipe list
	Prompt        string
	Description   string
	Context       map[string]any
	Edges         map[EdgeLabel]Target
	FuncEdge      string // non-empty when Edges[EdgeDefault] is a func:name(...) reference
	AvailableTool []string
	ToolSource    string
	LineNumber    int
}

// OutputScalar returns the single output key, or "" when Output is empty
// or multi-valued. Matches spec.md section 4.1's collapse-to-scalar rule.
func (n *Node) OutputScalar() string {
	if len(n.Output) == 1 {
		return n.Output[0]
	}
	return ""
}

// Graph is a named collection of nodes plus the resolved entry point
// (spec.md section 3).
type Graph struct {
	Name       string
	Nodes      map[string]*Node
	EntryPoint string
}

// AllEdgeTargets returns every node name referenced as an edge destination
// across the whole graph, used by entry-point resolution and dangling-edge
// validation.
func (g *Graph) AllEdgeTargets() map[string]bool {
	targets := make(map[string]bool)
	for _, n := range g.Nodes {
		for _, t := range n.Edges {
			for _, name := range t.Names() {
				targets[name] = true
			}
		}
	}
	return targets
}

// HasParallelEdges reports whether any node in the graph fans out.
func (g *Graph) HasParallelEdges() bool {
	for _, n := range g.Nodes {
		for _, t := range n.Edges {
			if t.IsParallel() {
				return true
			}
		}
	}
	return false
}

// HasCycle runs a DFS cycle check over the node edge graph (used by
// StaticBundleAnalyzer's graph_structure.is_dag field).
func (g *Graph) HasCycle() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case gray:
			return true
		case black:
			return false
		}
		color[name] = gray
		if n, ok := g.Nodes[name]; ok {
			for _, t := range n.Edges {
				for _, next := range t.Names() {
					if visit(next) {
						return true
					}
				}
			}
		}
		color[name] = black
		return false
	}
	for name := range g.Nodes {
		if color[name] == white && visit(name) {
			return true
		}
	}
	return false
}
