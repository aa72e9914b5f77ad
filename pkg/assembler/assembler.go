// Package assembler implements the GraphAssembler of spec.md section
// 4.7: it transforms a GraphBundle plus its instantiated agents into an
// executable state machine, compiling each node's edges map into a
// routing function per the edge-content table.
package assembler

import (
	"fmt"
	"log/slog"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

// Route is the outcome of evaluating a compiled node's routing function:
// either a single next node, a parallel fan-out list, or a halt (no
// further node — Targets is empty). JoinNode is the first node reachable
// by every branch in Targets (spec.md section 5), precomputed at compile
// time since the edge-content table's target lists are static; empty
// when Targets is not parallel or the branches never reconverge.
type Route struct {
	Targets  []string
	JoinNode string
}

// Halted reports whether this route terminates the walk.
func (r Route) Halted() bool { return len(r.Targets) == 0 }

// IsParallel reports whether this route fans out to more than one node.
func (r Route) IsParallel() bool { return len(r.Targets) > 1 }

// CompiledNode is one node's executable step: its agent, its
// input/output projection, and its compiled routing function.
type CompiledNode struct {
	Name               string
	Agent              container.Agent
	InputFields        []string
	OutputFields       []string
	IsOrchestrator     bool
	routeFn            func(state agentstate.State) (Route, error)
}

// Route evaluates this node's routing function against state (after the
// node's agent has already run and its output has already been merged).
func (n *CompiledNode) Route(state agentstate.State) (Route, error) {
	return n.routeFn(state)
}

// CompiledGraph is the executable state machine produced by Compile.
type CompiledGraph struct {
	EntryPoint        string
	Nodes             map[string]*CompiledNode
	CheckpointEnabled bool
}

// Assembler compiles bundles into CompiledGraphs.
type Assembler struct {
	functions *FunctionRegistry
	log       *slog.Logger
}

// New builds an Assembler. functions may be nil to use the builtin
// routing-function registry; log may be nil.
func New(functions *FunctionRegistry, log *slog.Logger) *Assembler {
	if functions == nil {
		functions = NewFunctionRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Assembler{functions: functions, log: log}
}

// Compile implements spec.md section 4.7. agents must contain one entry
// per b.Nodes key (the output of container.Factory.Build).
func (a *Assembler) Compile(b *bundle.GraphBundle, agents map[string]container.Agent) (*CompiledGraph, error) {
	cg := &CompiledGraph{
		EntryPoint: b.EntryPoint,
		Nodes:      make(map[string]*CompiledNode, len(b.Nodes)),
	}

	for name := range b.ProtocolMappings {
		if name == "CheckpointProvider" {
			cg.CheckpointEnabled = true
		}
	}

	for name, node := range b.Nodes {
		agent, ok := agents[name]
		if !ok {
			return nil, fmt.Errorf("assembler: no agent instantiated for node %q", name)
		}

		routeFn, err := a.compileRoute(node, b.Nodes)
		if err != nil {
			return nil, fmt.Errorf("assembler: node %q: %w", name, err)
		}

		cg.Nodes[name] = &CompiledNode{
			Name:           name,
			Agent:          agent,
			InputFields:    node.Inputs,
			OutputFields:   node.Output,
			IsOrchestrator: container.IsOrchestrationCapable(agent),
			routeFn:        routeFn,
		}
	}

	return cg, nil
}

// compileRoute implements the edge-content table of spec.md section 4.7.
// nodes is the full graph (for JoinNode precomputation against parallel
// edge-branch target lists, which are static and known at compile time).
func (a *Assembler) compileRoute(node *graph.Node, nodes map[string]*graph.Node) (func(agentstate.State) (Route, error), error) {
	success, hasSuccess := node.Edges[graph.EdgeSuccess]
	failure, hasFailure := node.Edges[graph.EdgeFailure]
	def, hasDefault := node.Edges[graph.EdgeDefault]

	successJoin, _ := graph.FindJoinNode(nodes, success.Names())
	failureJoin, _ := graph.FindJoinNode(nodes, failure.Names())
	defJoin, _ := graph.FindJoinNode(nodes, def.Names())

	switch {
	case node.FuncEdge != "":
		fname, args, ok := parseFuncToken(node.FuncEdge)
		if !ok {
			return nil, fmt.Errorf("malformed function reference %q", node.FuncEdge)
		}
		fn, ok := a.functions.lookup(fname)
		if !ok {
			return nil, fmt.Errorf("unresolved routing function %q", fname)
		}
		var successTarget, failureTarget string
		if len(args) > 0 {
			successTarget = args[0]
		}
		if len(args) > 1 {
			failureTarget = args[1]
		}
		return func(state agentstate.State) (Route, error) {
			target, err := fn(state, successTarget, failureTarget)
			if err != nil {
				return Route{}, err
			}
			if target == "" {
				return Route{}, nil
			}
			return Route{Targets: []string{target}}, nil
		}, nil

	case hasSuccess && hasFailure:
		return func(state agentstate.State) (Route, error) {
			if state.LastActionSucceeded() {
				return Route{Targets: success.Names(), JoinNode: successJoin}, nil
			}
			return Route{Targets: failure.Names(), JoinNode: failureJoin}, nil
		}, nil

	case hasSuccess:
		return func(state agentstate.State) (Route, error) {
			if state.LastActionSucceeded() {
				return Route{Targets: success.Names(), JoinNode: successJoin}, nil
			}
			return Route{}, nil
		}, nil

	case hasFailure:
		return func(state agentstate.State) (Route, error) {
			if !state.LastActionSucceeded() {
				return Route{Targets: failure.Names(), JoinNode: failureJoin}, nil
			}
			return Route{}, nil
		}, nil

	case hasDefault:
		return func(state agentstate.State) (Route, error) {
			return Route{Targets: def.Names(), JoinNode: defJoin}, nil
		}, nil

	default:
		return func(state agentstate.State) (Route, error) {
			return Route{}, nil
		}, nil
	}
}
