package assembler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

type stubAgent struct{}

func (stubAgent) Invoke(_ context.Context, _ agentstate.State, inputs map[string]any) (container.StepResult, error) {
	return container.Ok(inputs), nil
}

func TestAssembler_CompileUnconditionalDefault(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("B")}},
			"B": {Name: "B"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "B": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, route.Targets)
}

func TestAssembler_CompileSuccessFailureBranch(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{
				graph.EdgeSuccess: graph.SingleTarget("S"),
				graph.EdgeFailure: graph.SingleTarget("F"),
			}},
			"S": {Name: "S"},
			"F": {Name: "F"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "S": stubAgent{}, "F": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	failState := agentstate.State{agentstate.LastActionSuccess: false}
	route, err := cg.Nodes["A"].Route(failState)
	require.NoError(t, err)
	assert.Equal(t, []string{"F"}, route.Targets)

	okState := agentstate.State{}
	route, err = cg.Nodes["A"].Route(okState)
	require.NoError(t, err)
	assert.Equal(t, []string{"S"}, route.Targets)
}

func TestAssembler_CompileParallelFanOut(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.ParallelTarget([]string{"B", "C"})}},
			"B": {Name: "B"},
			"C": {Name: "C"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "B": stubAgent{}, "C": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{})
	require.NoError(t, err)
	assert.True(t, route.IsParallel())
	assert.Equal(t, []string{"B", "C"}, route.Targets)
}

func TestAssembler_CompileParallelFanOutWithJoinNode(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.ParallelTarget([]string{"B", "C"})}},
			"B": {Name: "B", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("D")}},
			"C": {Name: "C", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("D")}},
			"D": {Name: "D"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "B": stubAgent{}, "C": stubAgent{}, "D": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{})
	require.NoError(t, err)
	assert.True(t, route.IsParallel())
	assert.Equal(t, "D", route.JoinNode)
}

func TestAssembler_CompileParallelFanOutWithoutReconvergenceHasNoJoinNode(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.ParallelTarget([]string{"B", "C"})}},
			"B": {Name: "B"},
			"C": {Name: "C"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "B": stubAgent{}, "C": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{})
	require.NoError(t, err)
	assert.Equal(t, "", route.JoinNode)
}

func TestAssembler_CompileFunctionReference(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", FuncEdge: "func:route_by_success(S,F)", Edges: map[graph.EdgeLabel]graph.Target{
				graph.EdgeDefault: graph.SingleTarget("func:route_by_success(S,F)"),
			}},
			"S": {Name: "S"},
			"F": {Name: "F"},
		},
	}
	agents := map[string]container.Agent{"A": stubAgent{}, "S": stubAgent{}, "F": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{agentstate.LastActionSuccess: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"F"}, route.Targets)
}

func TestAssembler_CompileHaltsWhenNoEdges(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes:      map[string]*graph.Node{"A": {Name: "A"}},
	}
	agents := map[string]container.Agent{"A": stubAgent{}}

	cg, err := New(nil, nil).Compile(b, agents)
	require.NoError(t, err)

	route, err := cg.Nodes["A"].Route(agentstate.State{})
	require.NoError(t, err)
	assert.True(t, route.Halted())
}
