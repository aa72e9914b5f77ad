package runner

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/assembler"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

type echoStub struct{ outputs map[string]any }

func (e echoStub) Invoke(_ context.Context, _ agentstate.State, inputs map[string]any) (container.StepResult, error) {
	if e.outputs != nil {
		for _, v := range e.outputs {
			return container.Ok(v), nil
		}
	}
	return container.Ok("ok"), nil
}

type branchingStub struct{ success bool }

func (b branchingStub) Invoke(_ context.Context, state agentstate.State, _ map[string]any) (container.StepResult, error) {
	state[agentstate.LastActionSuccess] = b.success
	return container.Ok(b.success), nil
}

func compile(t *testing.T, b *bundle.GraphBundle, agents map[string]container.Agent) *assembler.CompiledGraph {
	t.Helper()
	cg, err := assembler.New(nil, nil).Compile(b, agents)
	require.NoError(t, err)
	return cg
}

// TestRunner_LinearHappyPath implements scenario S1 of spec.md section 8.
func TestRunner_LinearHappyPath(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Output: []string{"x"}, Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("B")}},
			"B": {Name: "B", Output: []string{"y"}, Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("C")}},
			"C": {Name: "C", Output: []string{"z"}},
		},
	}
	agents := map[string]container.Agent{"A": echoStub{}, "B": echoStub{}, "C": echoStub{}}
	cg := compile(t, b, agents)

	res, err := New(nil, nil).Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Executions, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{res.Executions[0].NodeName, res.Executions[1].NodeName, res.Executions[2].NodeName})
	assert.Contains(t, res.FinalState, "x")
	assert.Contains(t, res.FinalState, "y")
	assert.Contains(t, res.FinalState, "z")
}

// TestRunner_SuccessFailureBranch implements scenario S2.
func TestRunner_SuccessFailureBranch(t *testing.T) {
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
	agents := map[string]container.Agent{"A": branchingStub{success: false}, "S": echoStub{}, "F": echoStub{}}
	cg := compile(t, b, agents)

	res, err := New(nil, nil).Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	require.Len(t, res.Executions, 2)
	assert.Equal(t, "A", res.Executions[0].NodeName)
	assert.Equal(t, "F", res.Executions[1].NodeName)
}

// TestRunner_ParallelFanOut implements scenario S3.
func TestRunner_ParallelFanOut(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.ParallelTarget([]string{"B", "C"})}},
			"B": {Name: "B", Output: []string{"b_out"}},
			"C": {Name: "C", Output: []string{"c_out"}},
		},
	}
	agents := map[string]container.Agent{"A": echoStub{}, "B": echoStub{}, "C": echoStub{}}
	cg := compile(t, b, agents)

	res, err := New(nil, nil).Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	assert.Contains(t, res.FinalState, "b_out")
	assert.Contains(t, res.FinalState, "c_out")
	assert.True(t, res.Success)
}

// TestRunner_ParallelFanOutWithJoinNodeRunsJoinOnce covers the
// reconverging-branches case of spec.md section 5: two parallel
// branches that both lead to a shared downstream node D must execute D
// exactly once, after the branches merge, not once per branch.
func TestRunner_ParallelFanOutWithJoinNodeRunsJoinOnce(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.ParallelTarget([]string{"B", "C"})}},
			"B": {Name: "B", Output: []string{"b_out"}, Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("D")}},
			"C": {Name: "C", Output: []string{"c_out"}, Edges: map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("D")}},
			"D": {Name: "D", Output: []string{"d_out"}},
		},
	}
	agents := map[string]container.Agent{"A": echoStub{}, "B": echoStub{}, "C": echoStub{}, "D": echoStub{}}
	cg := compile(t, b, agents)

	res, err := New(nil, nil).Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Contains(t, res.FinalState, "b_out")
	assert.Contains(t, res.FinalState, "c_out")
	assert.Contains(t, res.FinalState, "d_out")

	var dCount int
	for _, exec := range res.Executions {
		if exec.NodeName == "D" {
			dCount++
		}
	}
	assert.Equal(t, 1, dCount, "D must execute exactly once after the branches merge, not once per branch")
	require.Len(t, res.Executions, 4)
}

// TestRunner_SuspendDoesNotPropagateAsError covers the suspend control
// flow of spec.md section 4.11: the runner never returns an error for a
// suspend, only a flagged ExecutionResult.
func TestRunner_SuspendDoesNotPropagateAsError(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "H",
		Nodes:      map[string]*graph.Node{"H": {Name: "H"}},
	}
	req := &container.InteractionRequest{ID: "req1", NodeName: "H"}
	suspendAgent := suspendingStub{req: req}
	agents := map[string]container.Agent{"H": suspendAgent}
	cg := compile(t, b, agents)

	res, err := New(nil, nil).Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.True(t, res.Suspended)
	require.NotNil(t, res.Suspension)
	assert.Equal(t, "H", res.Suspension.NodeName)
	assert.True(t, res.FinalState[agentstate.Interrupted].(bool))
}

type suspendingStub struct{ req *container.InteractionRequest }

func (s suspendingStub) Invoke(_ context.Context, _ agentstate.State, _ map[string]any) (container.StepResult, error) {
	return container.Suspend(s.req, map[string]any{"node_name": "H"}), nil
}

func TestRunner_WithMetricsObservesNodesAndRuns(t *testing.T) {
	b := &bundle.GraphBundle{
		EntryPoint: "A",
		Nodes: map[string]*graph.Node{
			"A": {Name: "A", Output: []string{"x"}},
		},
	}
	agents := map[string]container.Agent{"A": echoStub{}}
	cg := compile(t, b, agents)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := New(nil, nil).WithMetrics(m)

	_, err := r.Run(context.Background(), cg, agentstate.State{})
	require.NoError(t, err)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	var sawRuns, sawNodes bool
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "agentmap_runs_total":
			sawRuns = true
		case "agentmap_node_executions_total":
			sawNodes = true
		}
	}
	assert.True(t, sawRuns, "expected agentmap_runs_total to be registered and observed")
	assert.True(t, sawNodes, "expected agentmap_node_executions_total to be registered and observed")
}

func TestPolicy_CriticalNodesRequiresEveryNamedNodeToRun(t *testing.T) {
	policy := CriticalNodes([]string{"A", "B"})
	assert.False(t, policy([]NodeExecution{{NodeName: "A", Success: true}}))
	assert.True(t, policy([]NodeExecution{{NodeName: "A", Success: true}, {NodeName: "B", Success: true}}))
	assert.False(t, policy([]NodeExecution{{NodeName: "A", Success: true}, {NodeName: "B", Success: false}}))
}
