package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/declaration"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

func testRegistry(t *testing.T) *declaration.Registry {
	t.Helper()
	reg := declaration.New(nil)
	reg.AddSource(declaration.BuiltinSource())
	reg.AddSource(&declaration.StaticSource{
		SourceName: "test",
		Agents: map[string]declaration.AgentDeclaration{
			"echo": {AgentType: "echo", ClassPath: "agentmap.agents.EchoAgent"},
		},
		Services: map[string]declaration.ServiceDeclaration{
			"logging": {ServiceName: "logging", ClassPath: "agentmap.services.LoggingService"},
		},
	})
	require.NoError(t, reg.Load())
	return reg
}

func TestFactory_BuildInstantiatesAgentsAndServices(t *testing.T) {
	reg := testRegistry(t)
	f := NewFactory(reg, nil, nil, nil)

	b := &bundle.GraphBundle{
		GraphName:        "G",
		ServiceLoadOrder: []string{"logging"},
		Nodes: map[string]*graph.Node{
			"n1": {Name: "n1", AgentType: "echo"},
		},
		AgentClassMappings: map[string]string{"echo": "agentmap.agents.EchoAgent"},
	}

	inst, err := f.Build(b)
	require.NoError(t, err)
	require.Contains(t, inst.Agents, "n1")

	_, ok := inst.Services.Get("logging")
	assert.True(t, ok)

	result, err := inst.Agents["n1"].Invoke(context.Background(), agentstate.State{}, map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Output)
}

func TestFactory_BuildFailsOnMissingAgentDeclaration(t *testing.T) {
	reg := testRegistry(t)
	f := NewFactory(reg, nil, nil, nil)

	b := &bundle.GraphBundle{
		GraphName: "G",
		Nodes: map[string]*graph.Node{
			"n1": {Name: "n1", AgentType: "nonexistent"},
		},
		AgentClassMappings: map[string]string{},
	}

	_, err := f.Build(b)
	require.Error(t, err)
	var derr *MissingDeclarationError
	require.ErrorAs(t, err, &derr)
}

func TestBranchingAgent_EvaluatesSuccessAndFailureValues(t *testing.T) {
	agent, err := newBranchingAgent(AgentConfig{
		Name: "b1",
		Context: map[string]any{
			"input_fields":   []any{"http_status"},
			"success_values": []any{200, "OK"},
			"failure_values": []any{404, "ERROR"},
			"default_result": false,
		},
	})
	require.NoError(t, err)

	state := agentstate.State{}
	_, err = agent.Invoke(context.Background(), state, map[string]any{"http_status": 404})
	require.NoError(t, err)
	assert.False(t, state.LastActionSucceeded())

	state = agentstate.State{}
	_, err = agent.Invoke(context.Background(), state, map[string]any{"http_status": 200})
	require.NoError(t, err)
	assert.True(t, state.LastActionSucceeded())
}

func TestHumanAgent_SuspendsThenResumesWithResponse(t *testing.T) {
	agent, err := newHumanAgent(AgentConfig{Name: "h1", Context: map[string]any{"interaction_type": "approval"}})
	require.NoError(t, err)

	state := agentstate.State{}
	result, err := agent.Invoke(context.Background(), state, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.Suspended)
	require.NotNil(t, result.Request)
	assert.Equal(t, "approval", result.Request.InteractionType)

	state[agentstate.HumanResponse] = map[string]any{"action": "approve"}
	result, err = agent.Invoke(context.Background(), state, map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Suspended)
}
