package declaration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_EmptyResolve(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Load())
	req := r.ResolveAgentRequirements(map[string]bool{"missing": true})
	assert.Empty(t, req.Services)
	assert.True(t, req.Missing["missing"])
}

func TestRegistry_LastSourceWins(t *testing.T) {
	r := New(nil)
	r.AddSource(&StaticSource{
		SourceName: "first",
		Agents:     map[string]AgentDeclaration{"a": {AgentType: "a", ClassPath: "first.A"}},
	})
	r.AddSource(&StaticSource{
		SourceName: "second",
		Agents:     map[string]AgentDeclaration{"a": {AgentType: "a", ClassPath: "second.A"}},
	})
	require.NoError(t, r.Load())
	decl, ok := r.GetAgent("a")
	require.True(t, ok)
	assert.Equal(t, "second.A", decl.ClassPath)
}

func TestRegistry_ResolveTransitiveServiceClosure(t *testing.T) {
	r := New(nil)
	r.AddSource(&StaticSource{
		SourceName: "s",
		Agents: map[string]AgentDeclaration{
			"llm_agent": {AgentType: "llm_agent", RequiredServices: []string{"llm"}, ImplementsProtocols: []string{"LLMCapable"}},
		},
		Services: map[string]ServiceDeclaration{
			"llm":    {ServiceName: "llm", RequiredDeps: []string{"config"}, ImplementsProtocols: []string{"LLMProvider"}},
			"config": {ServiceName: "config"},
		},
	})
	require.NoError(t, r.Load())

	req := r.ResolveAgentRequirements(map[string]bool{"llm_agent": true})
	assert.True(t, req.Services["llm"])
	assert.True(t, req.Services["config"])
	assert.True(t, req.Protocols["LLMCapable"])
	assert.True(t, req.Protocols["LLMProvider"])
	assert.Empty(t, req.Missing)
}

func TestRegistry_CyclicServiceGraph(t *testing.T) {
	r := New(nil)
	r.AddSource(&StaticSource{
		SourceName: "s",
		Services: map[string]ServiceDeclaration{
			"a": {ServiceName: "a", RequiredDeps: []string{"b"}},
			"b": {ServiceName: "b", RequiredDeps: []string{"a"}},
		},
	})
	err := r.Load()
	require.Error(t, err)
	var cerr *CyclicServiceGraphError
	require.ErrorAs(t, err, &cerr)
}

func TestRegistry_CheckCompatibilityWarnsOnUnsatisfiedProtocol(t *testing.T) {
	r := New(nil)
	r.AddSource(&StaticSource{
		SourceName: "s",
		Services: map[string]ServiceDeclaration{
			"a": {ServiceName: "a", RequiresProtocols: []string{"Unsatisfied"}},
		},
	})
	require.NoError(t, r.Load())
	warnings := r.CheckCompatibility()
	require.Len(t, warnings, 1)
	assert.Equal(t, "a", warnings[0].ServiceName)
}

func TestRegistry_LoadIsIdempotent(t *testing.T) {
	r := New(nil)
	r.AddSource(&StaticSource{
		SourceName: "s",
		Agents:     map[string]AgentDeclaration{"a": {AgentType: "a"}},
	})
	require.NoError(t, r.Load())
	require.NoError(t, r.Load())
	assert.Len(t, r.AllServices(), 0)
	_, ok := r.GetAgent("a")
	assert.True(t, ok)
}
