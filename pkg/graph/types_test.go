package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarget_IsParallelAndNames(t *testing.T) {
	single := SingleTarget("B")
	assert.False(t, single.IsParallel())
	assert.Equal(t, []string{"B"}, single.Names())

	collapsed := ParallelTarget([]string{"B"})
	assert.False(t, collapsed.IsParallel())
	assert.Equal(t, "B", collapsed.Single)

	fanOut := ParallelTarget([]string{"B", "C"})
	assert.True(t, fanOut.IsParallel())
	assert.Equal(t, []string{"B", "C"}, fanOut.Names())

	assert.Nil(t, Target{}.Names())
}

func TestNode_OutputScalar(t *testing.T) {
	assert.Equal(t, "result", (&Node{Output: []string{"result"}}).OutputScalar())
	assert.Equal(t, "", (&Node{Output: []string{"a", "b"}}).OutputScalar())
	assert.Equal(t, "", (&Node{}).OutputScalar())
}

func TestGraph_AllEdgeTargets(t *testing.T) {
	g := &Graph{Nodes: map[string]*Node{
		"A": {Name: "A", Edges: map[EdgeLabel]Target{EdgeDefault: SingleTarget("B")}},
		"B": {Name: "B", Edges: map[EdgeLabel]Target{EdgeDefault: ParallelTarget([]string{"C", "D"})}},
		"C": {Name: "C"},
		"D": {Name: "D"},
	}}
	targets := g.AllEdgeTargets()
	assert.True(t, targets["B"])
	assert.True(t, targets["C"])
	assert.True(t, targets["D"])
	assert.False(t, targets["A"])
}

func TestGraph_HasParallelEdges(t *testing.T) {
	linear := &Graph{Nodes: map[string]*Node{
		"A": {Edges: map[EdgeLabel]Target{EdgeDefault: SingleTarget("B")}},
		"B": {},
	}}
	assert.False(t, linear.HasParallelEdges())

	branching := &Graph{Nodes: map[string]*Node{
		"A": {Edges: map[EdgeLabel]Target{EdgeDefault: ParallelTarget([]string{"B", "C"})}},
		"B": {},
		"C": {},
	}}
	assert.True(t, branching.HasParallelEdges())
}

func TestGraph_HasCycle(t *testing.T) {
	acyclic := &Graph{Nodes: map[string]*Node{
		"A": {Edges: map[EdgeLabel]Target{EdgeSuccess: SingleTarget("B"), EdgeFailure: SingleTarget("C")}},
		"B": {},
		"C": {},
	}}
	assert.False(t, acyclic.HasCycle())

	cyclic := &Graph{Nodes: map[string]*Node{
		"A": {Edges: map[EdgeLabel]Target{EdgeDefault: SingleTarget("B")}},
		"B": {Edges: map[EdgeLabel]Target{EdgeDefault: SingleTarget("A")}},
	}}
	assert.True(t, cyclic.HasCycle())

	selfLoop := &Graph{Nodes: map[string]*Node{
		"A": {Edges: map[EdgeLabel]Target{EdgeDefault: SingleTarget("A")}},
	}}
	assert.True(t, selfLoop.HasCycle())
}
