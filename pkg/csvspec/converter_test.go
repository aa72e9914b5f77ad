package csvspec

import (
	"testing"

	"github.com/kadirpekel/agentmap/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSpec(specs ...*NodeSpec) *GraphSpec {
	return &GraphSpec{Specs: specs, TotalRows: len(specs)}
}

func TestConverter_EntryPointResolution(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A", Edge: "B"},
		&NodeSpec{GraphName: "G", Name: "B"},
	)
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	require.Contains(t, graphs, "G")
	assert.Equal(t, "A", graphs["G"].EntryPoint)
}

func TestConverter_AmbiguousEntryPoint_NoCandidates(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A", Edge: "B"},
		&NodeSpec{GraphName: "G", Name: "B", Edge: "A"},
	)
	_, err := NewConverter(nil).Convert(spec)
	require.Error(t, err)
	var aerr *AmbiguousEntryPointError
	require.ErrorAs(t, err, &aerr)
}

func TestConverter_AmbiguousEntryPoint_MultipleCandidates(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A"},
		&NodeSpec{GraphName: "G", Name: "B"},
	)
	_, err := NewConverter(nil).Convert(spec)
	require.Error(t, err)
}

func TestConverter_DanglingEdge(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A", Edge: "Missing"})
	_, err := NewConverter(nil).Convert(spec)
	require.Error(t, err)
	var derr *DanglingEdgeError
	require.ErrorAs(t, err, &derr)
}

func TestConverter_SuccessFailurePrecedenceOverEdge(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A", Edge: "Ignored", SuccessNext: "S", FailureNext: "F"},
		&NodeSpec{GraphName: "G", Name: "S"},
		&NodeSpec{GraphName: "G", Name: "F"},
	)
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	a := graphs["G"].Nodes["A"]
	_, hasDefault := a.Edges[graph.EdgeDefault]
	assert.False(t, hasDefault)
	assert.Equal(t, "S", a.Edges[graph.EdgeSuccess].Single)
	assert.Equal(t, "F", a.Edges[graph.EdgeFailure].Single)
}

func TestConverter_ParallelEdge(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A", Edge: "B|C"},
		&NodeSpec{GraphName: "G", Name: "B"},
		&NodeSpec{GraphName: "G", Name: "C"},
	)
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	target := graphs["G"].Nodes["A"].Edges[graph.EdgeDefault]
	assert.True(t, target.IsParallel())
	assert.ElementsMatch(t, []string{"B", "C"}, target.Names())
}

func TestConverter_ContextJSON(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A", Context: `{"routing_enabled": true, "tier": "high"}`})
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	ctx := graphs["G"].Nodes["A"].Context
	assert.Equal(t, true, ctx["routing_enabled"])
	assert.Equal(t, "high", ctx["tier"])
}

func TestConverter_ContextLiteralDict(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A", Context: `{'provider': 'openai', 'temperature': 0.5, 'enabled': True}`})
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	ctx := graphs["G"].Nodes["A"].Context
	assert.Equal(t, "openai", ctx["provider"])
	assert.Equal(t, 0.5, ctx["temperature"])
	assert.Equal(t, true, ctx["enabled"])
}

func TestConverter_ContextOpaqueText(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A", Context: "just some notes"})
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	ctx := graphs["G"].Nodes["A"].Context
	assert.Equal(t, "just some notes", ctx["context"])
}

func TestConverter_ContextEmpty(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A"})
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	assert.Empty(t, graphs["G"].Nodes["A"].Context)
}

func TestConverter_FuncReferenceEdgeResolvedAgainstDeclaredNodes(t *testing.T) {
	spec := mkSpec(
		&NodeSpec{GraphName: "G", Name: "A", Edge: "func:route(S,F)"},
		&NodeSpec{GraphName: "G", Name: "S"},
		&NodeSpec{GraphName: "G", Name: "F"},
	)
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	a := graphs["G"].Nodes["A"]
	assert.Equal(t, "func:route(S,F)", a.FuncEdge)
}

func TestConverter_OutputFieldMultiValueNotCollapsed(t *testing.T) {
	spec := mkSpec(&NodeSpec{GraphName: "G", Name: "A", OutputField: "x|y"})
	graphs, err := NewConverter(nil).Convert(spec)
	require.NoError(t, err)
	assert.Equal(t, "", graphs["G"].Nodes["A"].OutputScalar())
}
