package interaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/assembler"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/checkpoint"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/declaration"
	"github.com/kadirpekel/agentmap/pkg/graph"
	"github.com/kadirpekel/agentmap/pkg/runner"
)

func testRegistry(t *testing.T) *declaration.Registry {
	t.Helper()
	reg := declaration.New(nil)
	reg.AddSource(declaration.BuiltinSource())
	require.NoError(t, reg.Load())
	return reg
}

func testBundle() *bundle.GraphBundle {
	return &bundle.GraphBundle{
		GraphName:  "approval_flow",
		CSVHash:    "testhash",
		EntryPoint: "ask",
		Nodes: map[string]*graph.Node{
			"ask": {
				Name:      "ask",
				AgentType: "human",
				Context:   map[string]any{"interaction_type": "approval"},
				Edges:     map[graph.EdgeLabel]graph.Target{graph.EdgeDefault: graph.SingleTarget("done")},
			},
			"done": {
				Name:   "done",
				Output: []string{"result"},
			},
		},
		AgentClassMappings: map[string]string{
			"human":   "agentmap.agents.HumanAgent",
			"default": "agentmap.agents.DefaultAgent",
		},
	}
}

func newTestHandler(t *testing.T) (*Handler, *bundle.Store) {
	t.Helper()
	dir := t.TempDir()

	reg := testRegistry(t)
	factory := container.NewFactory(reg, nil, nil, nil)
	asm := assembler.New(nil, nil)
	r := runner.New(nil, nil)

	ckDir := t.TempDir()
	ck, err := checkpoint.NewStore(ckDir, nil)
	require.NoError(t, err)

	bDir := t.TempDir()
	bstore, err := bundle.NewStore(bDir, nil, nil)
	require.NoError(t, err)

	h, err := New(dir, ck, bstore, factory, asm, r, nil)
	require.NoError(t, err)
	return h, bstore
}

func compileTestGraph(t *testing.T, f *container.Factory, asm *assembler.Assembler, b *bundle.GraphBundle) *assembler.CompiledGraph {
	t.Helper()
	inst, err := f.Build(b)
	require.NoError(t, err)
	cg, err := asm.Compile(b, inst.Agents)
	require.NoError(t, err)
	return cg
}

func TestHandler_SuspendPersistsRequestAndThreadMetadata(t *testing.T) {
	h, bstore := newTestHandler(t)
	reg := testRegistry(t)
	factory := container.NewFactory(reg, nil, nil, nil)
	asm := assembler.New(nil, nil)
	b := testBundle()
	path, err := bstore.Save(b)
	require.NoError(t, err)
	cg := compileTestGraph(t, factory, asm, b)

	res, err := h.Run(context.Background(), cg, b.GraphName, BundleInfo{GraphName: b.GraphName, BundlePath: path}, agentstate.State{})
	require.NoError(t, err)
	require.True(t, res.Suspended)

	var meta ThreadMetadata
	ok, err := h.threads.get(res.ThreadID, &meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSuspended, meta.Status)
	assert.Equal(t, "ask", meta.NodeName)
	assert.NotEmpty(t, meta.PendingInteractionID)

	var reqRecord InteractionRequestRecord
	ok, err = h.requests.get(meta.PendingInteractionID, &reqRecord)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.ThreadID, reqRecord.ThreadID)
}

func TestHandler_ResumeCompletesTheGraph(t *testing.T) {
	h, bstore := newTestHandler(t)
	reg := testRegistry(t)
	factory := container.NewFactory(reg, nil, nil, nil)
	asm := assembler.New(nil, nil)
	b := testBundle()
	path, err := bstore.Save(b)
	require.NoError(t, err)
	cg := compileTestGraph(t, factory, asm, b)

	res, err := h.Run(context.Background(), cg, b.GraphName, BundleInfo{GraphName: b.GraphName, BundlePath: path}, agentstate.State{})
	require.NoError(t, err)
	require.True(t, res.Suspended)

	out, err := h.Resume(context.Background(), res.ThreadID, "approve", map[string]any{"note": "looks good"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.Success)

	var meta ThreadMetadata
	ok, err := h.threads.get(res.ThreadID, &meta)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, meta.Status)

	var respRecord InteractionResponse
	ok, err = h.responses.get(meta.LastResponseID, &respRecord)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "approve", respRecord.Action)
}

// TestHandler_CombinedExecutionsCoverEveryNodeExactlyOnce implements
// scenario S4 of spec.md section 8: across the suspending Run and the
// completing Resume, every node in the graph must appear in the
// combined NodeExecutions exactly once, with no duplicate entry for the
// node that suspended.
func TestHandler_CombinedExecutionsCoverEveryNodeExactlyOnce(t *testing.T) {
	h, bstore := newTestHandler(t)
	reg := testRegistry(t)
	factory := container.NewFactory(reg, nil, nil, nil)
	asm := assembler.New(nil, nil)
	b := testBundle()
	path, err := bstore.Save(b)
	require.NoError(t, err)
	cg := compileTestGraph(t, factory, asm, b)

	res, err := h.Run(context.Background(), cg, b.GraphName, BundleInfo{GraphName: b.GraphName, BundlePath: path}, agentstate.State{})
	require.NoError(t, err)
	require.True(t, res.Suspended)
	require.Len(t, res.Executions, 1, "the suspending run should only record the suspended node's placeholder")

	out, err := h.Resume(context.Background(), res.ThreadID, "approve", map[string]any{"note": "looks good"})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, out.Status)

	counts := map[string]int{}
	for _, e := range out.Executions {
		counts[e.NodeName]++
	}
	assert.Equal(t, 1, counts["ask"], "node 'ask' must appear exactly once across Run+Resume")
	assert.Equal(t, 1, counts["done"], "node 'done' must appear exactly once across Run+Resume")
	assert.Len(t, out.Executions, 2)

	for _, e := range out.Executions {
		if e.NodeName == "ask" {
			assert.NotEqual(t, "suspended", e.Error, "the resumed run must replace the suspended placeholder with the real outcome")
		}
	}
}

func TestHandler_ResumeIsIdempotent(t *testing.T) {
	h, bstore := newTestHandler(t)
	reg := testRegistry(t)
	factory := container.NewFactory(reg, nil, nil, nil)
	asm := assembler.New(nil, nil)
	b := testBundle()
	path, err := bstore.Save(b)
	require.NoError(t, err)
	cg := compileTestGraph(t, factory, asm, b)

	res, err := h.Run(context.Background(), cg, b.GraphName, BundleInfo{GraphName: b.GraphName, BundlePath: path}, agentstate.State{})
	require.NoError(t, err)

	_, err = h.Resume(context.Background(), res.ThreadID, "approve", nil)
	require.NoError(t, err)

	out, err := h.Resume(context.Background(), res.ThreadID, "approve", nil)
	require.NoError(t, err)
	assert.True(t, out.AlreadyResumed)
	assert.Equal(t, StatusCompleted, out.Status)
}

func TestHandler_ResumeUnknownThreadFails(t *testing.T) {
	h, _ := newTestHandler(t)
	_, err := h.Resume(context.Background(), "nope", "approve", nil)
	require.Error(t, err)
	var unknown *UnknownThreadError
	assert.ErrorAs(t, err, &unknown)
}
