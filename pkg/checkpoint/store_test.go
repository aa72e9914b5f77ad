package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

func TestStore_PutThenGetTupleReturnsLatest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	r1 := s.Put("t1", agentstate.State{"step": 1}, map[string]any{"node": "A"}, "")
	require.True(t, r1.Success)

	r2 := s.Put("t1", agentstate.State{"step": 2}, map[string]any{"node": "B"}, r1.CheckpointID)
	require.True(t, r2.Success)

	ck, ok, err := s.GetTuple("t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), ck.StateSnapshot["step"])
	assert.Equal(t, r2.CheckpointID, ck.CheckpointID)
	assert.Equal(t, r1.CheckpointID, ck.ParentID)
}

func TestStore_GetTupleMissingThread(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	_, ok, err := s.GetTuple("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutWritesAndList(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	res := s.PutWrites("t1", "task1", map[string]any{"x": 1})
	assert.True(t, res.Success)

	s.Put("t1", agentstate.State{"a": 1}, nil, "")
	s.Put("t1", agentstate.State{"a": 2}, nil, "")

	list, err := s.List("t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, float64(2), list[0].StateSnapshot["a"], "List orders by recency, newest first")
}
