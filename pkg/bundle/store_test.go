package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentmap/pkg/csvspec"
)

func TestStore_GetOrCreateCachesOnSecondCall(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "g.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("GraphName,Node,AgentType,Edge\nG,n1,echo,n2\nG,n2,echo,\n"), 0o644))

	a := New(newTestRegistry(t), csvspec.NewParser(nil), nil)
	store, err := NewStore(filepath.Join(dir, "cache"), a, nil)
	require.NoError(t, err)
	defer store.Close()

	b1, err := store.GetOrCreate(csvPath, "G")
	require.NoError(t, err)

	b2, err := store.GetOrCreate(csvPath, "G")
	require.NoError(t, err)

	assert.Equal(t, b1.CSVHash, b2.CSVHash)
	assert.Equal(t, b1.ServiceLoadOrder, b2.ServiceLoadOrder)
	assert.Equal(t, b1.BundleID, b2.BundleID, "cache hit must return the saved bundle, not a fresh build")
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	a := New(newTestRegistry(t), csvspec.NewParser(nil), nil)
	store, err := NewStore(dir, a, nil)
	require.NoError(t, err)
	defer store.Close()

	b := &GraphBundle{
		BundleID:   "fixed-id",
		GraphName:  "G",
		CSVHash:    "deadbeef",
		EntryPoint: "n1",
		BundleFormat: BundleFormatV1,
	}
	path, err := store.Save(b)
	require.NoError(t, err)

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, b.GraphName, loaded.GraphName)
	assert.Equal(t, b.EntryPoint, loaded.EntryPoint)
}

func TestStore_LoadCorruptBundle(t *testing.T) {
	dir := t.TempDir()
	a := New(newTestRegistry(t), csvspec.NewParser(nil), nil)
	store, err := NewStore(dir, a, nil)
	require.NoError(t, err)
	defer store.Close()

	path := filepath.Join(dir, "bad.bundle")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err = store.Load(path)
	require.Error(t, err)
	var cerr *CorruptBundleError
	require.ErrorAs(t, err, &cerr)
}

func TestStore_LookupMiss(t *testing.T) {
	dir := t.TempDir()
	a := New(newTestRegistry(t), csvspec.NewParser(nil), nil)
	store, err := NewStore(dir, a, nil)
	require.NoError(t, err)
	defer store.Close()

	_, ok, err := store.Lookup("nope", "G")
	require.NoError(t, err)
	assert.False(t, ok)
}
