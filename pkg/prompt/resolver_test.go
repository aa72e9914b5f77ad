package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte("greeting: \"Hello, {name}!\"\n"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.txt"), []byte("Welcome."), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "config.yaml"), []byte("system:\n  tone: formal\n"), 0o644))

	r, err := New(dir, registryPath, nil)
	require.NoError(t, err)
	return r, dir
}

func TestResolver_PromptReference(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Equal(t, "Hello, {name}!", r.Resolve("prompt:greeting"))
}

func TestResolver_PromptReferenceMissingKey(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Contains(t, r.Resolve("prompt:missing"), "not found")
}

func TestResolver_FileReference(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Equal(t, "Welcome.", r.Resolve("file:intro.txt"))
}

func TestResolver_FileReferenceRejectsPathTraversal(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Contains(t, r.Resolve("file:../../etc/passwd"), "error:")
}

func TestResolver_YAMLReferenceDottedPath(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Equal(t, "formal", r.Resolve("yaml:nested/config.yaml#system.tone"))
}

func TestResolver_PassthroughForUnrecognizedReference(t *testing.T) {
	r, _ := newTestResolver(t)
	assert.Equal(t, "plain text", r.Resolve("plain text"))
}

func TestResolver_FormatPromptSubstitutesVars(t *testing.T) {
	r, _ := newTestResolver(t)
	out := r.FormatPrompt("prompt:greeting", map[string]string{"name": "Ada"})
	assert.Equal(t, "Hello, Ada!", out)
}

func TestResolver_ClearCacheForcesReresolve(t *testing.T) {
	r, dir := newTestResolver(t)
	_ = r.FormatPrompt("file:intro.txt", nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "intro.txt"), []byte("Changed."), 0o644))
	r.ClearCache()

	assert.Equal(t, "Changed.", r.FormatPrompt("file:intro.txt", nil))
}
