// Package prompt implements the PromptResolver capability service of
// spec.md section 4.9: resolves prompt:/file:/yaml: references against a
// registry file and a prompts directory, with path-traversal rejection
// and dotted-path YAML lookups. Descriptive error strings are returned
// rather than thrown, so a workflow continues with diagnostic text.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Resolver resolves prompt references. Lifecycle is init(config) -> use
// -> teardown (spec.md section 9): construct with New, call the stop
// function returned by Watch when done watching.
type Resolver struct {
	promptsDir   string
	registryPath string
	log          *slog.Logger

	mu       sync.RWMutex
	registry map[string]string
	cache    map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New builds a Resolver rooted at promptsDir, loading registryPath (a
// YAML file mapping prompt keys to text) if it exists. log may be nil.
func New(promptsDir, registryPath string, log *slog.Logger) (*Resolver, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		promptsDir:   promptsDir,
		registryPath: registryPath,
		log:          log,
		cache:        make(map[string]string),
	}
	if err := r.loadRegistry(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) loadRegistry() error {
	data, err := os.ReadFile(r.registryPath)
	if os.IsNotExist(err) {
		r.mu.Lock()
		r.registry = map[string]string{}
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("prompt registry %q: %w", r.registryPath, err)
	}
	var reg map[string]string
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("prompt registry %q: %w", r.registryPath, err)
	}
	r.mu.Lock()
	r.registry = reg
	r.mu.Unlock()
	return nil
}

// Resolve implements spec.md section 4.9's reference resolution. Every
// failure, including a rejected path traversal, is returned as a
// descriptive "error: ..." string in the return value; Resolve has no
// error result. A registry read failure surfaces as a Go error only
// from New.
func (r *Resolver) Resolve(ref string) string {
	if ref == "" {
		return ref
	}

	switch {
	case strings.HasPrefix(ref, "prompt:"):
		key := strings.TrimPrefix(ref, "prompt:")
		r.mu.RLock()
		text, ok := r.registry[key]
		r.mu.RUnlock()
		if !ok {
			return fmt.Sprintf("error: prompt key %q not found in registry", key)
		}
		return text

	case strings.HasPrefix(ref, "file:"):
		rel := strings.TrimPrefix(ref, "file:")
		text, err := r.resolveFile(rel)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return text

	case strings.HasPrefix(ref, "yaml:"):
		text, err := r.resolveYAML(strings.TrimPrefix(ref, "yaml:"))
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return text

	default:
		return ref
	}
}

func (r *Resolver) resolveFile(rel string) (string, error) {
	full := filepath.Join(r.promptsDir, rel)
	if !withinRoot(r.promptsDir, full) {
		return "", &PathTraversalError{Ref: rel}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("file reference %q: %w", rel, err)
	}
	return string(data), nil
}

func (r *Resolver) resolveYAML(ref string) (string, error) {
	parts := strings.SplitN(ref, "#", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("yaml reference %q missing '#<dotted.key>'", ref)
	}
	relPath, dotted := parts[0], parts[1]

	full := filepath.Join(r.promptsDir, relPath)
	if !withinRoot(r.promptsDir, full) {
		return "", &PathTraversalError{Ref: relPath}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("yaml reference %q: %w", ref, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("yaml reference %q: %w", ref, err)
	}

	val, err := traverseDotted(doc, dotted)
	if err != nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return fmt.Sprintf("%v", val), nil
	}
	return s, nil
}

func traverseDotted(doc map[string]any, dotted string) (any, error) {
	var cur any = doc
	for _, key := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dotted key %q: %q is not a mapping", dotted, key)
		}
		v, ok := m[key]
		if !ok {
			return nil, fmt.Errorf("dotted key %q: %q not found", dotted, key)
		}
		cur = v
	}
	return cur, nil
}

// withinRoot reports whether candidate resolves inside root once both
// are cleaned and made absolute.
func withinRoot(root, candidate string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absCandidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// FormatPrompt implements format_prompt(ref, vars): resolve + "{name}"
// substitution, with optional caching keyed by the raw reference string.
func (r *Resolver) FormatPrompt(ref string, vars map[string]string) string {
	r.mu.RLock()
	cached, ok := r.cache[ref]
	r.mu.RUnlock()

	text := cached
	if !ok {
		text = r.Resolve(ref)
		r.mu.Lock()
		r.cache[ref] = text
		r.mu.Unlock()
	}

	for name, val := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", val)
	}
	return text
}

// ClearCache empties the format_prompt cache.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
}

// Watch starts an fsnotify watch on the registry file's directory,
// reloading the registry and clearing the cache on any write event
// (grounded on pkg/config/provider/file.go's FileProvider.watchLoop).
// Call the returned stop function to tear the watch down.
func (r *Resolver) Watch(ctx context.Context) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("prompt resolver: watch: %w", err)
	}
	dir := filepath.Dir(r.registryPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("prompt resolver: watch %q: %w", dir, err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})
	go r.watchLoop(ctx, watcher)

	return func() {
		watcher.Close()
		<-r.done
	}, nil
}

func (r *Resolver) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(r.done)
	target := filepath.Base(r.registryPath)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.loadRegistry(); err != nil {
				r.log.Warn("prompt registry reload failed", "error", err)
				continue
			}
			r.ClearCache()
			r.log.Info("prompt registry reloaded", "path", r.registryPath)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn("prompt registry watch error", "error", err)
		}
	}
}
