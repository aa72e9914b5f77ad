package checkpoint

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	goccyjson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// Store is the CheckpointStore of spec.md section 4.10, file-backed
// under dir/checkpoints and dir/writes (spec.md section 6: "two logical
// namespaces under the bundle cache root"). Atomic saves follow the
// bundle store's temp-file + fsync + rename discipline.
type Store struct {
	checkpointsDir string
	writesDir      string
	log            *slog.Logger

	mu sync.Mutex
}

// NewStore creates (if absent) dir/checkpoints and dir/writes and
// returns a Store rooted there.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	checkpointsDir := filepath.Join(dir, "checkpoints")
	writesDir := filepath.Join(dir, "writes")
	for _, d := range []string{checkpointsDir, writesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("checkpoint store: %w", err)
		}
	}
	return &Store{checkpointsDir: checkpointsDir, writesDir: writesDir, log: log}, nil
}

// Put appends a new checkpoint for threadID (spec.md section 4.10:
// "append a new checkpoint keyed by thread_id and a UTC monotonic id").
// Never returns a Go error for a storage failure; the caller inspects
// PutResult.Success.
func (s *Store) Put(threadID string, state agentstate.State, metadata map[string]any, parentID string) PutResult {
	ck := Checkpoint{
		ThreadID:      threadID,
		CheckpointID:  fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405.000000000Z"), uuid.NewString()[:8]),
		ParentID:      parentID,
		StateSnapshot: state.Clone(),
		Metadata:      metadata,
		VersionsSeen:  map[string]int{},
		Format:        FormatV1,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.writeAtomic(s.checkpointPath(threadID, ck.CheckpointID), ck); err != nil {
		s.log.Warn("checkpoint write failed", "thread_id", threadID, "error", err)
		return PutResult{Success: false, Error: err.Error()}
	}
	return PutResult{Success: true, CheckpointID: ck.CheckpointID}
}

// GetTuple returns the latest checkpoint for threadID (spec.md section
// 4.10: "ties broken by insertion order -- write order wins"), or
// (nil, false) if none exists.
func (s *Store) GetTuple(threadID string) (*Checkpoint, bool, error) {
	pattern := filepath.Join(s.checkpointsDir, threadID+"__*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, false, err
	}
	if len(matches) == 0 {
		return nil, false, nil
	}
	sort.Strings(matches) // checkpoint_id is time-prefixed: lexical sort == write order
	latest := matches[len(matches)-1]

	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, false, err
	}
	var ck Checkpoint
	if err := goccyjson.Unmarshal(data, &ck); err != nil {
		return nil, false, fmt.Errorf("checkpoint store: corrupt checkpoint %q: %w", latest, err)
	}
	return &ck, true, nil
}

// PutWrites records intermediate writes in the sibling "writes"
// namespace, keyed by thread_id + task_id (spec.md section 4.10).
func (s *Store) PutWrites(threadID, taskID string, values map[string]any) PutResult {
	w := Write{ThreadID: threadID, TaskID: taskID, Values: values, Format: FormatV1, CreatedAt: time.Now().UTC()}
	path := filepath.Join(s.writesDir, fmt.Sprintf("%s__%s.json", threadID, taskID))
	if err := s.writeAtomic(path, w); err != nil {
		s.log.Warn("write record failed", "thread_id", threadID, "task_id", taskID, "error", err)
		return PutResult{Success: false, Error: err.Error()}
	}
	return PutResult{Success: true}
}

// List returns every checkpoint for threadID ordered by recency
// (spec.md section 4.10, optional operation).
func (s *Store) List(threadID string) ([]*Checkpoint, error) {
	pattern := filepath.Join(s.checkpointsDir, threadID+"__*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	out := make([]*Checkpoint, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var ck Checkpoint
		if err := goccyjson.Unmarshal(data, &ck); err != nil {
			continue
		}
		out = append(out, &ck)
	}
	return out, nil
}

func (s *Store) checkpointPath(threadID, checkpointID string) string {
	return filepath.Join(s.checkpointsDir, fmt.Sprintf("%s__%s.json", threadID, checkpointID))
}

func (s *Store) writeAtomic(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := goccyjson.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
