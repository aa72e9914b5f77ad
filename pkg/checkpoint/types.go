// Package checkpoint implements the CheckpointStore of spec.md section
// 4.10: a namespaced binary document store ("checkpoints" and sibling
// "writes" namespaces) holding versioned snapshots of a thread's
// execution state, keyed by thread_id.
package checkpoint

import (
	"time"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// FormatV1 is this package's versioned serialization format tag (spec.md
// section 9: "use a versioned binary serialization with an internal
// format-tag"; see DESIGN.md for why goccy/go-json substitutes for the
// msgpack/cbor the design note suggests).
const FormatV1 = "checkpoint-v1"

// Checkpoint is a durable snapshot of execution state tagged to a
// thread_id (spec.md glossary).
type Checkpoint struct {
	ThreadID      string
	CheckpointID  string
	ParentID      string
	StateSnapshot agentstate.State
	Metadata      map[string]any
	// VersionsSeen is carried through but not interpreted by this engine;
	// see DESIGN.md's Open Question decision on its LangGraph-specific
	// semantics.
	VersionsSeen map[string]int
	Format       string
	CreatedAt    time.Time
}

// Write is one entry in the sibling "writes" namespace, recording an
// intermediate write against a thread_id + task_id (spec.md section
// 4.10: "put_writes(config, writes, task_id)").
type Write struct {
	ThreadID  string
	TaskID    string
	Values    map[string]any
	Format    string
	CreatedAt time.Time
}

// PutResult is the non-throwing result of Put/PutWrites (spec.md section
// 4.10: "any storage write failure returns {success:false, error}").
type PutResult struct {
	Success      bool
	CheckpointID string
	Error        string
}
