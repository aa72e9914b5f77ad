// Package interaction implements the InteractionHandler and
// ResumeOrchestrator of spec.md section 4.11: the suspend/resume
// protocol that lets a node's agent request human input mid-run and a
// later call resume the same thread from where it stopped.
package interaction

import (
	"time"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/runner"
)

// ThreadStatus is one state in spec.md section 4.11's state machine:
// running -> (suspended -> resuming -> running)* -> (completed | failed).
type ThreadStatus string

const (
	StatusRunning   ThreadStatus = "running"
	StatusSuspended ThreadStatus = "suspended"
	StatusResuming  ThreadStatus = "resuming"
	StatusCompleted ThreadStatus = "completed"
	StatusFailed    ThreadStatus = "failed"
)

// BundleInfo is the rehydration fallback chain's input (spec.md section
// 4.11 resume step 2): bundle_path first, then (csv_hash, graph_name),
// then csv_path re-parse+rebuild.
type BundleInfo struct {
	BundlePath string `json:"bundle_path,omitempty"`
	CSVHash    string `json:"csv_hash,omitempty"`
	GraphName  string `json:"graph_name"`
	CSVPath    string `json:"csv_path,omitempty"`
}

// ThreadMetadata is the collection "interactions_threads" document of
// spec.md section 4.11.
type ThreadMetadata struct {
	ThreadID             string                 `json:"thread_id"`
	Status               ThreadStatus           `json:"status"`
	GraphName            string                 `json:"graph_name"`
	NodeName             string                 `json:"node_name"`
	PendingInteractionID string                 `json:"pending_interaction_id,omitempty"`
	LastResponseID       string                 `json:"last_response_id,omitempty"`
	BundleInfo           BundleInfo             `json:"bundle_info"`
	CheckpointData       map[string]any         `json:"checkpoint_data,omitempty"`
	// PriorExecutions carries the NodeExecutions recorded before this
	// suspension (with the suspended node's own placeholder entry
	// already dropped), so a later Resume's tracker can be seeded with
	// them and the combined history covers every node exactly once
	// (spec.md section 8 scenario S4).
	PriorExecutions []runner.NodeExecution `json:"prior_executions,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// InteractionRequestRecord is the collection "interactions" document,
// keyed by request.id (spec.md section 4.11 suspend step 3).
type InteractionRequestRecord struct {
	ThreadID  string                         `json:"thread_id"`
	NodeName  string                         `json:"node_name"`
	Request   *container.InteractionRequest  `json:"request"`
	CreatedAt time.Time                      `json:"created_at"`
}

// InteractionResponse is the collection "interactions_responses"
// document of spec.md section 4.11 resume step 3.
type InteractionResponse struct {
	RequestID string         `json:"request_id"`
	ThreadID  string         `json:"thread_id"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SuspendOutcome summarizes a persisted suspension (spec.md section
// 4.11 suspend steps 1-3). No Handler method returns it; Run reports a
// suspension through runner.ExecutionResult.
type SuspendOutcome struct {
	ThreadID            string
	PendingInteractionID string
	State               ThreadStatus
}

// ResumeOutcome is what Resume returns; AlreadyResumed is true when the
// same thread_id/response was re-submitted against a thread no longer
// suspended (spec.md section 4.11: "idempotent... a no-op").
type ResumeOutcome struct {
	ThreadID       string
	Status         ThreadStatus
	FinalState     agentstate.State
	Executions     []runner.NodeExecution
	Success        bool
	AlreadyResumed bool
}

// BundleRehydrationFailedError is returned when all three rehydration
// strategies fail (spec.md section 4.11 resume step 2).
type BundleRehydrationFailedError struct {
	ThreadID string
	Err      error
}

func (e *BundleRehydrationFailedError) Error() string {
	return "interaction: thread " + e.ThreadID + ": bundle rehydration failed: " + e.Err.Error()
}

func (e *BundleRehydrationFailedError) Unwrap() error { return e.Err }

// UnknownThreadError is returned when resume is called for a thread_id
// with no stored ThreadMetadata (spec.md section 4.11 resume step 1).
type UnknownThreadError struct {
	ThreadID string
}

func (e *UnknownThreadError) Error() string {
	return "interaction: unknown thread_id " + e.ThreadID
}
