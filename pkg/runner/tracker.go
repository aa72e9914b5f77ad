package runner

import (
	"sync"
	"time"
)

// NodeExecution is one recorded node invocation (spec.md section 4.8
// step 3: "Record node start... record node end (success + duration)").
type NodeExecution struct {
	NodeName  string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string
}

// Duration returns the recorded execution's wall-clock length.
func (e NodeExecution) Duration() time.Duration { return e.EndedAt.Sub(e.StartedAt) }

// Tracker is the ExecutionTracker of spec.md section 4.8: an
// append-only, single-writer log of NodeExecutions for one run. All
// mutation goes through a mutex (section 5: "Tracker writes: serialized
// through a single-writer discipline").
type Tracker struct {
	mu         sync.Mutex
	ThreadID   string
	executions []NodeExecution
}

// NewTracker creates a Tracker for threadID.
func NewTracker(threadID string) *Tracker {
	return &Tracker{ThreadID: threadID}
}

// NewTrackerFrom creates a Tracker for threadID pre-seeded with prior,
// the NodeExecutions recorded by an earlier Run before it suspended
// (spec.md section 8 scenario S4: "total NodeExecutions across both runs
// cover every node exactly once"). prior is copied, not aliased.
func NewTrackerFrom(threadID string, prior []NodeExecution) *Tracker {
	t := &Tracker{ThreadID: threadID}
	if len(prior) > 0 {
		t.executions = append(t.executions, prior...)
	}
	return t
}

// Start returns a handle stamped with the node's start time. Nothing is
// appended to the tracker at start; the execution is recorded only when
// the handle is passed to Finish.
func (t *Tracker) Start(nodeName string) *NodeExecution {
	return &NodeExecution{NodeName: nodeName, StartedAt: time.Now()}
}

// Finish appends a completed NodeExecution.
func (t *Tracker) Finish(exec NodeExecution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.executions = append(t.executions, exec)
}

// Executions returns a snapshot of the recorded executions in append
// order.
func (t *Tracker) Executions() []NodeExecution {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NodeExecution, len(t.executions))
	copy(out, t.executions)
	return out
}
