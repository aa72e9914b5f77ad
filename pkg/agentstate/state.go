// Package agentstate defines the execution state map threaded through a
// graph run and its reserved "__"-prefixed control keys (spec.md
// sections 4.7-4.11).
package agentstate

// State is the mutable key-value bag passed between nodes. Keys are
// ordinary field names except for the reserved control keys below.
type State map[string]any

const (
	// ThreadID carries the run's thread_id (spec.md section 4.8 step 1).
	ThreadID = "__thread_id"
	// LastActionSuccess records the outcome of the most recently invoked
	// agent; routing functions read this to pick success/failure edges.
	LastActionSuccess = "__last_action_success"
	// Interrupted is set true on the final state of a suspended run
	// (spec.md section 4.8 step 3).
	Interrupted = "__interrupted"
	// NextNode is read and cleared by the OrchestrationCapable dynamic
	// router step (spec.md section 4.7).
	NextNode = "__next_node"
	// HumanResponse is injected into the checkpoint state on resume when
	// a pending interaction is being answered (spec.md section 4.11 step 3).
	HumanResponse = "__human_response"
	// PolicySuccess carries the success policy's verdict for the run
	// (spec.md section 4.8 step 4).
	PolicySuccess = "__policy_success"
)

// Clone makes a shallow copy of s, used whenever a node step must not
// mutate the caller's map in place (e.g. before fanning out to parallel
// branches).
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// LastActionSucceeded reports state's last_action_success flag. Per
// spec.md section 4.7's routing table, an unset flag ("!= false") counts
// as success.
func (s State) LastActionSucceeded() bool {
	v, ok := s[LastActionSuccess]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	return !ok || b
}

// Inputs projects the named fields out of s into a fresh map, used to
// build a node's input payload (spec.md section 4.8 step 3).
func (s State) Inputs(fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := s[f]; ok {
			out[f] = v
		}
	}
	return out
}

// MergeOutput overlays an agent's output onto s under outputKeys,
// following spec.md section 4.8's "scalar or multi-key overlay" rule: a
// single output key gets the whole value; multiple keys expect value to
// be a map[string]any and each key is looked up by name.
func (s State) MergeOutput(outputKeys []string, value any) {
	if len(outputKeys) == 0 {
		return
	}
	if len(outputKeys) == 1 {
		s[outputKeys[0]] = value
		return
	}
	m, ok := value.(map[string]any)
	if !ok {
		return
	}
	for _, k := range outputKeys {
		if v, present := m[k]; present {
			s[k] = v
		}
	}
}

// Overlay merges other onto s, later keys winning — the branch-merge
// rule of spec.md section 5: "branch N's keys overwrite branch N-1's on
// collision".
func Overlay(base State, others ...State) State {
	out := base.Clone()
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}
