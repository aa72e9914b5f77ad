package runner

// Policy evaluates a completed Tracker to decide overall run success
// (spec.md section 4.12).
type Policy func(executions []NodeExecution) bool

// AllNodes succeeds iff every NodeExecution succeeded.
func AllNodes(executions []NodeExecution) bool {
	if len(executions) == 0 {
		return false
	}
	for _, e := range executions {
		if !e.Success {
			return false
		}
	}
	return true
}

// FinalNode succeeds iff the last recorded node succeeded.
func FinalNode(executions []NodeExecution) bool {
	if len(executions) == 0 {
		return false
	}
	return executions[len(executions)-1].Success
}

// CriticalNodes builds a policy that succeeds iff every execution of
// every named node succeeded, and every named node ran at least once
// ("absence of any named node in the run is also failure").
func CriticalNodes(names []string) Policy {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(executions []NodeExecution) bool {
		seen := make(map[string]bool, len(names))
		for _, e := range executions {
			if !set[e.NodeName] {
				continue
			}
			seen[e.NodeName] = true
			if !e.Success {
				return false
			}
		}
		return len(seen) == len(set)
	}
}

// Custom wraps a plug-in function as a Policy (spec.md section 4.12:
// "custom(fn): plug-in receiving the full tracker, returning bool").
func Custom(fn func(executions []NodeExecution) bool) Policy { return fn }
