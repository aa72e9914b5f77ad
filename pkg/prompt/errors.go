package prompt

import "fmt"

// PathTraversalError is raised when a "file:" reference resolves outside
// the configured prompts root (spec.md section 4.9).
type PathTraversalError struct {
	Ref string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("prompt reference %q escapes the prompts root", e.Ref)
}
