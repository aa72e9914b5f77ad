package csvspec

import "fmt"

// ParseError represents a structural CSV parsing failure (spec.md section
// 4.1 and the InvalidCSV error kind of section 7). Every ParseError carries
// the offending line number, or 0 when the failure is file-level.
type ParseError struct {
	Path       string
	LineNumber int
	Reason     string
}

func (e *ParseError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("invalid csv %s:%d: %s", e.Path, e.LineNumber, e.Reason)
	}
	return fmt.Sprintf("invalid csv %s: %s", e.Path, e.Reason)
}

func newParseError(path string, line int, format string, args ...any) *ParseError {
	return &ParseError{Path: path, LineNumber: line, Reason: fmt.Sprintf(format, args...)}
}
