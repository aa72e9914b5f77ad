// Package csvspec implements the CSVParser and NodeSpecConverter pipeline
// stages of spec.md sections 4.1 and 4.2: it reads a CSV file, normalizes
// column names, validates row structure, and yields a flat GraphSpec.
package csvspec

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// The canonical column names form the recognized column set (spec.md
// section 6).
const (
	colGraphName      = "GraphName"
	colNode           = "Node"
	colAgentType      = "AgentType"
	colPrompt         = "Prompt"
	colDescription    = "Description"
	colContext        = "Context"
	colInputFields    = "Input_Fields"
	colOutputField    = "Output_Field"
	colEdge           = "Edge"
	colSuccessNext    = "Success_Next"
	colFailureNext    = "Failure_Next"
	colToolSource     = "Tool_Source"
	colAvailableTools = "Available_Tools"
)

// aliasTable maps lower-cased alternate spellings to canonical column
// names (spec.md section 4.1: "plus an alias table").
var aliasTable = map[string]string{
	"graphname":      colGraphName,
	"graph":          colGraphName,
	"graph_name":     colGraphName,
	"node":           colNode,
	"name":           colNode,
	"agenttype":      colAgentType,
	"agent_type":     colAgentType,
	"type":           colAgentType,
	"prompt":         colPrompt,
	"description":    colDescription,
	"desc":           colDescription,
	"context":        colContext,
	"input_fields":   colInputFields,
	"inputfields":    colInputFields,
	"inputs":         colInputFields,
	"output_field":   colOutputField,
	"outputfield":    colOutputField,
	"output":         colOutputField,
	"edge":           colEdge,
	"next":           colEdge,
	"success_next":   colSuccessNext,
	"successnext":    colSuccessNext,
	"on_success":     colSuccessNext,
	"failure_next":   colFailureNext,
	"failurenext":    colFailureNext,
	"on_failure":     colFailureNext,
	"tool_source":    colToolSource,
	"toolsource":     colToolSource,
	"available_tools": colAvailableTools,
	"availabletools":  colAvailableTools,
	"tools":           colAvailableTools,
}

var requiredColumns = []string{colGraphName, colNode}

var funcRefPattern = regexp.MustCompile(`^func:[A-Za-z_][A-Za-z0-9_]*\([^()]*\)$`)

var identifierTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Parser reads CSV files into GraphSpec values.
type Parser struct {
	log *slog.Logger
}

// NewParser builds a Parser. log may be nil, in which case a discard
// logger is used.
func NewParser(log *slog.Logger) *Parser {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Parser{log: log}
}

// Parse reads the CSV at path and returns its GraphSpec. Fails with a
// *ParseError (the InvalidCSV error kind) on structural failure: missing
// file, empty of data rows, a required column absent, or a required
// column entirely empty.
func (p *Parser) Parse(path string) (*GraphSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newParseError(path, 0, "file not found")
		}
		return nil, newParseError(path, 0, "cannot open file: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newParseError(path, 0, "cannot stat file: %v", err)
	}
	if info.IsDir() {
		return nil, newParseError(path, 0, "path is not a file")
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, newParseError(path, 0, "file contains no header row")
	}
	if err != nil {
		return nil, newParseError(path, 0, "cannot decode header: %v", err)
	}

	colIndex, unknown, err := canonicalizeHeader(header)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	for _, u := range unknown {
		p.log.Warn("unrecognized CSV column", "column", u, "path", path)
	}

	for _, req := range requiredColumns {
		if _, ok := colIndex[req]; !ok {
			return nil, newParseError(path, 0, "missing required column %q", req)
		}
	}

	spec := &GraphSpec{FilePath: path}
	lineNumber := 1 // header is line 1
	requiredNonEmpty := map[string]bool{colGraphName: false, colNode: false}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			return nil, newParseError(path, lineNumber, "cannot decode row: %v", err)
		}

		get := func(col string) string {
			idx, ok := colIndex[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		graphName := get(colGraphName)
		nodeName := get(colNode)
		if graphName != "" {
			requiredNonEmpty[colGraphName] = true
		}
		if nodeName != "" {
			requiredNonEmpty[colNode] = true
		}

		if graphName == "" {
			p.log.Warn("missing GraphName, skipping row", "line", lineNumber)
			continue
		}
		if nodeName == "" {
			p.log.Warn("missing Node, skipping row", "line", lineNumber)
			continue
		}

		toolSource := get(colToolSource)
		availableTools := splitPipe(get(colAvailableTools))
		if err := validateToolFields(toolSource, availableTools); err != nil {
			return nil, newParseError(path, lineNumber, "%v", err)
		}

		ns := &NodeSpec{
			GraphName:      graphName,
			Name:           nodeName,
			AgentType:      get(colAgentType),
			Prompt:         get(colPrompt),
			Description:    get(colDescription),
			Context:        get(colContext),
			InputFields:    splitPipe(get(colInputFields)),
			OutputField:    collapseScalar(splitPipe(get(colOutputField))),
			Edge:           get(colEdge),
			SuccessNext:    get(colSuccessNext),
			FailureNext:    get(colFailureNext),
			ToolSource:     toolSource,
			AvailableTools: availableTools,
			LineNumber:     lineNumber,
		}
		spec.Specs = append(spec.Specs, ns)
	}

	if len(spec.Specs) == 0 {
		return nil, newParseError(path, 0, "file contains no data rows")
	}
	for col, seen := range requiredNonEmpty {
		if !seen {
			return nil, newParseError(path, 0, "required column %q is entirely empty", col)
		}
	}

	spec.TotalRows = len(spec.Specs)
	return spec, nil
}

// Validate runs the non-fatal structural pre-validation report (SPEC_FULL.md
// section D.1), distinct from Parse's fatal failure mode.
func (p *Parser) Validate(path string) *ValidationResult {
	result := &ValidationResult{FilePath: path}

	f, err := os.Open(path)
	if err != nil {
		result.addError(fmt.Sprintf("cannot open file: %v", err))
		return result
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		result.addError(fmt.Sprintf("cannot decode header: %v", err))
		return result
	}

	colIndex, unknown, err := canonicalizeHeader(header)
	if err != nil {
		result.addError(err.Error())
		return result
	}
	for _, u := range unknown {
		result.addWarning(fmt.Sprintf("unexpected column found: %q", u), "check for typos or remove if not needed")
	}
	for _, req := range requiredColumns {
		if _, ok := colIndex[req]; !ok {
			result.addError(fmt.Sprintf("required column missing: %q", req))
		}
	}

	rows := 0
	requiredNonEmpty := map[string]bool{colGraphName: false, colNode: false}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.addError(fmt.Sprintf("cannot decode row %d: %v", rows+2, err))
			continue
		}
		rows++
		get := func(col string) string {
			idx, ok := colIndex[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		if get(colGraphName) != "" {
			requiredNonEmpty[colGraphName] = true
		}
		if get(colNode) != "" {
			requiredNonEmpty[colNode] = true
		}
	}

	if rows == 0 {
		result.addError("CSV file contains no data rows")
	}
	for col, seen := range requiredNonEmpty {
		if _, ok := colIndex[col]; ok && !seen {
			result.addError(fmt.Sprintf("required column %q is completely empty", col))
		}
	}
	result.addInfo(fmt.Sprintf("CSV contains %d rows and %d columns", rows, len(header)))
	return result
}

// canonicalizeHeader maps each header cell to a canonical column name via
// case-insensitive match against the canonical column names or aliasTable. Returns
// the column->index map and the list of unrecognized header cells.
func canonicalizeHeader(header []string) (map[string]int, []string, error) {
	colIndex := make(map[string]int, len(header))
	var unknown []string
	seen := make(map[string]bool)

	allCanonical := map[string]bool{
		colGraphName: true, colNode: true, colAgentType: true, colPrompt: true,
		colDescription: true, colContext: true, colInputFields: true, colOutputField: true,
		colEdge: true, colSuccessNext: true, colFailureNext: true, colToolSource: true,
		colAvailableTools: true,
	}

	for i, cell := range header {
		trimmed := strings.TrimSpace(cell)
		lower := strings.ToLower(trimmed)

		var canonical string
		for c := range allCanonical {
			if strings.ToLower(c) == lower {
				canonical = c
				break
			}
		}
		if canonical == "" {
			if mapped, ok := aliasTable[lower]; ok {
				canonical = mapped
			}
		}
		if canonical == "" {
			unknown = append(unknown, trimmed)
			continue
		}
		if seen[canonical] {
			return nil, nil, fmt.Errorf("duplicate column %q after alias resolution", canonical)
		}
		seen[canonical] = true
		colIndex[canonical] = i
	}
	return colIndex, unknown, nil
}

// splitPipe splits a pipe-separated cell, trims each token, and drops
// empties (spec.md section 6).
func splitPipe(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// collapseScalar implements spec.md section 4.1's Output_Field rule: an
// exactly-one-entry pipe list collapses back to a scalar string.
func collapseScalar(tokens []string) string {
	if len(tokens) == 1 {
		return tokens[0]
	}
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, "|")
}

// validateToolFields enforces spec.md section 6's field-level rule:
// Available_Tools tokens must be identifier characters only, and
// Tool_Source must be either "toolnode" (any case) or a path ending in a
// source-file suffix.
func validateToolFields(toolSource string, availableTools []string) error {
	for _, t := range availableTools {
		if !identifierTokenPattern.MatchString(t) {
			return fmt.Errorf("invalid Available_Tools token %q: must match [A-Za-z0-9_]+", t)
		}
	}
	if toolSource == "" {
		return nil
	}
	if strings.EqualFold(toolSource, "toolnode") {
		return nil
	}
	if strings.HasSuffix(toolSource, ".py") || strings.HasSuffix(toolSource, ".go") {
		return nil
	}
	return fmt.Errorf("invalid Tool_Source %q: must be \"toolnode\" or a source-file path", toolSource)
}

// isFuncReference reports whether an edge token is a function-reference
// sentinel of the form func:name(success,failure) (spec.md section 4.1/6).
func isFuncReference(token string) bool {
	return funcRefPattern.MatchString(token)
}
