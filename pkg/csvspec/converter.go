package csvspec

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/kadirpekel/agentmap/pkg/graph"
)

// Converter folds NodeSpecs into Graph values (spec.md section 4.2).
type Converter struct {
	log *slog.Logger
}

// NewConverter builds a Converter. log may be nil.
func NewConverter(log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	return &Converter{log: log}
}

// AmbiguousEntryPointError is raised when a graph has zero or more than
// one candidate entry point (spec.md section 4.2).
type AmbiguousEntryPointError struct {
	GraphName  string
	Candidates []string
}

func (e *AmbiguousEntryPointError) Error() string {
	return fmt.Sprintf("graph %q has ambiguous entry point: candidates=%v", e.GraphName, e.Candidates)
}

// DanglingEdgeError is raised when an edge target does not reference an
// existing node in the same graph (spec.md invariant, section 8 property 1).
type DanglingEdgeError struct {
	GraphName string
	NodeName  string
	Target    string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("graph %q: node %q has edge to undeclared node %q", e.GraphName, e.NodeName, e.Target)
}

// Convert groups spec.Specs by GraphName and builds one *graph.Graph per
// group, each with context resolved and entry point computed.
func (c *Converter) Convert(spec *GraphSpec) (map[string]*graph.Graph, error) {
	graphs := make(map[string]*graph.Graph)

	for graphName, specs := range spec.ByGraph() {
		g := &graph.Graph{Name: graphName, Nodes: make(map[string]*graph.Node, len(specs))}
		for _, ns := range specs {
			node, err := c.convertNode(ns)
			if err != nil {
				return nil, err
			}
			g.Nodes[node.Name] = node
		}

		if err := c.validateDanglingEdges(g); err != nil {
			return nil, err
		}

		entry, err := c.resolveEntryPoint(g)
		if err != nil {
			return nil, err
		}
		g.EntryPoint = entry
		graphs[graphName] = g
	}

	return graphs, nil
}

func (c *Converter) convertNode(ns *NodeSpec) (*graph.Node, error) {
	agentType := ns.AgentType
	if agentType == "" {
		agentType = "default"
	}

	node := &graph.Node{
		Name:          ns.Name,
		AgentType:     agentType,
		Inputs:        ns.InputFields,
		Prompt:        ns.Prompt,
		Description:   ns.Description,
		Context:       parseContext(ns.Context),
		Edges:         make(map[graph.EdgeLabel]graph.Target),
		AvailableTool: ns.AvailableTools,
		ToolSource:    ns.ToolSource,
		LineNumber:    ns.LineNumber,
	}
	if ns.OutputField != "" {
		node.Output = splitPipe(ns.OutputField)
	}

	c.populateEdges(node, ns)
	return node, nil
}

// populateEdges implements spec.md section 4.2's precedence rule: when
// both Edge and (Success_Next|Failure_Next) are present, success/failure
// wins; Edge is stored under "default" only when no conditional edge is
// present.
func (c *Converter) populateEdges(node *graph.Node, ns *NodeSpec) {
	hasConditional := ns.SuccessNext != "" || ns.FailureNext != ""

	if ns.SuccessNext != "" {
		node.Edges[graph.EdgeSuccess] = parseEdgeTarget(ns.SuccessNext)
	}
	if ns.FailureNext != "" {
		node.Edges[graph.EdgeFailure] = parseEdgeTarget(ns.FailureNext)
	}
	if ns.Edge != "" && !hasConditional {
		if isFuncReference(ns.Edge) {
			node.FuncEdge = ns.Edge
		}
		node.Edges[graph.EdgeDefault] = parseEdgeTarget(ns.Edge)
	}
}

// parseEdgeTarget implements spec.md section 4.1's parseEdgeTargets:
// empty -> zero value, contains '|' -> parallel list, else -> scalar.
// A func:name(...) token is preserved verbatim as a scalar target; its
// resolution is deferred to the assembler (spec.md section 4.11).
func parseEdgeTarget(cell string) graph.Target {
	if cell == "" {
		return graph.Target{}
	}
	if strings.Contains(cell, "|") {
		parts := strings.Split(cell, "|")
		names := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				names = append(names, t)
			}
		}
		return graph.ParallelTarget(names)
	}
	return graph.SingleTarget(strings.TrimSpace(cell))
}

var jsonObjectPattern = regexp.MustCompile(`^\s*\{.*\}\s*$`)

// parseContext implements spec.md section 4.2's context precedence:
// (1) strict JSON object, (2) inline literal-dict with single-quoted
// keys, (3) opaque text stored under {"context": raw}.
func parseContext(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}

	var asJSON map[string]any
	if err := json.Unmarshal([]byte(raw), &asJSON); err == nil {
		return asJSON
	}

	if jsonObjectPattern.MatchString(raw) {
		if literal, ok := parseLiteralDict(raw); ok {
			return literal
		}
	}

	return map[string]any{"context": raw}
}

// parseLiteralDict parses a Python-style single-quoted dict literal, e.g.
// {'routing_enabled': True, 'task_type': 'code'}. This is a best-effort,
// non-nested tokenizer sufficient for the flat key/value literals the CSV
// format allows; it rejects and falls through to opaque-text handling on
// anything it cannot confidently parse.
func parseLiteralDict(raw string) (map[string]any, bool) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "{")
	body = strings.TrimSuffix(body, "}")
	body = strings.TrimSpace(body)
	if body == "" {
		return map[string]any{}, true
	}

	pairs, ok := splitTopLevelCommas(body)
	if !ok {
		return nil, false
	}

	result := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := splitKeyValue(pair)
		if !ok {
			return nil, false
		}
		result[key] = literalValue(value)
	}
	return result, true
}

// splitTopLevelCommas splits on commas that are not inside a quoted string.
func splitTopLevelCommas(s string) ([]string, bool) {
	var parts []string
	var cur strings.Builder
	inQuote := false
	var quoteChar byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case inQuote:
			cur.WriteByte(ch)
			if ch == quoteChar && (i == 0 || s[i-1] != '\\') {
				inQuote = false
			}
		case ch == '\'' || ch == '"':
			inQuote = true
			quoteChar = ch
			cur.WriteByte(ch)
		case ch == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	if inQuote {
		return nil, false
	}
	parts = append(parts, cur.String())
	return parts, true
}

func splitKeyValue(pair string) (string, string, bool) {
	idx := strings.Index(pair, ":")
	if idx < 0 {
		return "", "", false
	}
	keyRaw := strings.TrimSpace(pair[:idx])
	valueRaw := strings.TrimSpace(pair[idx+1:])
	key, ok := unquoteSingle(keyRaw)
	if !ok {
		return "", "", false
	}
	return key, valueRaw, true
}

func unquoteSingle(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "\\'", "'"), true
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return out, true
		}
	}
	return "", false
}

func literalValue(raw string) any {
	if v, ok := unquoteSingle(raw); ok {
		return v
	}
	switch raw {
	case "True":
		return true
	case "False":
		return false
	case "None":
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// funcRefArgsPattern extracts the success/failure node-name arguments out
// of a func:name(success,failure) token (spec.md section 4.7's routing
// table: "call resolved name(state, success_target, failure_target)").
var funcRefArgsPattern = regexp.MustCompile(`^func:[A-Za-z_][A-Za-z0-9_]*\(([^()]*)\)$`)

func funcRefTargets(token string) []string {
	m := funcRefArgsPattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}
	var out []string
	for _, arg := range strings.Split(m[1], ",") {
		if t := strings.TrimSpace(arg); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *Converter) validateDanglingEdges(g *graph.Graph) error {
	for _, n := range g.Nodes {
		for _, t := range n.Edges {
			for _, target := range t.Names() {
				if isFuncReference(target) {
					for _, inner := range funcRefTargets(target) {
						if _, ok := g.Nodes[inner]; !ok {
							return &DanglingEdgeError{GraphName: g.Name, NodeName: n.Name, Target: inner}
						}
					}
					continue
				}
				if _, ok := g.Nodes[target]; !ok {
					return &DanglingEdgeError{GraphName: g.Name, NodeName: n.Name, Target: target}
				}
			}
		}
	}
	return nil
}

// resolveEntryPoint computes the set of nodes referenced by no edge; the
// single such node is the entry point (spec.md section 3, 4.2).
func (c *Converter) resolveEntryPoint(g *graph.Graph) (string, error) {
	targets := g.AllEdgeTargets()
	for _, n := range g.Nodes {
		for _, t := range n.Edges {
			for _, target := range t.Names() {
				if isFuncReference(target) {
					for _, inner := range funcRefTargets(target) {
						targets[inner] = true
					}
				}
			}
		}
	}

	var candidates []string
	for name := range g.Nodes {
		if !targets[name] {
			candidates = append(candidates, name)
		}
	}

	if len(candidates) != 1 {
		return "", &AmbiguousEntryPointError{GraphName: g.Name, Candidates: candidates}
	}
	return candidates[0], nil
}
