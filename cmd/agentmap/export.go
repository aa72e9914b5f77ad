package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	goccyjson "github.com/goccy/go-json"

	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/graph"
)

// ExportCmd exports a compiled bundle in one of three formats
// (spec.md section 6, SPEC_FULL.md D.3). `debug` dumps the full
// GraphBundle as indented JSON; `source` emits a Go skeleton of the
// compiled agent wiring; `python` emits the bundle's node/edge shape as
// information only (core does not generate runnable Python, per the
// Non-goal on concrete agent implementations).
type ExportCmd struct {
	Graph  string `name:"graph" required:"" help:"Graph name to export."`
	Format string `name:"format" required:"" enum:"python,source,debug" help:"Output format: python, source, or debug."`
	Output string `name:"output" required:"" help:"File to write the export to." type:"path"`
	CSV    string `name:"csv" help:"CSV path, required only if the graph hasn't been compiled yet." type:"path"`
}

func (c *ExportCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return exitCode(1, err)
	}
	log, cleanup, err := buildLogger(cfg)
	if err != nil {
		return exitCode(1, err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	eng, err := newEngine(cfg, log)
	if err != nil {
		return exitCode(1, err)
	}
	defer eng.Close()

	var b *bundle.GraphBundle
	if c.CSV != "" {
		b, err = eng.bundles.GetOrCreate(c.CSV, c.Graph)
	} else {
		var ok bool
		b, ok, err = eng.bundles.FindByGraphName(c.Graph)
		if err == nil && !ok {
			err = fmt.Errorf("export: graph %q has never been compiled; pass --csv", c.Graph)
		}
	}
	if err != nil {
		return exitCode(1, err)
	}

	var content []byte
	switch c.Format {
	case "debug":
		content, err = goccyjson.MarshalIndent(b, "", "  ")
	case "source":
		content = []byte(renderGoSkeleton(b))
	case "python":
		content = []byte(renderPythonInfo(b))
	}
	if err != nil {
		return exitCode(1, err)
	}

	if err := os.WriteFile(c.Output, content, 0o644); err != nil {
		return exitCode(1, err)
	}
	fmt.Println(c.Output)
	return nil
}

// renderGoSkeleton emits a Go source skeleton describing the compiled
// graph's node wiring: a `package main` clause followed by the node/edge
// table as comments, one line per node and one per edge. No agent
// implementation stubs are emitted, and it does not produce a runnable
// program — core agents remain external
// collaborators (spec.md section 1).
func renderGoSkeleton(b *bundle.GraphBundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Code generated by `agentmap export --format source`. DO NOT EDIT.\n")
	fmt.Fprintf(&sb, "// Graph: %s (entry point: %s)\n", b.GraphName, b.EntryPoint)
	sb.WriteString("package main\n\n")

	names := sortedNodeNames(b)
	for _, name := range names {
		n := b.Nodes[name]
		fmt.Fprintf(&sb, "// Node %q (agent_type=%s)\n", n.Name, n.AgentType)
		for label, target := range n.Edges {
			fmt.Fprintf(&sb, "//   %s -> %s\n", label, target.String())
		}
	}
	return sb.String()
}

// renderPythonInfo emits the bundle's node/edge shape as a commented
// information block in Python syntax, not a runnable program.
func renderPythonInfo(b *bundle.GraphBundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Bundle export for graph %q (informational only; not runnable).\n", b.GraphName)
	fmt.Fprintf(&sb, "# entry_point = %q\n", b.EntryPoint)
	sb.WriteString("nodes = {\n")
	for _, name := range sortedNodeNames(b) {
		n := b.Nodes[name]
		fmt.Fprintf(&sb, "    %q: {\"agent_type\": %q, \"edges\": %v},\n", name, n.AgentType, edgeStrings(n))
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sortedNodeNames(b *bundle.GraphBundle) []string {
	names := make([]string, 0, len(b.Nodes))
	for name := range b.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func edgeStrings(n *graph.Node) map[string]string {
	out := make(map[string]string, len(n.Edges))
	for label, target := range n.Edges {
		out[string(label)] = target.String()
	}
	return out
}
