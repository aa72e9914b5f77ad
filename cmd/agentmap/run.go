package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/csvspec"
	"github.com/kadirpekel/agentmap/pkg/interaction"
)

// RunCmd runs a graph end to end from a CSV source (spec.md section 6).
type RunCmd struct {
	CSV      string `name:"csv" required:"" help:"Path to the CSV graph spec." type:"path"`
	Graph    string `name:"graph" help:"Graph name within the CSV (defaults to the CSV's only graph)."`
	State    string `name:"state" help:"Initial state as a JSON object." default:"{}"`
	Validate bool   `name:"validate" help:"Run the structural pre-validation report before executing."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

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

	if c.Validate {
		result := eng.parser.Validate(c.CSV)
		printValidationResult(result)
		if !result.IsValid() {
			return exitCode(1, fmt.Errorf("validation failed for %s", c.CSV))
		}
	}

	graphName, err := resolveGraphName(eng.parser, c.CSV, c.Graph)
	if err != nil {
		return exitCode(1, err)
	}

	b, err := eng.bundles.GetOrCreate(c.CSV, graphName)
	if err != nil {
		return exitCode(1, err)
	}
	if len(b.MissingDeclarations) > 0 {
		return exitCode(1, fmt.Errorf("missing declarations: %v", sortedKeys(b.MissingDeclarations)))
	}

	var initial agentstate.State
	if err := json.Unmarshal([]byte(c.State), &initial); err != nil {
		return exitCode(1, fmt.Errorf("--state: invalid JSON: %w", err))
	}
	if initial == nil {
		initial = agentstate.State{}
	}

	cg, err := eng.compileBundle(b)
	if err != nil {
		return exitCode(1, err)
	}

	bundlePath, _, err := eng.bundles.PathFor(b.CSVHash, b.GraphName)
	if err != nil {
		return exitCode(1, err)
	}
	info := interaction.BundleInfo{BundlePath: bundlePath, CSVHash: b.CSVHash, GraphName: b.GraphName, CSVPath: c.CSV}

	res, err := eng.interactions.Run(ctx, cg, graphName, info, initial)
	if err != nil {
		return exitCode(1, err)
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))

	if res.Suspended {
		return exitCode(2, nil)
	}
	if !res.Success {
		return exitCode(1, fmt.Errorf("execution failed"))
	}
	return nil
}

// resolveGraphName returns graphName if non-empty, otherwise the sole
// graph name found by parsing csvPath.
func resolveGraphName(parser *csvspec.Parser, csvPath, graphName string) (string, error) {
	if graphName != "" {
		return graphName, nil
	}
	spec, err := parser.Parse(csvPath)
	if err != nil {
		return "", err
	}
	byGraph := spec.ByGraph()
	if len(byGraph) != 1 {
		return "", fmt.Errorf("--graph is required: CSV %s contains %d graphs", csvPath, len(byGraph))
	}
	for name := range byGraph {
		return name, nil
	}
	return "", fmt.Errorf("CSV %s contains no graphs", csvPath)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func printValidationResult(r *csvspec.ValidationResult) {
	for _, issue := range r.Issues {
		line := ""
		if issue.LineNumber > 0 {
			line = fmt.Sprintf(" (line %d)", issue.LineNumber)
		}
		fmt.Fprintf(os.Stderr, "[%s] %s%s\n", issue.Severity, issue.Message, line)
		if issue.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "  suggestion: %s\n", issue.Suggestion)
		}
	}
}
