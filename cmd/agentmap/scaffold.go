package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/agentmap/pkg/declaration"
)

// ScaffoldCmd emits stub declarations for agent types a CSV references
// that the DeclarationRegistry does not know about, grounded on
// original_source's CLI scaffold behavior (SPEC_FULL.md D.2).
type ScaffoldCmd struct {
	CSV    string `name:"csv" required:"" help:"Path to the CSV graph spec." type:"path"`
	Graph  string `name:"graph" help:"Restrict scaffolding to one graph name (defaults to every graph in the CSV)."`
	Output string `name:"output" help:"Write the stub YAML here instead of stdout." type:"path"`
}

func (c *ScaffoldCmd) Run(cli *CLI) error {
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

	spec, err := eng.parser.Parse(c.CSV)
	if err != nil {
		return exitCode(1, err)
	}

	seen := map[string]bool{}
	var stubs []declaration.AgentDeclaration
	for _, ns := range spec.Specs {
		if c.Graph != "" && ns.GraphName != c.Graph {
			continue
		}
		agentType := ns.AgentType
		if agentType == "" {
			agentType = "default"
		}
		if seen[agentType] {
			continue
		}
		seen[agentType] = true

		if _, ok := eng.registry.GetAgent(agentType); ok {
			continue
		}
		stubs = append(stubs, declaration.AgentDeclaration{
			AgentType:        agentType,
			ClassPath:        fmt.Sprintf("TODO.%s", agentType),
			RequiredServices: nil,
			OptionalServices: nil,
			Source:           "scaffold",
		})
	}

	if len(stubs) == 0 {
		fmt.Fprintln(os.Stderr, "no unknown agent types found")
		return nil
	}

	doc := struct {
		Agents []declaration.AgentDeclaration `yaml:"agents"`
	}{Agents: stubs}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return exitCode(1, err)
	}

	if c.Output == "" {
		fmt.Print(string(out))
		return nil
	}
	if err := os.WriteFile(c.Output, out, 0o644); err != nil {
		return exitCode(1, err)
	}
	fmt.Println(c.Output)
	return nil
}
