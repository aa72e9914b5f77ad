package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// CompileCmd compiles a CSV graph into a cached bundle without running
// it (spec.md section 6).
type CompileCmd struct {
	CSV    string `name:"csv" required:"" help:"Path to the CSV graph spec." type:"path"`
	Graph  string `name:"graph" required:"" help:"Graph name within the CSV."`
	Output string `name:"output" help:"Directory to additionally copy the bundle file into." type:"path"`
}

func (c *CompileCmd) Run(cli *CLI) error {
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

	b, err := eng.bundles.GetOrCreate(c.CSV, c.Graph)
	if err != nil {
		return exitCode(1, err)
	}

	path, ok, err := eng.bundles.PathFor(b.CSVHash, b.GraphName)
	if err != nil {
		return exitCode(1, err)
	}
	if !ok {
		return exitCode(1, fmt.Errorf("compile: bundle for %s/%s was not indexed after save", c.CSV, c.Graph))
	}
	fmt.Println(path)

	if c.Output != "" {
		if err := os.MkdirAll(c.Output, 0o755); err != nil {
			return exitCode(1, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return exitCode(1, err)
		}
		dest := filepath.Join(c.Output, filepath.Base(path))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return exitCode(1, err)
		}
		fmt.Println(dest)
	}

	return nil
}
