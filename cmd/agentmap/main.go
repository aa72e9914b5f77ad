// Command agentmap is the CLI for the AgentMap graph engine.
//
// Usage:
//
//	agentmap run --csv graph.csv --graph G
//	agentmap compile --csv graph.csv --graph G --output bundles/
//	agentmap resume <thread_id> --action approve
//	agentmap scaffold --csv graph.csv --graph G
//	agentmap export --graph G --format debug --output bundle.json
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/agentmap/pkg/config"
)

// CLI defines the command-line interface, mirroring the teacher's
// cmd/hector/main.go CLI struct + kong.Parse wiring.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run a graph end to end from a CSV source."`
	Compile  CompileCmd  `cmd:"" help:"Compile a CSV graph into a cached bundle without running it."`
	Resume   ResumeCmd   `cmd:"" help:"Resume a suspended thread with a human response."`
	Scaffold ScaffoldCmd `cmd:"" help:"Emit stub declarations for unknown agent types referenced by a CSV."`
	Export   ExportCmd   `cmd:"" help:"Export a compiled bundle in python, source, or debug format."`

	Config   string `short:"c" help:"Path to engine config file (YAML)." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error); overrides config file. Defaults to config's logging.level, or info."`
	LogFile  string `help:"Log file path (empty = stderr); overrides config file."`
}

func (c *CLI) loadConfig() (*config.EngineConfig, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.LogFile != "" {
		cfg.Logging.File = c.LogFile
	}
	return cfg, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentmap"),
		kong.Description("AgentMap - CSV-driven workflow orchestration engine"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		var ec *cliError
		if asExitErr(err, &ec) {
			if ec.err != nil {
				fmt.Fprintln(os.Stderr, ec.err)
			}
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cliError carries a CLI exit code alongside its wrapped error
// (spec.md section 6: "exit codes standard: 0 success, 1 error, 2
// interrupted-resumable").
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *cliError) Unwrap() error { return e.err }

// exitCode wraps err (which may be nil, for a non-zero code with no
// message) into a *cliError carrying code.
func exitCode(code int, err error) error {
	if code == 0 && err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func asExitErr(err error, target **cliError) bool {
	if ce, ok := err.(*cliError); ok {
		*target = ce
		return true
	}
	return false
}
