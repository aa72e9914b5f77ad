package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// ResumeCmd resumes a previously suspended thread with a human response
// (spec.md section 4.11, section 6).
type ResumeCmd struct {
	ThreadID string `arg:"" name:"thread_id" help:"Thread ID returned by a suspended run."`
	Action   string `name:"action" required:"" help:"Response action (e.g. approve, reject)."`
	Data     string `name:"data" help:"Response payload as a JSON object." default:"{}"`
}

func (c *ResumeCmd) Run(cli *CLI) error {
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

	var data map[string]any
	if err := json.Unmarshal([]byte(c.Data), &data); err != nil {
		return exitCode(1, fmt.Errorf("--data: invalid JSON: %w", err))
	}

	outcome, err := eng.interactions.Resume(ctx, c.ThreadID, c.Action, data)
	if err != nil {
		return exitCode(1, err)
	}

	out, _ := json.MarshalIndent(outcome, "", "  ")
	fmt.Println(string(out))

	if outcome.AlreadyResumed {
		return nil
	}
	if !outcome.Success {
		return exitCode(1, fmt.Errorf("resume did not complete the graph"))
	}
	return nil
}
