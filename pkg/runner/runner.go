// Package runner implements the GraphRunner + ExecutionTracker of
// spec.md section 4.8: walking a CompiledGraph from its entry point,
// invoking each node's agent, merging output, evaluating the compiled
// routing function, and fanning out one goroutine per parallel branch.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/assembler"
	"github.com/kadirpekel/agentmap/pkg/container"
)

// ExecutionResult is the outcome of Run (spec.md section 4.8).
type ExecutionResult struct {
	Success    bool
	Error      string
	ThreadID   string
	FinalState agentstate.State
	Executions []NodeExecution
	Suspended  bool
	Suspension *Suspension
}

// Suspension carries the data the caller (pkg/interaction) needs to
// persist an interaction request and checkpoint when a node suspends
// (spec.md section 4.11).
type Suspension struct {
	NodeName       string
	Request        *container.InteractionRequest
	CheckpointData map[string]any
	State          agentstate.State
}

// Runner executes a CompiledGraph.
type Runner struct {
	policy  Policy
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New builds a Runner with the given success policy (default
// AllNodes when nil) and logger (default slog.Default() when nil).
func New(policy Policy, log *slog.Logger) *Runner {
	if policy == nil {
		policy = AllNodes
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{policy: policy, log: log}
}

// Run implements spec.md section 4.8's run(bundle, initial_state). It
// assumes cg was already assembled (step 2); this function performs
// step 1 (thread_id) and step 3-4 (execution + policy).
func (r *Runner) Run(ctx context.Context, cg *assembler.CompiledGraph, initialState agentstate.State) (*ExecutionResult, error) {
	threadID := uuid.NewString()
	state := initialState.Clone()
	state[agentstate.ThreadID] = threadID

	tracker := NewTracker(threadID)

	ctx, span := r.startRunSpan(ctx, threadID)
	res, err := r.walk(ctx, cg, cg.EntryPoint, state, tracker)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	res.ThreadID = threadID
	r.metrics.observeRun(res.Success)
	return res, nil
}

// Resume continues a previously suspended thread at nodeName with the
// rehydrated state (spec.md section 4.11's resume operation, step
// "invoke the compiled graph starting at the suspended node"). Unlike
// Run, the caller supplies threadID since it was already assigned at
// the original Run, and priorExecutions (the original Run's tracker
// output, with the suspended node's placeholder entry already removed by
// the caller) seeds the resumed tracker so the combined Executions list
// covers every node exactly once instead of recording the resumed node
// twice (spec.md section 8 scenario S4).
func (r *Runner) Resume(ctx context.Context, cg *assembler.CompiledGraph, threadID, nodeName string, state agentstate.State, priorExecutions []NodeExecution) (*ExecutionResult, error) {
	resumed := state.Clone()
	resumed[agentstate.ThreadID] = threadID
	delete(resumed, agentstate.Interrupted)

	tracker := NewTrackerFrom(threadID, priorExecutions)
	ctx, span := r.startRunSpan(ctx, threadID)
	res, err := r.walk(ctx, cg, nodeName, resumed, tracker)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	res.ThreadID = threadID
	r.metrics.observeRun(res.Success)
	return res, nil
}

// finishNode records exec on tracker and, if instrumentation is
// configured, observes it in the node duration/count metrics.
func (r *Runner) finishNode(tracker *Tracker, exec NodeExecution) {
	tracker.Finish(exec)
	r.metrics.observeNode(exec)
}

// walk executes nodes starting at name until a halt, a fan-out join, or
// a suspend (spec.md section 4.8 step 3, section 5's concurrency model).
func (r *Runner) walk(ctx context.Context, cg *assembler.CompiledGraph, name string, state agentstate.State, tracker *Tracker) (*ExecutionResult, error) {
	return r.walkTo(ctx, cg, name, state, tracker, nil)
}

// walkTo is walk with a stop set: execution halts without invoking the
// node (returning control to the enclosing fanOut for a merge) as soon
// as name appears in stopAt. A branch spawned by fanOut is called with
// stopAt containing that fan-out's precomputed join node, so the join
// node runs exactly once, after every branch has merged, rather than
// once per branch (spec.md section 5).
func (r *Runner) walkTo(ctx context.Context, cg *assembler.CompiledGraph, name string, state agentstate.State, tracker *Tracker, stopAt []string) (*ExecutionResult, error) {
	for name != "" {
		if containsName(stopAt, name) {
			return &ExecutionResult{Success: true, FinalState: state, Executions: tracker.Executions()}, nil
		}

		node, ok := cg.Nodes[name]
		if !ok {
			return nil, fmt.Errorf("runner: unknown node %q", name)
		}

		inputs := state.Inputs(node.InputFields)
		start := tracker.Start(name)
		nodeCtx, span := r.startNodeSpan(ctx, name)

		stepResult, err := node.Agent.Invoke(nodeCtx, state, inputs)
		if err != nil {
			endSpan(span, err)
			r.finishNode(tracker, NodeExecution{NodeName: name, StartedAt: start.StartedAt, EndedAt: time.Now(), Success: false, Error: err.Error()})
			state[agentstate.LastActionSuccess] = false
			r.log.Warn("agent execution failed", "node", name, "error", err)
			return r.routeTo(ctx, cg, node, state, tracker, stopAt)
		}

		if stepResult.Suspended {
			endSpan(span, nil)
			r.finishNode(tracker, NodeExecution{NodeName: name, StartedAt: start.StartedAt, EndedAt: time.Now(), Success: false, Error: "suspended"})
			state[agentstate.Interrupted] = true
			return &ExecutionResult{
				Success:    false,
				FinalState: state,
				Executions: tracker.Executions(),
				Suspended:  true,
				Suspension: &Suspension{
					NodeName:       name,
					Request:        stepResult.Request,
					CheckpointData: stepResult.CheckpointData,
					State:          state,
				},
			}, nil
		}

		state.MergeOutput(node.OutputFields, stepResult.Output)
		endSpan(span, nil)
		r.finishNode(tracker, NodeExecution{NodeName: name, StartedAt: start.StartedAt, EndedAt: time.Now(), Success: true})

		if node.IsOrchestrator {
			if next, ok := state[agentstate.NextNode].(string); ok && next != "" {
				delete(state, agentstate.NextNode)
				name = next
				continue
			}
		}

		return r.routeTo(ctx, cg, node, state, tracker, stopAt)
	}
	return r.finish(state, tracker), nil
}

// routeTo evaluates node's compiled routing function and either
// continues the walk, fans out in parallel, or halts, propagating the
// enclosing stop set (see walkTo) through either continuation.
func (r *Runner) routeTo(ctx context.Context, cg *assembler.CompiledGraph, node *assembler.CompiledNode, state agentstate.State, tracker *Tracker, stopAt []string) (*ExecutionResult, error) {
	rt, err := node.Route(state)
	if err != nil {
		return nil, fmt.Errorf("runner: node %q: routing: %w", node.Name, err)
	}

	if rt.Halted() {
		return r.finish(state, tracker), nil
	}

	if !rt.IsParallel() {
		return r.walkTo(ctx, cg, rt.Targets[0], state, tracker, stopAt)
	}

	return r.fanOut(ctx, cg, rt, state, tracker, stopAt)
}

// fanOut implements spec.md section 5: one goroutine per active branch,
// each stopping at the fan-out's precomputed join node (or running to
// completion when the branches never reconverge), merged by keyed
// overlay in list order, then continuing the walk once from the join
// node. Grounded on pkg/agent/workflowagent/parallel.go's
// errgroup.WithContext fan-out pattern: every branch runs under the
// group's context, so a caller's cancellation reaches every branch, and
// the first branch to return an error cancels that context for its
// siblings.
func (r *Runner) fanOut(ctx context.Context, cg *assembler.CompiledGraph, rt assembler.Route, state agentstate.State, tracker *Tracker, stopAt []string) (*ExecutionResult, error) {
	targets := rt.Targets
	branchStates := make([]agentstate.State, len(targets))
	suspensions := make([]*ExecutionResult, len(targets))

	innerStop := stopAt
	if rt.JoinNode != "" {
		innerStop = append(append([]string{}, stopAt...), rt.JoinNode)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		branchState := state.Clone()
		g.Go(func() error {
			res, err := r.walkTo(gctx, cg, target, branchState, tracker, innerStop)
			if err != nil {
				return err
			}
			branchStates[i] = res.FinalState
			if res.Suspended {
				suspensions[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range suspensions {
		if s != nil {
			return s, nil
		}
	}

	merged := agentstate.Overlay(state, branchStates...)

	if rt.JoinNode != "" {
		return r.walkTo(ctx, cg, rt.JoinNode, merged, tracker, stopAt)
	}
	return r.finish(merged, tracker), nil
}

// containsName reports whether name appears in names.
func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// finish applies the configured success policy (spec.md section 4.8
// step 4) and builds the terminal ExecutionResult.
func (r *Runner) finish(state agentstate.State, tracker *Tracker) *ExecutionResult {
	executions := tracker.Executions()
	success := r.policy(executions)
	state[agentstate.PolicySuccess] = success
	return &ExecutionResult{
		Success:    success,
		FinalState: state,
		Executions: executions,
	}
}
