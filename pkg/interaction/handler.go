package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
	"github.com/kadirpekel/agentmap/pkg/assembler"
	"github.com/kadirpekel/agentmap/pkg/bundle"
	"github.com/kadirpekel/agentmap/pkg/checkpoint"
	"github.com/kadirpekel/agentmap/pkg/container"
	"github.com/kadirpekel/agentmap/pkg/runner"
)

// Handler is the InteractionHandler + ResumeOrchestrator of spec.md
// section 4.11. It wraps a Runner so a caller's single Run/Resume call
// transparently persists and rehydrates suspended threads.
type Handler struct {
	checkpoints *checkpoint.Store
	bundles     *bundle.Store
	factory     *container.Factory
	assembler   *assembler.Assembler
	runner      *runner.Runner
	log         *slog.Logger

	threads   *docStore
	requests  *docStore
	responses *docStore
}

// New builds a Handler. rootDir holds the three document collections
// (interactions, interactions_threads, interactions_responses) as
// sibling subdirectories, separate from the checkpoint store's and
// bundle store's own roots. log may be nil.
func New(rootDir string, checkpoints *checkpoint.Store, bundles *bundle.Store, factory *container.Factory, asm *assembler.Assembler, r *runner.Runner, log *slog.Logger) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	threads, err := newDocStore(rootDir, "interactions_threads")
	if err != nil {
		return nil, err
	}
	requests, err := newDocStore(rootDir, "interactions")
	if err != nil {
		return nil, err
	}
	responses, err := newDocStore(rootDir, "interactions_responses")
	if err != nil {
		return nil, err
	}
	return &Handler{
		checkpoints: checkpoints,
		bundles:     bundles,
		factory:     factory,
		assembler:   asm,
		runner:      r,
		log:         log,
		threads:     threads,
		requests:    requests,
		responses:   responses,
	}, nil
}

// Run executes cg from its entry point, transparently handling a
// suspension by persisting the interaction request, thread metadata,
// and a checkpoint before returning (spec.md section 4.11 suspend steps
// 1-3). A non-suspended result is returned as-is; the caller still sees
// res.Suspended to distinguish the two.
func (h *Handler) Run(ctx context.Context, cg *assembler.CompiledGraph, graphName string, info BundleInfo, initialState agentstate.State) (*runner.ExecutionResult, error) {
	res, err := h.runner.Run(ctx, cg, initialState)
	if err != nil {
		return nil, err
	}
	if res.Suspended {
		if err := h.persistSuspension(res, graphName, info); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := h.markTerminal(res.ThreadID, graphName, info, res.Success); err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handler) persistSuspension(res *runner.ExecutionResult, graphName string, info BundleInfo) error {
	s := res.Suspension
	now := time.Now().UTC()

	if err := h.requests.put(s.Request.ID, InteractionRequestRecord{
		ThreadID:  res.ThreadID,
		NodeName:  s.NodeName,
		Request:   s.Request,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("interaction: persist request: %w", err)
	}

	info.GraphName = graphName
	meta := ThreadMetadata{
		ThreadID:             res.ThreadID,
		Status:               StatusSuspended,
		GraphName:            graphName,
		NodeName:             s.NodeName,
		PendingInteractionID: s.Request.ID,
		BundleInfo:           info,
		CheckpointData:       s.CheckpointData,
		PriorExecutions:      dropSuspendedPlaceholder(res.Executions, s.NodeName),
		UpdatedAt:            now,
	}
	if err := h.threads.put(res.ThreadID, meta); err != nil {
		return fmt.Errorf("interaction: persist thread metadata: %w", err)
	}

	cr := h.checkpoints.Put(res.ThreadID, s.State, map[string]any{"node_name": s.NodeName}, "")
	if !cr.Success {
		h.log.Warn("suspend checkpoint write failed", "thread_id", res.ThreadID, "error", cr.Error)
	}
	return nil
}

// dropSuspendedPlaceholder removes the terminal "suspended" placeholder
// NodeExecution that walk records for nodeName when it suspends, so it
// isn't double-counted alongside the real outcome Resume later records
// for the same node (spec.md section 8 scenario S4).
func dropSuspendedPlaceholder(execs []runner.NodeExecution, nodeName string) []runner.NodeExecution {
	out := make([]runner.NodeExecution, 0, len(execs))
	removed := false
	for _, e := range execs {
		if !removed && e.NodeName == nodeName && e.Error == "suspended" {
			removed = true
			continue
		}
		out = append(out, e)
	}
	return out
}

func (h *Handler) markTerminal(threadID, graphName string, info BundleInfo, success bool) error {
	status := StatusCompleted
	if !success {
		status = StatusFailed
	}
	var prev ThreadMetadata
	if _, err := h.threads.get(threadID, &prev); err != nil {
		return err
	}
	info.GraphName = graphName
	return h.threads.put(threadID, ThreadMetadata{
		ThreadID:       threadID,
		Status:         status,
		GraphName:      graphName,
		LastResponseID: prev.LastResponseID,
		BundleInfo:     info,
		UpdatedAt:      time.Now().UTC(),
	})
}

// Resume implements spec.md section 4.11's resume(thread_id,
// response_action, response_data?). Re-submitting the same response
// against a thread already past StatusSuspended is a no-op (the
// "idempotent" requirement).
func (h *Handler) Resume(ctx context.Context, threadID, action string, data map[string]any) (*ResumeOutcome, error) {
	var meta ThreadMetadata
	ok, err := h.threads.get(threadID, &meta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnknownThreadError{ThreadID: threadID}
	}

	if meta.Status != StatusSuspended {
		return &ResumeOutcome{ThreadID: threadID, Status: meta.Status, AlreadyResumed: true}, nil
	}

	b, err := h.rehydrateBundle(threadID, meta.BundleInfo)
	if err != nil {
		return nil, err
	}

	requestID := meta.PendingInteractionID
	now := time.Now().UTC()
	if requestID != "" {
		if err := h.responses.put(requestID, InteractionResponse{
			RequestID: requestID,
			ThreadID:  threadID,
			Action:    action,
			Data:      data,
			CreatedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("interaction: persist response: %w", err)
		}
		meta.LastResponseID = requestID
	}
	meta.Status = StatusResuming
	meta.UpdatedAt = now
	if err := h.threads.put(threadID, meta); err != nil {
		return nil, fmt.Errorf("interaction: mark resuming: %w", err)
	}

	ck, ok, err := h.checkpoints.GetTuple(threadID)
	if err != nil {
		return nil, fmt.Errorf("interaction: load checkpoint: %w", err)
	}
	state := agentstate.State{}
	if ok {
		state = ck.StateSnapshot.Clone()
	}
	state[agentstate.HumanResponse] = map[string]any{
		"action":     action,
		"data":       data,
		"request_id": requestID,
	}

	instantiated, err := h.factory.Build(b)
	if err != nil {
		return nil, fmt.Errorf("interaction: rebuild agents: %w", err)
	}
	cg, err := h.assembler.Compile(b, instantiated.Agents)
	if err != nil {
		return nil, fmt.Errorf("interaction: recompile graph: %w", err)
	}

	res, err := h.runner.Resume(ctx, cg, threadID, meta.NodeName, state, meta.PriorExecutions)
	if err != nil {
		return nil, err
	}

	if res.Suspended {
		if err := h.persistSuspension(res, meta.GraphName, meta.BundleInfo); err != nil {
			return nil, err
		}
		return &ResumeOutcome{ThreadID: threadID, Status: StatusSuspended, FinalState: res.FinalState, Executions: res.Executions}, nil
	}

	if err := h.markTerminal(threadID, meta.GraphName, meta.BundleInfo, res.Success); err != nil {
		return nil, err
	}
	status := StatusCompleted
	if !res.Success {
		status = StatusFailed
	}
	return &ResumeOutcome{ThreadID: threadID, Status: status, FinalState: res.FinalState, Executions: res.Executions, Success: res.Success}, nil
}

// rehydrateBundle implements spec.md section 4.11 resume step 2's
// three-strategy fallback chain.
func (h *Handler) rehydrateBundle(threadID string, info BundleInfo) (*bundle.GraphBundle, error) {
	var errs []error

	if info.BundlePath != "" {
		if b, err := h.bundles.Load(info.BundlePath); err == nil {
			return b, nil
		} else {
			errs = append(errs, err)
		}
	}

	if info.CSVHash != "" {
		if b, ok, err := h.bundles.Lookup(info.CSVHash, info.GraphName); err != nil {
			errs = append(errs, err)
		} else if ok {
			return b, nil
		}
	}

	if info.CSVPath != "" {
		if b, err := h.bundles.GetOrCreate(info.CSVPath, info.GraphName); err == nil {
			return b, nil
		} else {
			errs = append(errs, err)
		}
	}

	combined := fmt.Errorf("no rehydration strategy succeeded (bundle_path=%q csv_hash=%q csv_path=%q): %v",
		info.BundlePath, info.CSVHash, info.CSVPath, errs)
	return nil, &BundleRehydrationFailedError{ThreadID: threadID, Err: combined}
}
