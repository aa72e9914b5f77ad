// Package container implements the AgentFactory and ServiceContainer of
// spec.md section 4.6: Phase A instantiates the declared service graph in
// load order, Phase B instantiates one Agent per node and wires in its
// declared capability protocols. Neither phase loads a class by looking
// it up dynamically at call time — class_path strings are resolved
// against a registry of constructors built at startup (spec.md section
// 9, "dotted-path class loading" design note).
package container

import (
	"context"
	"log/slog"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// InteractionRequest is the minimal HumanInteractionRequest of spec.md
// section 4.11: enough for the runner to persist and for a resume call
// to answer.
type InteractionRequest struct {
	ID              string
	NodeName        string
	InteractionType string
	Prompt          string
	TimeoutSeconds  int
}

// StepResult is the typed control-flow result of spec.md section 9's
// "NodeStepResult = Ok(state) | Suspend(request, checkpoint)" design
// note, replacing the source's exception-based suspend signal.
type StepResult struct {
	Output         any
	Suspended      bool
	Request        *InteractionRequest
	CheckpointData map[string]any
}

// Ok builds a non-suspending StepResult.
func Ok(output any) StepResult { return StepResult{Output: output} }

// Suspend builds a suspending StepResult.
func Suspend(req *InteractionRequest, checkpointData map[string]any) StepResult {
	return StepResult{Suspended: true, Request: req, CheckpointData: checkpointData}
}

// Agent is the executable unit behind a node: constructed by an
// AgentFactory from an AgentClassMappings entry, and invoked by the
// GraphRunner with the node's projected inputs.
type Agent interface {
	// Invoke runs the agent against state and its projected inputs,
	// returning either an output value (to be merged under the node's
	// output keys) or a suspend signal.
	Invoke(ctx context.Context, state agentstate.State, inputs map[string]any) (StepResult, error)
}

// AgentConstructor builds an Agent from its node configuration. Bound to
// a class_path in a ClassRegistry.
type AgentConstructor func(cfg AgentConfig) (Agent, error)

// AgentConfig is the construction payload of spec.md section 4.6 Phase
// B: "Construct with {name, prompt, context} and a logger."
type AgentConfig struct {
	Name    string
	Prompt  string
	Context map[string]any
	Logger  *slog.Logger
}
