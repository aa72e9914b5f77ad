package container

import (
	"context"
	"fmt"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// EchoAgent returns its inputs unchanged as output, used throughout the
// spec's own end-to-end scenarios (S1, S3) and as the "echo" builtin
// agent_type.
type EchoAgent struct {
	name    string
	prompt  string
	context map[string]any
}

func newEchoAgent(cfg AgentConfig) (Agent, error) {
	return &EchoAgent{name: cfg.Name, prompt: cfg.Prompt, context: cfg.Context}, nil
}

func (a *EchoAgent) Invoke(_ context.Context, _ agentstate.State, inputs map[string]any) (StepResult, error) {
	if len(inputs) == 1 {
		for _, v := range inputs {
			return Ok(v), nil
		}
	}
	return Ok(inputs), nil
}

// DefaultAgent is the passthrough agent used when a CSV row omits
// AgentType (spec.md section 4.4 step 1 defaults to "default").
type DefaultAgent struct{}

func newDefaultAgent(cfg AgentConfig) (Agent, error) { return &DefaultAgent{}, nil }

func (a *DefaultAgent) Invoke(_ context.Context, _ agentstate.State, inputs map[string]any) (StepResult, error) {
	return Ok(inputs), nil
}

// BranchingAgent evaluates one input field against configured
// success/failure value sets and sets agentstate.LastActionSuccess,
// grounded on original_source's BranchingAgent (examples/
// enhanced_branching_agent_demo.py): context keys "input_fields" (first
// entry is the success field unless "success_field" overrides it),
// "success_values", "failure_values", "default_result".
type BranchingAgent struct {
	successField  string
	outputField   string
	successValues []any
	failureValues []any
	defaultResult bool
}

func newBranchingAgent(cfg AgentConfig) (Agent, error) {
	b := &BranchingAgent{defaultResult: true}
	if v, ok := cfg.Context["success_field"].(string); ok {
		b.successField = v
	} else if fields, ok := cfg.Context["input_fields"].([]string); ok && len(fields) > 0 {
		b.successField = fields[0]
	} else if fields, ok := cfg.Context["input_fields"].([]any); ok && len(fields) > 0 {
		if s, ok := fields[0].(string); ok {
			b.successField = s
		}
	}
	if v, ok := cfg.Context["output_field"].(string); ok {
		b.outputField = v
	}
	if v, ok := cfg.Context["success_values"].([]any); ok {
		b.successValues = v
	}
	if v, ok := cfg.Context["failure_values"].([]any); ok {
		b.failureValues = v
	}
	if v, ok := cfg.Context["default_result"].(bool); ok {
		b.defaultResult = v
	}
	return b, nil
}

func (b *BranchingAgent) Invoke(_ context.Context, state agentstate.State, inputs map[string]any) (StepResult, error) {
	result := b.defaultResult
	if b.successField != "" {
		if v, ok := inputs[b.successField]; ok {
			result = evaluateBranch(v, b.successValues, b.failureValues, b.defaultResult)
		} else if v, ok := inputs["should_succeed"]; ok {
			result = evaluateBranch(v, b.successValues, b.failureValues, b.defaultResult)
		}
	}
	state[agentstate.LastActionSuccess] = result
	return Ok(result), nil
}

func evaluateBranch(v any, successValues, failureValues []any, fallback bool) bool {
	for _, sv := range successValues {
		if sv == v {
			return true
		}
	}
	for _, fv := range failureValues {
		if fv == v {
			return false
		}
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch t {
		case "yes", "true", "1":
			return true
		case "no", "false", "0":
			return false
		}
	case int:
		return t != 0
	}
	return fallback
}

// HumanAgent always suspends, modeling spec.md section 4.11's "a node's
// agent detects the need for human input" path (used by the CSV
// interaction_type=approval node of scenario S4).
type HumanAgent struct {
	name            string
	interactionType string
}

func newHumanAgent(cfg AgentConfig) (Agent, error) {
	h := &HumanAgent{name: cfg.Name, interactionType: "approval"}
	if v, ok := cfg.Context["interaction_type"].(string); ok {
		h.interactionType = v
	}
	return h, nil
}

func (h *HumanAgent) Invoke(_ context.Context, state agentstate.State, inputs map[string]any) (StepResult, error) {
	if resp, ok := state[agentstate.HumanResponse].(map[string]any); ok {
		delete(state, agentstate.HumanResponse)
		return Ok(resp), nil
	}
	req := &InteractionRequest{
		ID:              fmt.Sprintf("%s-interaction", h.name),
		NodeName:        h.name,
		InteractionType: h.interactionType,
		Prompt:          h.name,
	}
	checkpointData := map[string]any{"node_name": h.name, "inputs": inputs}
	return Suspend(req, checkpointData), nil
}

var builtinAgentConstructors = map[string]AgentConstructor{
	"agentmap.agents.EchoAgent":      newEchoAgent,
	"builtin.DefaultAgent":           newDefaultAgent,
	"agentmap.agents.DefaultAgent":   newDefaultAgent,
	"agentmap.agents.BranchingAgent": newBranchingAgent,
	"agentmap.agents.HumanAgent":     newHumanAgent,
}
