package container

import (
	"context"
	"strings"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// NodeCandidate is one routing target a KeywordMatcher scores against
// free-text input, grounded on original_source's
// orchestrator_service.py select_best_node: each candidate node
// advertises a set of keywords parsed from its CSV context.
type NodeCandidate struct {
	Name     string
	Keywords []string
}

// KeywordMatcher is the deterministic "algorithm" strategy of
// select_best_node, stripped of the LLM-backed "tiered"/"llm"
// strategies (those belong to a concrete LLM-backed router, out of
// core scope per SPEC_FULL.md section D.5). Ties broken by candidate
// order; no keyword hit falls back to defaultTarget.
type KeywordMatcher struct{}

// Select scores each candidate by counting case-insensitive keyword
// occurrences in inputText and returns the best-scoring name.
func (KeywordMatcher) Select(inputText string, candidates []NodeCandidate, defaultTarget string) string {
	if len(candidates) == 0 {
		return defaultTarget
	}
	lower := strings.ToLower(inputText)

	best := defaultTarget
	bestScore := 0
	for _, c := range candidates {
		score := 0
		for _, kw := range c.Keywords {
			if kw == "" {
				continue
			}
			score += strings.Count(lower, strings.ToLower(kw))
		}
		if score > bestScore {
			bestScore = score
			best = c.Name
		}
	}
	return best
}

// PassthroughOrchestratorAgent is the builtin OrchestrationCapable stub
// of SPEC_FULL.md section D.5: it reads candidate nodes and their
// keywords from its config context, matches the node's single input
// field against them, and writes the selected target into
// agentstate.NextNode for the runner's dynamic-router hook (spec.md
// section 4.7) to pick up. Concrete LLM-backed orchestration is a host
// concern; this only demonstrates the capability wiring.
type PassthroughOrchestratorAgent struct {
	name          string
	candidates    []NodeCandidate
	defaultTarget string
}

func newPassthroughOrchestratorAgent(cfg AgentConfig) (Agent, error) {
	a := &PassthroughOrchestratorAgent{name: cfg.Name}
	if v, ok := cfg.Context["default_target"].(string); ok {
		a.defaultTarget = v
	}
	if raw, ok := cfg.Context["nodes"].(map[string]any); ok {
		for name, v := range raw {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			var keywords []string
			if kws, ok := entry["keywords"].([]string); ok {
				keywords = kws
			} else if kws, ok := entry["keywords"].([]any); ok {
				for _, k := range kws {
					if s, ok := k.(string); ok {
						keywords = append(keywords, s)
					}
				}
			}
			a.candidates = append(a.candidates, NodeCandidate{Name: name, Keywords: keywords})
		}
	}
	return a, nil
}

func (a *PassthroughOrchestratorAgent) Invoke(_ context.Context, state agentstate.State, inputs map[string]any) (StepResult, error) {
	var inputText string
	for _, v := range inputs {
		if s, ok := v.(string); ok {
			inputText = s
			break
		}
	}
	target := KeywordMatcher{}.Select(inputText, a.candidates, a.defaultTarget)
	state[agentstate.NextNode] = target
	return Ok(target), nil
}

// IsOrchestrator always returns true: any instance of this type is
// OrchestrationCapable by construction.
func (a *PassthroughOrchestratorAgent) IsOrchestrator() bool { return true }

func init() {
	builtinAgentConstructors["agentmap.agents.OrchestratorAgent"] = newPassthroughOrchestratorAgent
}
