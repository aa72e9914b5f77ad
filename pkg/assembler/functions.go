package assembler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/agentmap/pkg/agentstate"
)

// RoutingFunc is the compiled form of a func:name(success,failure) edge
// token (spec.md section 4.7): "call resolved name(state, success_target,
// failure_target); its return value is the next node id."
type RoutingFunc func(state agentstate.State, successTarget, failureTarget string) (string, error)

// FunctionRegistry binds a routing-function name (as resolved through
// the bundle's function_mappings) to its RoutingFunc implementation.
// Mirrors container.ClassRegistry's "statically registered factory map"
// pattern (spec.md section 9) rather than resolving by string at call
// time.
type FunctionRegistry struct {
	funcs map[string]RoutingFunc
}

// NewFunctionRegistry returns a registry seeded with the builtin routing
// functions.
func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{funcs: make(map[string]RoutingFunc)}
	for name, fn := range builtinRoutingFuncs {
		r.funcs[name] = fn
	}
	return r
}

// Register binds name to fn.
func (r *FunctionRegistry) Register(name string, fn RoutingFunc) {
	r.funcs[name] = fn
}

func (r *FunctionRegistry) lookup(name string) (RoutingFunc, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}

// funcTokenPattern extracts name and the two comma-separated target
// arguments out of a "func:name(success,failure)" token.
var funcTokenPattern = regexp.MustCompile(`^func:([A-Za-z_][A-Za-z0-9_]*)\(([^()]*)\)$`)

// parseFuncToken splits a function-reference edge token into its
// function name and target arguments.
func parseFuncToken(token string) (name string, args []string, ok bool) {
	m := funcTokenPattern.FindStringSubmatch(token)
	if m == nil {
		return "", nil, false
	}
	name = m[1]
	if strings.TrimSpace(m[2]) == "" {
		return name, nil, true
	}
	for _, a := range strings.Split(m[2], ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return name, args, true
}

// routeBySuccess is the builtin "route_by_success" function: returns the
// success target when state.last_action_success, else the failure
// target. It models the common case where a host declares a function
// reference purely to keep routing logic declaration-driven rather than
// column-driven.
func routeBySuccess(state agentstate.State, successTarget, failureTarget string) (string, error) {
	if state.LastActionSucceeded() {
		if successTarget == "" {
			return "", fmt.Errorf("route_by_success: no success target configured")
		}
		return successTarget, nil
	}
	if failureTarget == "" {
		return "", fmt.Errorf("route_by_success: no failure target configured")
	}
	return failureTarget, nil
}

var builtinRoutingFuncs = map[string]RoutingFunc{
	"route_by_success": routeBySuccess,
	"route":            routeBySuccess,
}
