package policy

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CapabilityExpressions optionally overrides the plain verb:category match
// for a method with a CEL boolean expression over the caller's granted
// capability set, for fleets whose access model needs more than exact/
// wildcard string matching (e.g. "grants.exists(g, g == 'write:policies') &&
// !grants.exists(g, g == 'deny:policies')"). Most deployments never populate
// this map; CheckAccess falls back to the default match when a method has no
// entry here. Grounded on the teacher's pkg/kernel/celdp policy evaluator —
// same "compile once, eval against a small input" shape, narrowed to a
// single `grants` variable instead of a full decision-point input document.
var (
	celMu   sync.Mutex
	celExpr = make(map[string]string)
	celProg = make(map[string]cel.Program)
)

// SetCapabilityExpression registers (or clears, with expr == "") a CEL
// expression gating method. The expression must evaluate to a bool and may
// reference the `grants` variable, a list of the caller's capability
// strings.
func SetCapabilityExpression(method, expr string) error {
	celMu.Lock()
	defer celMu.Unlock()
	if expr == "" {
		delete(celExpr, method)
		delete(celProg, method)
		return nil
	}
	env, err := cel.NewEnv(cel.Variable("grants", cel.ListType(cel.StringType)))
	if err != nil {
		return fmt.Errorf("build cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile capability expression for %q: %w", method, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return fmt.Errorf("build cel program for %q: %w", method, err)
	}
	celExpr[method] = expr
	celProg[method] = prg
	return nil
}

// evalCapabilityExpression reports (matched, handled): handled is false when
// method has no registered expression, telling CheckAccess to fall back to
// the default verb:category match.
func evalCapabilityExpression(method string, capabilities []string) (allowed bool, handled bool, err error) {
	celMu.Lock()
	prg, ok := celProg[method]
	celMu.Unlock()
	if !ok {
		return false, false, nil
	}
	grants := make([]any, len(capabilities))
	for i, c := range capabilities {
		grants[i] = c
	}
	out, _, err := prg.Eval(map[string]any{"grants": grants})
	if err != nil {
		return false, true, fmt.Errorf("evaluate capability expression for %q: %w", method, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, true, fmt.Errorf("capability expression for %q did not evaluate to bool", method)
	}
	return result, true, nil
}
