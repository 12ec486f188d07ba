package workflow

import (
	"strconv"
	"strings"

	"github.com/apichain/apichain/pkg/template"
)

// nullKeyword in a runIf predicate matches an operand whose token could not
// be resolved (absent input, unknown key). It is distinct from an empty
// string: a provided-but-empty value is not null.
const nullKeyword = "null"

// operand is a resolved runIf comparand.
type operand struct {
	value string
	null  bool
}

// EvaluateRunIf evaluates a stage's runIf predicate. Supported forms:
// empty (always run), "<lhs> == <rhs>", "<lhs> != <rhs>", or a single
// expression parsed as a boolean. Operands are template-resolved; an operand
// whose resolution fails becomes null rather than failing the evaluation.
// The returned error marks a predicate that cannot be evaluated at all
// (callers treat that as "condition not satisfied").
func EvaluateRunIf(expr string, scope *template.Scope) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}

	if lhs, rhs, found := strings.Cut(expr, "!="); found {
		return !equalOperands(lhs, rhs, scope), nil
	}

	if lhs, rhs, found := strings.Cut(expr, "=="); found {
		return equalOperands(lhs, rhs, scope), nil
	}

	resolved, err := template.Resolve(expr, scope)
	if err != nil {
		return false, err
	}

	value, err := strconv.ParseBool(strings.TrimSpace(resolved))
	if err != nil {
		return false, err
	}

	return value, nil
}

// equalOperands resolves both sides and compares them. Null equals only
// null; everything else compares as plain strings.
func equalOperands(lhs, rhs string, scope *template.Scope) bool {
	left := resolveOperand(lhs, scope)
	right := resolveOperand(rhs, scope)

	if left.null || right.null {
		return left.null && right.null
	}

	return left.value == right.value
}

// resolveOperand turns one side of a comparison into an operand. The null
// keyword and unresolvable tokens both map to null.
func resolveOperand(raw string, scope *template.Scope) operand {
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, `"'`)

	if raw == nullKeyword {
		return operand{null: true}
	}

	value, err := template.Resolve(raw, scope)
	if err != nil {
		return operand{null: true}
	}

	return operand{value: value}
}
