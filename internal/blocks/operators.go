// internal/blocks/operators.go
package blocks

import (
	"reflect"
	"sort"
	"strings"
)

/*
 * Operator folding.
 *
 * Pure functions shared by the collapser (operands known at load time) and
 * the resolver (operands evaluated at runtime). Inputs are already-typed
 * operand lists; these functions never see blocks.
 *
 * Comparison chains read left to right: lessThan [a, b, c] holds when
 * a < b < c. notEquals holds when no two neighbouring operands are equal.
 *
 * Numeric comparison: Handles float64/int/int64 mixing for JSON and YAML
 * compatibility.
 */

func concat(parts []string) string {
	return strings.Join(parts, "")
}

func sum(operands []float64) float64 {
	total := 0.0
	for _, n := range operands {
		total += n
	}
	return total
}

// difference subtracts every later operand from the first. The caller
// guarantees at least one operand.
func difference(operands []float64) float64 {
	total := operands[0]
	for _, n := range operands[1:] {
		total -= n
	}
	return total
}

// compareChain applies a comparison operator pairwise along the operands.
// Chains of fewer than two operands hold trivially.
func compareChain(op string, operands []float64) bool {
	for i := 0; i+1 < len(operands); i++ {
		a, b := operands[i], operands[i+1]
		var ok bool
		switch op {
		case TypeLessThan:
			ok = a < b
		case TypeLessThanOrEqual:
			ok = a <= b
		case TypeGreaterThan:
			ok = a > b
		case TypeGreaterThanOrEqual:
			ok = a >= b
		}
		if !ok {
			return false
		}
	}
	return true
}

func allEqual(operands []any) bool {
	for i := 1; i < len(operands); i++ {
		if !valuesEqual(operands[0], operands[i]) {
			return false
		}
	}
	return true
}

func noAdjacentEqual(operands []any) bool {
	for i := 0; i+1 < len(operands); i++ {
		if valuesEqual(operands[i], operands[i+1]) {
			return false
		}
	}
	return true
}

func combine(op string, operands []bool) bool {
	switch op {
	case TypeAll:
		for _, b := range operands {
			if !b {
				return false
			}
		}
		return true
	case TypeAny:
		for _, b := range operands {
			if b {
				return true
			}
		}
		return false
	default: // TypeNone
		for _, b := range operands {
			if b {
				return false
			}
		}
		return true
	}
}

// valuesEqual performs equality comparison with numeric type coercion.
// Collections compare structurally.
func valuesEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, present := bv[k]
			if !present || !valuesEqual(v, w) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64 from JSON and int/int64 from YAML or Go callers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// sortedKeys returns map keys in deterministic order.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cloneValue deep-copies literal collections. Scalars and foreign types are
// returned as they are.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = cloneValue(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}

// pick copies the listed fields of m into a new map, skipping absent ones.
func pick(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}
