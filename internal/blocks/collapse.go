// internal/blocks/collapse.go
package blocks

import (
	"errors"
	"fmt"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Load-time collapse.
 *
 * Collapse is context-free constant folding. Every collapser returns a new
 * block tree and never touches its input, so the same decoded pack can be
 * loaded any number of times. The returned tree is whitelisted at every
 * level: only the fields the grammar lists for a block survive, whether or
 * not the block folded.
 *
 * Static results are plain literals. Unresolved results are whitelisted
 * blocks whose static children have already been replaced by literals.
 *
 * Always unresolved: random, randomInt, map, filter, getContext, getObject,
 * method, property. A ternary folds to its chosen branch when the condition
 * is static; the dead branch is dropped without being examined, matching the
 * resolver's short-circuit.
 */

// CollapseFunc collapses a block of one kind. It returns the collapsed tree,
// whether the tree is a fully static literal, and a path-tagged error when
// the block or any descendant is invalid.
type CollapseFunc func(block any, stack types.Stack) (any, bool, error)

// errKindMismatch marks failures where the block belongs to another category.
// The ordered-attempt combinators skip past these to find a better error.
var errKindMismatch = fmt.Errorf("%w: kind mismatch", types.ErrInvalidBlock)

func mismatch(stack types.Stack, format string, args ...any) error {
	return types.NewBlockError(errKindMismatch, stack, format, args...)
}

func checkDepth(stack types.Stack) error {
	if len(stack) > types.MaxStackDepth {
		return types.NewBlockError(types.ErrStackTooDeep, stack[:types.MaxStackDepth], "block nesting exceeds %d", types.MaxStackDepth)
	}
	return nil
}

// collapseField collapses m[key] into out[key].
func collapseField(m, out map[string]any, key string, fn CollapseFunc, stack types.Stack) (bool, error) {
	child := stack.Push(key)
	if err := checkDepth(child); err != nil {
		return false, err
	}
	v, static, err := fn(m[key], child)
	if err != nil {
		return false, err
	}
	out[key] = v
	return static, nil
}

// collapseOptional collapses m[key] when present. An absent or null field is
// dropped from out and counts as static.
func collapseOptional(m, out map[string]any, key string, fn CollapseFunc, stack types.Stack) (bool, error) {
	if v, ok := m[key]; !ok || v == nil {
		delete(out, key)
		return true, nil
	}
	return collapseField(m, out, key, fn, stack)
}

// collapseFields collapses several required fields with the same collapser.
func collapseFields(m, out map[string]any, fn CollapseFunc, stack types.Stack, keys ...string) (bool, error) {
	static := true
	for _, key := range keys {
		s, err := collapseField(m, out, key, fn, stack)
		if err != nil {
			return false, err
		}
		static = static && s
	}
	return static, nil
}

// firstCollapse is the ordered-attempt combinator: the first attempt that
// succeeds wins, and a plain kind mismatch at this block moves on to the next
// attempt. Any other error ends the search. A mismatch raised below the block
// counts as such an error: the category was right and a child was wrong, so
// a later, looser category must not accept the block.
func firstCollapse(block any, stack types.Stack, attempts ...CollapseFunc) (any, bool, error) {
	for _, attempt := range attempts {
		v, static, err := attempt(block, stack)
		if err == nil {
			return v, static, nil
		}
		if telling(err, stack) {
			return nil, false, err
		}
	}
	return nil, false, mismatch(stack, "block could not resolve to any state")
}

// telling reports whether err says more than "wrong category" about the
// block at stack.
func telling(err error, stack types.Stack) bool {
	return !errors.Is(err, errKindMismatch) || types.Depth(err) > len(stack)
}

func literals[T any](v any) []T {
	list, _ := v.([]any)
	out := make([]T, 0, len(list))
	for _, el := range list {
		t, _ := el.(T)
		out = append(out, t)
	}
	return out
}

// CollapseString collapses a String block.
func CollapseString(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateString(block, stack); err != nil {
		return nil, false, err
	}
	if s, ok := block.(string); ok {
		return s, true, nil
	}
	m, discriminator, _ := tagged(block)
	switch discriminator {
	case TypeConcat:
		out := pick(m, Fields(discriminator))
		static, err := collapseField(m, out, "operands", CollapseArray(CollapseString), stack)
		if err != nil {
			return nil, false, err
		}
		if !static {
			return out, false, nil
		}
		return concat(literals[string](out["operands"])), true, nil
	default:
		return collapseReference(m, discriminator, CollapseString, stack)
	}
}

// CollapseNumber collapses a Number block. Numeric literals are normalised to
// float64.
func CollapseNumber(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateNumber(block, stack); err != nil {
		return nil, false, err
	}
	if n, ok := toFloat64(block); ok {
		return n, true, nil
	}
	m, discriminator, _ := tagged(block)
	out := pick(m, Fields(discriminator))
	switch discriminator {
	case TypeAddition, TypeSubtraction:
		static, err := collapseField(m, out, "operands", CollapseArray(CollapseNumber), stack)
		if err != nil {
			return nil, false, err
		}
		if !static {
			return out, false, nil
		}
		operands := literals[float64](out["operands"])
		if discriminator == TypeAddition {
			return sum(operands), true, nil
		}
		if len(operands) == 0 {
			return nil, false, invalid(stack.Push("operands"), "subtraction needs at least one operand")
		}
		return difference(operands), true, nil
	case TypeRandom, TypeRandomInt:
		if _, err := collapseFields(m, out, CollapseNumber, stack, "min", "max"); err != nil {
			return nil, false, err
		}
		return out, false, nil
	default:
		return collapseReference(m, discriminator, CollapseNumber, stack)
	}
}

// CollapseBoolean collapses a Boolean block.
func CollapseBoolean(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateBoolean(block, stack); err != nil {
		return nil, false, err
	}
	if b, ok := block.(bool); ok {
		return b, true, nil
	}
	m, discriminator, _ := tagged(block)
	out := pick(m, Fields(discriminator))
	switch discriminator {
	case TypeEquals, TypeNotEquals:
		static, err := collapseField(m, out, "operands", CollapseArray(CollapseState), stack)
		if err != nil || !static {
			return unlessErr(out, err)
		}
		operands := literals[any](out["operands"])
		if discriminator == TypeEquals {
			return allEqual(operands), true, nil
		}
		return noAdjacentEqual(operands), true, nil
	case TypeLessThan, TypeLessThanOrEqual, TypeGreaterThan, TypeGreaterThanOrEqual:
		static, err := collapseField(m, out, "operands", CollapseArray(CollapseNumber), stack)
		if err != nil || !static {
			return unlessErr(out, err)
		}
		return compareChain(discriminator, literals[float64](out["operands"])), true, nil
	case TypeAll, TypeAny, TypeNone:
		static, err := collapseField(m, out, "operands", CollapseArray(CollapseBoolean), stack)
		if err != nil || !static {
			return unlessErr(out, err)
		}
		return combine(discriminator, literals[bool](out["operands"])), true, nil
	case TypeContextExists:
		if _, err := collapseField(m, out, "object", CollapseString, stack); err != nil {
			return nil, false, err
		}
		return out, false, nil
	case TypePropertyExists:
		objStatic, err := collapseField(m, out, "object", CollapseObject, stack)
		if err != nil {
			return nil, false, err
		}
		propStatic, err := collapseField(m, out, "property", CollapseString, stack)
		if err != nil {
			return nil, false, err
		}
		if !objStatic || !propStatic {
			return out, false, nil
		}
		_, present := out["object"].(map[string]any)[out["property"].(string)]
		return present, true, nil
	default:
		return collapseReference(m, discriminator, CollapseBoolean, stack)
	}
}

// unlessErr returns the partially collapsed block, or the error if set.
func unlessErr(out map[string]any, err error) (any, bool, error) {
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// CollapseObject collapses an Object block. A string is a context lookup and
// stays unresolved; a literal map is copied.
func CollapseObject(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateObject(block, stack); err != nil {
		return nil, false, err
	}
	if s, ok := block.(string); ok {
		return s, false, nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return cloneValue(m), true, nil
	}
	return collapseReference(m, discriminator, CollapseObject, stack)
}

// CollapseState collapses a block of any value kind, trying String, Number,
// Boolean, Array, Dictionary and Object in that order. Reference blocks are
// dispatched once with the State collapser so their children are not
// collapsed repeatedly by each attempt.
func CollapseState(block any, stack types.Stack) (any, bool, error) {
	if m, discriminator, ok := tagged(block); ok {
		if kind, known := KindOf(discriminator); known && kind == KindReference {
			if err := ValidateReference(block, stack); err != nil {
				return nil, false, err
			}
			return collapseReference(m, discriminator, CollapseState, stack)
		}
	}
	return firstCollapse(block, stack,
		CollapseString,
		CollapseNumber,
		CollapseBoolean,
		CollapseArray(CollapseState),
		CollapseDictionary(CollapseState),
		CollapseObject,
	)
}

// CollapseArray returns a collapser for Array<T> given T's collapser.
func CollapseArray(fn CollapseFunc) CollapseFunc {
	return func(block any, stack types.Stack) (any, bool, error) {
		if err := ValidateArray(block, stack); err != nil {
			return nil, false, err
		}
		if list, ok := block.([]any); ok {
			out := make([]any, len(list))
			static := true
			for i, el := range list {
				child := stack.Index(i)
				if err := checkDepth(child); err != nil {
					return nil, false, err
				}
				v, s, err := fn(el, child)
				if err != nil {
					return nil, false, err
				}
				out[i] = v
				static = static && s
			}
			return out, static, nil
		}

		m, discriminator, _ := tagged(block)
		out := pick(m, Fields(discriminator))
		switch discriminator {
		case TypeFilter:
			if _, err := collapseField(m, out, "array", CollapseArray(CollapseState), stack); err != nil {
				return nil, false, err
			}
			if _, err := collapseField(m, out, "condition", CollapseBoolean, stack); err != nil {
				return nil, false, err
			}
			return out, false, nil
		case TypeMap:
			if _, err := collapseField(m, out, "array", CollapseArray(CollapseState), stack); err != nil {
				return nil, false, err
			}
			if _, err := collapseField(m, out, "value", fn, stack); err != nil {
				return nil, false, err
			}
			return out, false, nil
		case TypeKeys:
			static, err := collapseField(m, out, "dictionary", CollapseDictionary(CollapseState), stack)
			if err != nil || !static {
				return unlessErr(out, err)
			}
			dict := out["dictionary"].(map[string]any)
			keys := make([]any, 0, len(dict))
			for _, key := range sortedKeys(dict) {
				v, s, err := fn(key, stack.Push("dictionary", key))
				if err != nil {
					return nil, false, err
				}
				if !s {
					return out, false, nil
				}
				keys = append(keys, v)
			}
			return keys, true, nil
		case TypeValues:
			static, err := collapseField(m, out, "dictionary", CollapseDictionary(fn), stack)
			if err != nil || !static {
				return unlessErr(out, err)
			}
			dict := out["dictionary"].(map[string]any)
			values := make([]any, 0, len(dict))
			for _, key := range sortedKeys(dict) {
				values = append(values, dict[key])
			}
			return values, true, nil
		default:
			return collapseReference(m, discriminator, CollapseArray(fn), stack)
		}
	}
}

// CollapseDictionary returns a collapser for Dictionary<T> given T's collapser.
func CollapseDictionary(fn CollapseFunc) CollapseFunc {
	return func(block any, stack types.Stack) (any, bool, error) {
		if err := ValidateDictionary(block, stack); err != nil {
			return nil, false, err
		}
		m, discriminator, ok := tagged(block)
		if !ok {
			out := make(map[string]any, len(m))
			static := true
			for _, key := range sortedKeys(m) {
				s, err := collapseField(m, out, key, fn, stack)
				if err != nil {
					return nil, false, err
				}
				static = static && s
			}
			return out, static, nil
		}

		switch discriminator {
		case TypeCreateDictionary:
			out := pick(m, Fields(discriminator))
			static, err := collapseField(m, out, "entries", CollapseArray(collapseEntry(fn)), stack)
			if err != nil || !static {
				return unlessErr(out, err)
			}
			dict := make(map[string]any)
			for _, entry := range literals[map[string]any](out["entries"]) {
				dict[entry["key"].(string)] = entry["value"]
			}
			return dict, true, nil
		default:
			return collapseReference(m, discriminator, CollapseDictionary(fn), stack)
		}
	}
}

// collapseEntry returns a collapser for Entry<T>.
func collapseEntry(fn CollapseFunc) CollapseFunc {
	return func(block any, stack types.Stack) (any, bool, error) {
		if err := ValidateEntry(block, stack); err != nil {
			return nil, false, err
		}
		m := block.(map[string]any)
		out := pick(m, ShapeFields(ShapeEntry))
		keyStatic, err := collapseField(m, out, "key", CollapseString, stack)
		if err != nil {
			return nil, false, err
		}
		valueStatic, err := collapseField(m, out, "value", fn, stack)
		if err != nil {
			return nil, false, err
		}
		return out, keyStatic && valueStatic, nil
	}
}

// collapseReference collapses a reference block. fn is the collapser of the
// kind the reference must produce; it is applied to both ternary branches,
// and a static condition then folds the ternary to its chosen branch.
func collapseReference(m map[string]any, discriminator string, fn CollapseFunc, stack types.Stack) (any, bool, error) {
	out := pick(m, Fields(discriminator))
	switch discriminator {
	case TypeMethod:
		if _, err := collapseField(m, out, "object", CollapseObject, stack); err != nil {
			return nil, false, err
		}
		if _, err := collapseField(m, out, "method", CollapseString, stack); err != nil {
			return nil, false, err
		}
		if _, err := collapseOptional(m, out, "params", CollapseDictionary(CollapseState), stack); err != nil {
			return nil, false, err
		}
		return out, false, nil
	case TypeProperty:
		if _, err := collapseField(m, out, "object", CollapseObject, stack); err != nil {
			return nil, false, err
		}
		if _, err := collapseField(m, out, "property", CollapseString, stack); err != nil {
			return nil, false, err
		}
		return out, false, nil
	case TypeGetContext, TypeGetObject:
		if _, err := collapseField(m, out, "id", CollapseString, stack); err != nil {
			return nil, false, err
		}
		return out, false, nil
	case TypeTernary:
		static, err := collapseField(m, out, "condition", CollapseBoolean, stack)
		if err != nil {
			return nil, false, err
		}
		trueStatic, err := collapseField(m, out, "true", fn, stack)
		if err != nil {
			return nil, false, err
		}
		falseStatic, err := collapseField(m, out, "false", fn, stack)
		if err != nil {
			return nil, false, err
		}
		if static {
			if out["condition"].(bool) {
				return out["true"], trueStatic, nil
			}
			return out["false"], falseStatic, nil
		}
		return out, false, nil
	default:
		return nil, false, types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown block type %q", discriminator)
	}
}
