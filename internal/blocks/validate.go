// internal/blocks/validate.go
package blocks

import (
	"fmt"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Structural validators.
 *
 * A validator answers one question: is this value shaped like a block of
 * kind K? It checks literal forms and required-field presence only; it
 * never looks at the types of nested fields (the collapser and resolver
 * validate children when they reach them), never evaluates and never
 * mutates. Failures are a single *types.BlockError tagged with the stack.
 *
 * A literal of the wrong JSON type, or a discriminator owned by another
 * category, is a kind mismatch; the State combinators use that to move on
 * to the next category. A discriminator owned by no category at all
 * fails closed with types.ErrUnknownBlockType.
 */

func invalid(stack types.Stack, format string, args ...any) error {
	return types.NewBlockError(types.ErrInvalidBlock, stack, format, args...)
}

// describe names the JSON type of a literal for diagnostics.
func describe(block any) string {
	switch block.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", block)
	}
}

// tagged returns the block as a map along with its discriminator.
// hasType is false for literal maps and non-map values.
func tagged(block any) (m map[string]any, discriminator string, hasType bool) {
	m, ok := block.(map[string]any)
	if !ok {
		return nil, "", false
	}
	raw, present := m["_type"]
	if !present {
		return m, "", false
	}
	discriminator, _ = raw.(string)
	return m, discriminator, true
}

func requireFields(m map[string]any, stack types.Stack, name string, fields []string) error {
	for _, field := range fields {
		if v, ok := m[field]; !ok || v == nil {
			return invalid(stack, "%s block is missing %q", name, field)
		}
	}
	return nil
}

func unexpected(kind string, block any, stack types.Stack) error {
	if block == nil {
		return invalid(stack, "block is null")
	}
	return mismatch(stack, "expected %s block, got %s", kind, describe(block))
}

// validateTagged checks a discriminated block against the grammar, accepting
// either the wanted category or a reference block.
func validateTagged(m map[string]any, discriminator string, want Kind, stack types.Stack) error {
	if discriminator == "" {
		return invalid(stack, "_type must be a non-empty string")
	}
	f, ok := grammar[discriminator]
	if !ok {
		return types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown block type %q", discriminator)
	}
	if f.kind != want && f.kind != KindReference {
		return mismatch(stack, "%s block %q cannot be used as %s", f.kind, discriminator, want)
	}
	return requireFields(m, stack, discriminator, f.required)
}

// ValidateReference accepts method, property, getContext, getObject and
// ternary blocks.
func ValidateReference(block any, stack types.Stack) error {
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("reference", block, stack)
	}
	return validateTagged(m, discriminator, KindReference, stack)
}

// ValidateString accepts a string literal, concat or a reference.
func ValidateString(block any, stack types.Stack) error {
	if _, ok := block.(string); ok {
		return nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("string", block, stack)
	}
	return validateTagged(m, discriminator, KindString, stack)
}

// ValidateNumber accepts a numeric literal, arithmetic, random or a reference.
func ValidateNumber(block any, stack types.Stack) error {
	if _, ok := toFloat64(block); ok {
		return nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("number", block, stack)
	}
	return validateTagged(m, discriminator, KindNumber, stack)
}

// ValidateBoolean accepts a boolean literal, comparisons and combinators.
func ValidateBoolean(block any, stack types.Stack) error {
	if _, ok := block.(bool); ok {
		return nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("boolean", block, stack)
	}
	return validateTagged(m, discriminator, KindBoolean, stack)
}

// ValidateArray accepts a literal array without nulls or an array operator.
func ValidateArray(block any, stack types.Stack) error {
	if list, ok := block.([]any); ok {
		for i, el := range list {
			if el == nil {
				return invalid(stack.Index(i), "array element is null")
			}
		}
		return nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("array", block, stack)
	}
	return validateTagged(m, discriminator, KindArray, stack)
}

// ValidateDictionary accepts a literal map without nulls or createDictionary.
func ValidateDictionary(block any, stack types.Stack) error {
	m, discriminator, ok := tagged(block)
	if m == nil {
		return unexpected("dictionary", block, stack)
	}
	if !ok {
		for key, v := range m {
			if v == nil {
				return invalid(stack.Push(key), "dictionary value is null")
			}
		}
		return nil
	}
	return validateTagged(m, discriminator, KindDictionary, stack)
}

// ValidateEntry accepts a {key, value} map.
func ValidateEntry(block any, stack types.Stack) error {
	return validateShape(block, ShapeEntry, stack)
}

// ValidateObject accepts a literal map, a string naming a context entry, or a
// reference.
func ValidateObject(block any, stack types.Stack) error {
	if _, ok := block.(string); ok {
		return nil
	}
	m, discriminator, ok := tagged(block)
	if m == nil {
		return unexpected("object", block, stack)
	}
	if !ok {
		return nil
	}
	return validateTagged(m, discriminator, KindObject, stack)
}

// ValidateState accepts any non-null literal or any discriminated value block.
func ValidateState(block any, stack types.Stack) error {
	m, discriminator, ok := tagged(block)
	if !ok {
		if block == nil {
			return invalid(stack, "block is null")
		}
		if list, isList := block.([]any); isList {
			return ValidateArray(list, stack)
		}
		if m != nil {
			return ValidateDictionary(m, stack)
		}
		return nil
	}
	f, known := grammar[discriminator]
	if !known {
		return types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown block type %q", discriminator)
	}
	switch f.kind {
	case KindAction, KindType:
		return mismatch(stack, "%s block %q cannot be used as state", f.kind, discriminator)
	}
	return requireFields(m, stack, discriminator, f.required)
}

// ValidateAction accepts action blocks and references.
func ValidateAction(block any, stack types.Stack) error {
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("action", block, stack)
	}
	return validateTagged(m, discriminator, KindAction, stack)
}

func validateShape(block any, shape string, stack types.Stack) error {
	m, ok := block.(map[string]any)
	if !ok {
		return unexpected(shape, block, stack)
	}
	return requireFields(m, stack, shape, shapes[shape].required)
}

// validateShapeOrReference accepts the literal shape or a reference block.
func validateShapeOrReference(block any, shape string, stack types.Stack) error {
	m, discriminator, ok := tagged(block)
	if ok {
		return validateTagged(m, discriminator, KindReference, stack)
	}
	return validateShape(block, shape, stack)
}

// ValidatePosition accepts {x, y} or a reference.
func ValidatePosition(block any, stack types.Stack) error {
	return validateShapeOrReference(block, ShapePosition, stack)
}

// ValidateSize accepts a number, {width, height}, a number block or a reference.
func ValidateSize(block any, stack types.Stack) error {
	if _, ok := toFloat64(block); ok {
		return nil
	}
	m, discriminator, ok := tagged(block)
	if ok {
		return validateTagged(m, discriminator, KindNumber, stack)
	}
	return validateShape(block, ShapeSize, stack)
}

// ValidateInventory accepts {slots, canPlayerExtract?, canPlayerInsert?}.
func ValidateInventory(block any, stack types.Stack) error {
	return validateShape(block, ShapeInventory, stack)
}

// ValidateItemStack accepts {item, quantity} or a reference.
func ValidateItemStack(block any, stack types.Stack) error {
	return validateShapeOrReference(block, ShapeItemStack, stack)
}

// ValidateNodeAction accepts {display, duration, run, cost?, tooltip?}.
func ValidateNodeAction(block any, stack types.Stack) error {
	return validateShape(block, ShapeNodeAction, stack)
}

// ValidateType accepts a custom type id or a type descriptor.
func ValidateType(block any, stack types.Stack) error {
	if id, ok := block.(string); ok {
		if id == "" {
			return invalid(stack, "type id is empty")
		}
		return nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return unexpected("type", block, stack)
	}
	f, known := grammar[discriminator]
	if !known || f.kind != KindType {
		return types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown type %q", discriminator)
	}
	return requireFields(m, stack, discriminator, f.required)
}

// ValidateMethodType accepts {run, params?, returns?}.
func ValidateMethodType(block any, stack types.Stack) error {
	return validateShape(block, ShapeMethodType, stack)
}

// ValidateProperty accepts a type descriptor carrying a value.
func ValidateProperty(block any, stack types.Stack) error {
	m, ok := block.(map[string]any)
	if !ok {
		return unexpected("property", block, stack)
	}
	if v, present := m["value"]; !present || v == nil {
		return invalid(stack, "property block is missing %q", "value")
	}
	return ValidateType(block, stack)
}
