// internal/blocks/collapse_types.go
package blocks

import (
	"errors"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Type descriptors and type-driven structural collapse.
 *
 * A Type block describes the shape of a custom-object field. CollapseType
 * validates and whitelists the descriptor itself; CollapseByType uses a
 * collapsed descriptor to coerce a value: it substitutes the declared
 * default for an absent value, recurses into object, array and dictionary
 * element types, and fails with types.ErrSchemaViolation when a value is
 * missing without a default or has the wrong kind.
 *
 * A bare string descriptor names a custom type; values of that type are
 * object ids.
 */

// CollapseType collapses a Type descriptor. A default value is checked
// against the descriptor it belongs to.
func CollapseType(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateType(block, stack); err != nil {
		return nil, false, err
	}
	if id, ok := block.(string); ok {
		return id, true, nil
	}
	m, discriminator, _ := tagged(block)
	out := pick(m, Fields(discriminator))

	var specs []FieldSpec
	switch discriminator {
	case SchemaDictionary:
		specs = []FieldSpec{{Name: "keyType", Collapse: CollapseType}, {Name: "valueType", Collapse: CollapseType}}
	case SchemaArray:
		specs = []FieldSpec{{Name: "elementType", Collapse: CollapseType}}
	case SchemaObject:
		specs = []FieldSpec{{Name: "properties", Collapse: CollapseTypeDictionary}}
	case SchemaID:
		specs = []FieldSpec{{Name: "of", Collapse: CollapseString}}
	}
	specs = append(specs, FieldSpec{Name: "internal", Collapse: CollapseBoolean, Optional: true})

	static, err := collapseSpecs(m, out, specs, stack)
	if err != nil {
		return nil, false, err
	}

	if def, ok := m["default"]; ok && def != nil {
		descriptor := pick(out, Fields(discriminator))
		delete(descriptor, "default")
		v, s, err := CollapseByType(descriptor)(def, stack.Push("default"))
		if err != nil {
			return nil, false, err
		}
		out["default"] = v
		static = static && s
	} else {
		delete(out, "default")
	}
	return out, static, nil
}

// CollapseTypeDictionary collapses a dictionary of Type descriptors.
func CollapseTypeDictionary(block any, stack types.Stack) (any, bool, error) {
	return CollapseDictionary(CollapseType)(block, stack)
}

// CollapseMethodType collapses {run, params?, returns?}. Methods are never
// static since run executes at call time.
func CollapseMethodType(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateMethodType(block, stack); err != nil {
		return nil, false, err
	}
	out, _, err := CollapseShape(block.(map[string]any), []FieldSpec{
		{Name: "run", Collapse: CollapseActions},
		{Name: "params", Collapse: CollapseDictionary(CollapseState), Optional: true},
		{Name: "returns", Collapse: CollapseType, Optional: true},
	}, stack)
	if err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// CollapseMethodTypeDictionary collapses a dictionary of methods.
func CollapseMethodTypeDictionary(block any, stack types.Stack) (any, bool, error) {
	return CollapseDictionary(CollapseMethodType)(block, stack)
}

// CollapseProperty collapses a Type descriptor carrying a value. The value is
// coerced by the descriptor.
func CollapseProperty(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateProperty(block, stack); err != nil {
		return nil, false, err
	}
	m, discriminator, _ := tagged(block)
	descriptor := pick(m, Fields(discriminator))
	collapsed, typeStatic, err := CollapseType(descriptor, stack)
	if err != nil {
		return nil, false, err
	}
	out := collapsed.(map[string]any)
	v, valueStatic, err := CollapseByType(out)(m["value"], stack.Push("value"))
	if err != nil {
		return nil, false, err
	}
	out = pick(out, Fields(discriminator))
	out["value"] = v
	return out, typeStatic && valueStatic, nil
}

// CollapsePropertyDictionary collapses a dictionary of properties.
func CollapsePropertyDictionary(block any, stack types.Stack) (any, bool, error) {
	return CollapseDictionary(CollapseProperty)(block, stack)
}

func schemaViolation(stack types.Stack, format string, args ...any) error {
	return types.NewBlockError(types.ErrSchemaViolation, stack, format, args...)
}

// asSchemaViolation reclassifies a kind mismatch as a schema violation; a
// value of the wrong kind for its declared Type breaks the schema rather than
// the block grammar.
func asSchemaViolation(err error) error {
	var be *types.BlockError
	if errors.Is(err, errKindMismatch) && errors.As(err, &be) {
		return &types.BlockError{Err: types.ErrSchemaViolation, Message: be.Message, Stack: be.Stack}
	}
	return err
}

// CollapseByType returns a collapser that coerces values to the collapsed
// Type descriptor schema.
func CollapseByType(schema any) CollapseFunc {
	return func(block any, stack types.Stack) (any, bool, error) {
		v, static, err := collapseByType(schema, block, stack)
		if err != nil {
			return nil, false, asSchemaViolation(err)
		}
		return v, static, nil
	}
}

func collapseByType(schema, block any, stack types.Stack) (any, bool, error) {
	if err := checkDepth(stack); err != nil {
		return nil, false, err
	}
	if _, ok := schema.(string); ok {
		if block == nil {
			return nil, false, schemaViolation(stack, "required value not provided")
		}
		return CollapseString(block, stack)
	}

	m, discriminator, ok := tagged(schema)
	if !ok {
		return nil, false, schemaViolation(stack, "invalid type descriptor")
	}
	if block == nil {
		def, has := m["default"]
		if !has || def == nil {
			return nil, false, schemaViolation(stack, "required value not provided")
		}
		block = def
	}

	switch discriminator {
	case SchemaDictionary:
		return CollapseDictionary(CollapseByType(m["valueType"]))(block, stack)
	case SchemaArray:
		return CollapseArray(CollapseByType(m["elementType"]))(block, stack)
	case SchemaObject:
		props, _ := m["properties"].(map[string]any)
		obj, isMap := block.(map[string]any)
		if !isMap {
			return nil, false, schemaViolation(stack, "expected object, got %s", describe(block))
		}
		if _, hasType := obj["_type"]; hasType {
			return nil, false, schemaViolation(stack, "expected object literal, got %q block", obj["_type"])
		}
		out := make(map[string]any, len(props))
		static := true
		for _, name := range sortedKeys(props) {
			v, s, err := CollapseByType(props[name])(obj[name], stack.Push(name))
			if err != nil {
				return nil, false, err
			}
			out[name] = v
			static = static && s
		}
		return out, static, nil
	case SchemaNumber:
		return CollapseNumber(block, stack)
	case SchemaBoolean:
		return CollapseBoolean(block, stack)
	case SchemaString, SchemaID:
		return CollapseString(block, stack)
	case SchemaItemStack:
		return CollapseItemStack(block, stack)
	case SchemaAction:
		return CollapseNodeAction(block, stack)
	default:
		return nil, false, types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown type %q", discriminator)
	}
}
