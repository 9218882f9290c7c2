package blocks

import (
	"github.com/solatis/alkatest/internal/types"
)

// CollapseAction validates and whitelists an Action block. Actions run for
// their effects, so they are never static; their value children still fold.
func CollapseAction(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateAction(block, stack); err != nil {
		return nil, false, err
	}
	m, discriminator, _ := tagged(block)
	out := pick(m, Fields(discriminator))

	var fields []FieldSpec
	add := func(key string, fn CollapseFunc, optional bool) {
		fields = append(fields, FieldSpec{Name: key, Collapse: fn, Optional: optional})
	}

	switch discriminator {
	case ActionBranch:
		add("condition", CollapseBoolean, false)
		add("true", CollapseActions, true)
		add("false", CollapseActions, true)
	case ActionForEach:
		add("array", CollapseArray(CollapseState), false)
		add("forEach", CollapseActions, false)
	case ActionRepeat:
		add("iterations", CollapseNumber, false)
		add("run", CollapseActions, false)
	case ActionWait:
		add("node", CollapseString, true)
		add("duration", CollapseNumber, false)
	case ActionAddItemsToInventory:
		add("node", CollapseString, false)
		add("items", CollapseArray(CollapseItemStack), false)
	case ActionSetData:
		add("object", CollapseObject, false)
		add("key", CollapseString, false)
		add("value", CollapseState, false)
	case ActionAddNode:
		add("nodeType", CollapseString, false)
		add("pos", CollapsePosition, false)
		add("data", CollapseState, true)
	case ActionRemoveNode:
		add("node", CollapseNumber, false)
	case ActionEvent:
		add("event", CollapseString, false)
		add("data", CollapseState, true)
	case ActionError:
		add("message", CollapseString, false)
	case ActionReturn:
		add("value", CollapseState, true)
	case ActionBreak:
	default:
		return collapseReference(m, discriminator, CollapseActions, stack)
	}

	if _, err := collapseSpecs(m, out, fields, stack); err != nil {
		return nil, false, err
	}
	return out, false, nil
}

// CollapseActions collapses an action array. A single action block is
// accepted in place of a one-element array.
func CollapseActions(block any, stack types.Stack) (any, bool, error) {
	if _, discriminator, ok := tagged(block); ok {
		if kind, known := KindOf(discriminator); known && kind == KindAction {
			return CollapseAction(block, stack)
		}
	}
	v, _, err := CollapseArray(CollapseAction)(block, stack)
	return v, false, err
}

// CollapsePosition collapses {x, y} or a reference.
func CollapsePosition(block any, stack types.Stack) (any, bool, error) {
	if err := ValidatePosition(block, stack); err != nil {
		return nil, false, err
	}
	m, discriminator, ok := tagged(block)
	if ok {
		return collapseReference(m, discriminator, CollapsePosition, stack)
	}
	out := pick(m, ShapeFields(ShapePosition))
	static, err := collapseFields(m, out, CollapseNumber, stack, "x", "y")
	if err != nil {
		return nil, false, err
	}
	return out, static, nil
}

// CollapseSize collapses a Size block. Numeric forms are kept as numbers;
// the resolver expands them to squares.
func CollapseSize(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateSize(block, stack); err != nil {
		return nil, false, err
	}
	if n, ok := toFloat64(block); ok {
		return n, true, nil
	}
	m, discriminator, ok := tagged(block)
	if ok {
		if kind, _ := KindOf(discriminator); kind == KindNumber {
			return CollapseNumber(block, stack)
		}
		return collapseReference(m, discriminator, CollapseSize, stack)
	}
	out := pick(m, ShapeFields(ShapeSize))
	static, err := collapseFields(m, out, CollapseNumber, stack, "width", "height")
	if err != nil {
		return nil, false, err
	}
	return out, static, nil
}

// CollapseInventory collapses {slots, canPlayerExtract?, canPlayerInsert?}.
func CollapseInventory(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateInventory(block, stack); err != nil {
		return nil, false, err
	}
	m := block.(map[string]any)
	out := pick(m, ShapeFields(ShapeInventory))
	static, err := collapseField(m, out, "slots", CollapseNumber, stack)
	if err != nil {
		return nil, false, err
	}
	for _, key := range []string{"canPlayerExtract", "canPlayerInsert"} {
		s, err := collapseOptional(m, out, key, CollapseBoolean, stack)
		if err != nil {
			return nil, false, err
		}
		static = static && s
	}
	return out, static, nil
}

// CollapseItemStack collapses {item, quantity} or a reference.
func CollapseItemStack(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateItemStack(block, stack); err != nil {
		return nil, false, err
	}
	m, discriminator, ok := tagged(block)
	if ok {
		return collapseReference(m, discriminator, CollapseItemStack, stack)
	}
	out := pick(m, ShapeFields(ShapeItemStack))
	itemStatic, err := collapseField(m, out, "item", CollapseString, stack)
	if err != nil {
		return nil, false, err
	}
	quantityStatic, err := collapseField(m, out, "quantity", CollapseNumber, stack)
	if err != nil {
		return nil, false, err
	}
	return out, itemStatic && quantityStatic, nil
}

// CollapseNodeAction collapses a NodeAction. The run actions never count
// against static-ness; they are executed lazily when the action fires.
func CollapseNodeAction(block any, stack types.Stack) (any, bool, error) {
	if err := ValidateNodeAction(block, stack); err != nil {
		return nil, false, err
	}
	m := block.(map[string]any)
	out := pick(m, ShapeFields(ShapeNodeAction))
	static, err := collapseSpecs(m, out, []FieldSpec{
		{Name: "cost", Collapse: CollapseDictionary(CollapseItemStack), Optional: true},
		{Name: "display", Collapse: CollapseString},
		{Name: "duration", Collapse: CollapseNumber},
		{Name: "tooltip", Collapse: CollapseString, Optional: true},
	}, stack)
	if err != nil {
		return nil, false, err
	}
	if _, err := collapseField(m, out, "run", CollapseActions, stack); err != nil {
		return nil, false, err
	}
	return out, static, nil
}

// CollapseNodeActionDictionary collapses a dictionary of node actions.
func CollapseNodeActionDictionary(block any, stack types.Stack) (any, bool, error) {
	return CollapseDictionary(CollapseNodeAction)(block, stack)
}

// FieldSpec describes one field of an undiscriminated shape.
type FieldSpec struct {
	Name     string
	Collapse CollapseFunc
	Optional bool
}

func collapseSpecs(m, out map[string]any, specs []FieldSpec, stack types.Stack) (bool, error) {
	static := true
	for _, spec := range specs {
		var s bool
		var err error
		if spec.Optional {
			s, err = collapseOptional(m, out, spec.Name, spec.Collapse, stack)
		} else {
			s, err = collapseField(m, out, spec.Name, spec.Collapse, stack)
		}
		if err != nil {
			return false, err
		}
		static = static && s
	}
	return static, nil
}

// CollapseShape whitelists m to the fields named by specs and collapses each
// of them. Required fields that are missing fail validation.
func CollapseShape(m map[string]any, specs []FieldSpec, stack types.Stack) (map[string]any, bool, error) {
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	out := pick(m, names)
	static, err := collapseSpecs(m, out, specs, stack)
	if err != nil {
		return nil, false, err
	}
	return out, static, nil
}
