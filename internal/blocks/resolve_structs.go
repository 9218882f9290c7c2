package blocks

import (
	"github.com/solatis/alkatest/internal/types"
)

// ResolvePosition resolves {x, y} or a reference to one.
func (e *Engine) ResolvePosition(block any, env *Env, stack types.Stack) (types.Position, error) {
	if err := ValidatePosition(block, stack); err != nil {
		return types.Position{}, err
	}
	m, discriminator, ok := tagged(block)
	if ok {
		return resolveReference[types.Position](e, m, discriminator, (*Engine).ResolvePosition, env, stack)
	}
	x, err := e.ResolveNumber(m["x"], env, stack.Push("x"))
	if err != nil {
		return types.Position{}, err
	}
	y, err := e.ResolveNumber(m["y"], env, stack.Push("y"))
	if err != nil {
		return types.Position{}, err
	}
	return types.Position{X: x, Y: y}, nil
}

// ResolveSize resolves a Size. A number n is the square n by n.
func (e *Engine) ResolveSize(block any, env *Env, stack types.Stack) (types.Size, error) {
	if err := ValidateSize(block, stack); err != nil {
		return types.Size{}, err
	}
	if n, ok := toFloat64(block); ok {
		return types.Size{Width: n, Height: n}, nil
	}
	m, discriminator, ok := tagged(block)
	if ok {
		if kind, _ := KindOf(discriminator); kind == KindNumber {
			n, err := e.ResolveNumber(block, env, stack)
			if err != nil {
				return types.Size{}, err
			}
			return types.Size{Width: n, Height: n}, nil
		}
		return resolveReference[types.Size](e, m, discriminator, (*Engine).ResolveSize, env, stack)
	}
	w, err := e.ResolveNumber(m["width"], env, stack.Push("width"))
	if err != nil {
		return types.Size{}, err
	}
	h, err := e.ResolveNumber(m["height"], env, stack.Push("height"))
	if err != nil {
		return types.Size{}, err
	}
	return types.Size{Width: w, Height: h}, nil
}

// ResolveInventory resolves an Inventory. Absent permissions default to true.
func (e *Engine) ResolveInventory(block any, env *Env, stack types.Stack) (types.Inventory, error) {
	if err := ValidateInventory(block, stack); err != nil {
		return types.Inventory{}, err
	}
	m := block.(map[string]any)
	slots, err := e.ResolveNumber(m["slots"], env, stack.Push("slots"))
	if err != nil {
		return types.Inventory{}, err
	}
	inv := types.Inventory{Slots: int(slots), CanPlayerExtract: true, CanPlayerInsert: true}
	if m["canPlayerExtract"] != nil {
		if inv.CanPlayerExtract, err = e.ResolveBoolean(m["canPlayerExtract"], env, stack.Push("canPlayerExtract")); err != nil {
			return types.Inventory{}, err
		}
	}
	if m["canPlayerInsert"] != nil {
		if inv.CanPlayerInsert, err = e.ResolveBoolean(m["canPlayerInsert"], env, stack.Push("canPlayerInsert")); err != nil {
			return types.Inventory{}, err
		}
	}
	return inv, nil
}

// ResolveItemStack resolves {item, quantity} or a reference to one.
func (e *Engine) ResolveItemStack(block any, env *Env, stack types.Stack) (types.ItemStack, error) {
	if err := ValidateItemStack(block, stack); err != nil {
		return types.ItemStack{}, err
	}
	m, discriminator, ok := tagged(block)
	if ok {
		return resolveReference[types.ItemStack](e, m, discriminator, (*Engine).ResolveItemStack, env, stack)
	}
	item, err := e.ResolveString(m["item"], env, stack.Push("item"))
	if err != nil {
		return types.ItemStack{}, err
	}
	quantity, err := e.ResolveNumber(m["quantity"], env, stack.Push("quantity"))
	if err != nil {
		return types.ItemStack{}, err
	}
	return types.ItemStack{Item: item, Quantity: quantity}, nil
}

// ResolveNodeAction resolves the descriptive fields of a NodeAction. Run is
// carried through unresolved; it executes only when the action fires.
func (e *Engine) ResolveNodeAction(block any, env *Env, stack types.Stack) (types.NodeAction, error) {
	if err := ValidateNodeAction(block, stack); err != nil {
		return types.NodeAction{}, err
	}
	m := block.(map[string]any)
	display, err := e.ResolveString(m["display"], env, stack.Push("display"))
	if err != nil {
		return types.NodeAction{}, err
	}
	duration, err := e.ResolveNumber(m["duration"], env, stack.Push("duration"))
	if err != nil {
		return types.NodeAction{}, err
	}
	action := types.NodeAction{Display: display, Duration: duration, Run: m["run"]}
	if m["cost"] != nil {
		action.Cost, err = ResolveDictionary[types.ItemStack]((*Engine).ResolveItemStack)(e, m["cost"], env, stack.Push("cost"))
		if err != nil {
			return types.NodeAction{}, err
		}
	}
	if m["tooltip"] != nil {
		if action.Tooltip, err = e.ResolveString(m["tooltip"], env, stack.Push("tooltip")); err != nil {
			return types.NodeAction{}, err
		}
	}
	return action, nil
}
