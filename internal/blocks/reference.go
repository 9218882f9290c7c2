// internal/blocks/reference.go
package blocks

import (
	"github.com/solatis/alkatest/internal/types"
)

/*
 * Reference blocks.
 *
 * method, property, getContext/getObject and ternary are valid wherever any
 * value kind is expected. resolveReference performs the indirection and then
 * hands the located block to fn, the resolver of the kind the caller wants.
 *
 * Dispatch for method and property checks the object's _base (its declaring
 * custom type) first and falls back to a same-named field on the object.
 */

func resolveReference[T any](e *Engine, m map[string]any, discriminator string, fn ResolveFunc[T], env *Env, stack types.Stack) (T, error) {
	var zero T
	switch discriminator {
	case TypeMethod:
		out, err := e.callMethod(m, env, stack)
		if err != nil {
			return zero, err
		}
		if out.Flow != FlowReturn || out.Value == nil {
			return zero, types.NewBlockError(types.ErrNoReturnValue, stack, "method finished without @return")
		}
		return fn(e, out.Value, env, stack)
	case TypeProperty:
		object, err := e.ResolveObject(m["object"], env, stack.Push("object"))
		if err != nil {
			return zero, err
		}
		name, err := e.ResolveString(m["property"], env, stack.Push("property"))
		if err != nil {
			return zero, err
		}
		value, err := lookupProperty(object, name, stack)
		if err != nil {
			return zero, err
		}
		return fn(e, value, env, stack.Push(name))
	case TypeGetContext, TypeGetObject:
		id, err := e.ResolveString(m["id"], env, stack.Push("id"))
		if err != nil {
			return zero, err
		}
		value, ok := env.Lookup(id)
		if !ok {
			return zero, types.NewBlockError(types.ErrContextKeyNotFound, stack, "context has no entry %q", id)
		}
		return fn(e, value, env, stack.Push(id))
	case TypeTernary:
		cond, err := e.ResolveBoolean(m["condition"], env, stack.Push("condition"))
		if err != nil {
			return zero, err
		}
		branch := "false"
		if cond {
			branch = "true"
		}
		return fn(e, m[branch], env, stack.Push(branch))
	default:
		return zero, types.NewBlockError(types.ErrUnknownBlockType, stack, "unknown block type %q", discriminator)
	}
}

// callMethod resolves and runs a method block. The body runs in env extended
// with the method's declared default params, overridden by the call's params.
func (e *Engine) callMethod(m map[string]any, env *Env, stack types.Stack) (Outcome, error) {
	object, err := e.ResolveObject(m["object"], env, stack.Push("object"))
	if err != nil {
		return Outcome{}, err
	}
	name, err := e.ResolveString(m["method"], env, stack.Push("method"))
	if err != nil {
		return Outcome{}, err
	}
	params := map[string]any{}
	if m["params"] != nil {
		params, err = ResolveDictionary[any]((*Engine).ResolveState)(e, m["params"], env, stack.Push("params"))
		if err != nil {
			return Outcome{}, err
		}
	}

	run, defaults, err := lookupMethod(object, name, stack)
	if err != nil {
		return Outcome{}, err
	}
	bindings := map[string]any{}
	if defaults != nil {
		declared, err := ResolveDictionary[any]((*Engine).ResolveState)(e, defaults, env, stack.Push(name, "params"))
		if err != nil {
			return Outcome{}, err
		}
		for k, v := range declared {
			bindings[k] = v
		}
	}
	for k, v := range params {
		bindings[k] = v
	}

	if err := e.enter(stack); err != nil {
		return Outcome{}, err
	}
	defer e.leave()
	return e.ResolveActions(run, env.With(bindings), stack.Push(name))
}

func lookupMethod(object map[string]any, name string, stack types.Stack) (run, params any, err error) {
	if base, ok := object["_base"].(Base); ok {
		if method, ok := base.Method(name); ok {
			return method["run"], method["params"], nil
		}
	}
	if name != "_base" {
		if run, ok := object[name]; ok && run != nil {
			return run, nil, nil
		}
	}
	return nil, nil, types.NewBlockError(types.ErrMethodNotFound, stack, "object has no method %q", name)
}

func lookupProperty(object map[string]any, name string, stack types.Stack) (any, error) {
	if base, ok := object["_base"].(Base); ok {
		if prop, ok := base.Property(name); ok {
			return prop["value"], nil
		}
	}
	if name != "_base" {
		if v, ok := object[name]; ok && v != nil {
			return v, nil
		}
	}
	return nil, types.NewBlockError(types.ErrPropertyNotFound, stack, "object has no property %q", name)
}

func hasProperty(object map[string]any, name string) bool {
	_, err := lookupProperty(object, name, nil)
	return err == nil
}
