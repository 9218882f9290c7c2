// internal/blocks/resolve.go
package blocks

import (
	"math"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Runtime resolution of value blocks.
 *
 * Every resolver validates the block it is given before looking inside, so
 * blocks that never went through collapse (tests, the REPL) fail the same
 * way collapsed ones would. Value resolvers have no side effects of their
 * own; effects happen only when a method call runs actions.
 *
 * Iteration bindings for filter and map are "index" and "element" under a
 * reserved prefix negotiated with Env.ReservePrefix.
 */

// ResolveFunc resolves a block to a T in an environment.
type ResolveFunc[T any] func(e *Engine, block any, env *Env, stack types.Stack) (T, error)

// widen adapts a typed resolver to produce any.
func widen[T any](fn ResolveFunc[T]) ResolveFunc[any] {
	return func(e *Engine, block any, env *Env, stack types.Stack) (any, error) {
		return fn(e, block, env, stack)
	}
}

// Entry is a resolved createDictionary entry.
type Entry[T any] struct {
	Key   string
	Value T
}

func isReference(block any) (map[string]any, string, bool) {
	m, discriminator, ok := tagged(block)
	if !ok {
		return nil, "", false
	}
	kind, known := KindOf(discriminator)
	return m, discriminator, known && kind == KindReference
}

// ResolveString resolves a String block.
func (e *Engine) ResolveString(block any, env *Env, stack types.Stack) (string, error) {
	if err := ValidateString(block, stack); err != nil {
		return "", err
	}
	if s, ok := block.(string); ok {
		return s, nil
	}
	m, discriminator, _ := tagged(block)
	switch discriminator {
	case TypeConcat:
		parts, err := ResolveArray[string]((*Engine).ResolveString)(e, m["operands"], env, stack.Push("operands"))
		if err != nil {
			return "", err
		}
		return concat(parts), nil
	default:
		return resolveReference[string](e, m, discriminator, (*Engine).ResolveString, env, stack)
	}
}

// ResolveNumber resolves a Number block. random and randomInt draw from
// [min, max) using the engine's random source.
func (e *Engine) ResolveNumber(block any, env *Env, stack types.Stack) (float64, error) {
	if err := ValidateNumber(block, stack); err != nil {
		return 0, err
	}
	if n, ok := toFloat64(block); ok {
		return n, nil
	}
	m, discriminator, _ := tagged(block)
	switch discriminator {
	case TypeAddition, TypeSubtraction:
		operands, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, m["operands"], env, stack.Push("operands"))
		if err != nil {
			return 0, err
		}
		if discriminator == TypeAddition {
			return sum(operands), nil
		}
		if len(operands) == 0 {
			return 0, invalid(stack.Push("operands"), "subtraction needs at least one operand")
		}
		return difference(operands), nil
	case TypeRandom, TypeRandomInt:
		lo, err := e.ResolveNumber(m["min"], env, stack.Push("min"))
		if err != nil {
			return 0, err
		}
		hi, err := e.ResolveNumber(m["max"], env, stack.Push("max"))
		if err != nil {
			return 0, err
		}
		n := lo + e.random()*(hi-lo)
		if discriminator == TypeRandomInt {
			n = math.Floor(n)
		}
		return n, nil
	default:
		return resolveReference[float64](e, m, discriminator, (*Engine).ResolveNumber, env, stack)
	}
}

// ResolveBoolean resolves a Boolean block.
func (e *Engine) ResolveBoolean(block any, env *Env, stack types.Stack) (bool, error) {
	if err := ValidateBoolean(block, stack); err != nil {
		return false, err
	}
	if b, ok := block.(bool); ok {
		return b, nil
	}
	m, discriminator, _ := tagged(block)
	operands := stack.Push("operands")
	switch discriminator {
	case TypeEquals, TypeNotEquals:
		values, err := ResolveArray[any]((*Engine).ResolveState)(e, m["operands"], env, operands)
		if err != nil {
			return false, err
		}
		if discriminator == TypeEquals {
			return allEqual(values), nil
		}
		return noAdjacentEqual(values), nil
	case TypeLessThan, TypeLessThanOrEqual, TypeGreaterThan, TypeGreaterThanOrEqual:
		values, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, m["operands"], env, operands)
		if err != nil {
			return false, err
		}
		return compareChain(discriminator, values), nil
	case TypeAll, TypeAny, TypeNone:
		values, err := ResolveArray[bool]((*Engine).ResolveBoolean)(e, m["operands"], env, operands)
		if err != nil {
			return false, err
		}
		return combine(discriminator, values), nil
	case TypeContextExists:
		id, err := e.ResolveString(m["object"], env, stack.Push("object"))
		if err != nil {
			return false, err
		}
		return env.Has(id), nil
	case TypePropertyExists:
		object, err := e.ResolveObject(m["object"], env, stack.Push("object"))
		if err != nil {
			return false, err
		}
		name, err := e.ResolveString(m["property"], env, stack.Push("property"))
		if err != nil {
			return false, err
		}
		return hasProperty(object, name), nil
	default:
		return resolveReference[bool](e, m, discriminator, (*Engine).ResolveBoolean, env, stack)
	}
}

// ResolveObject resolves an Object block to a live map. Mutations through the
// returned map (setData) are visible to every holder of the object. A string
// names a context entry.
func (e *Engine) ResolveObject(block any, env *Env, stack types.Stack) (map[string]any, error) {
	if err := ValidateObject(block, stack); err != nil {
		return nil, err
	}
	if id, ok := block.(string); ok {
		v, found := env.Lookup(id)
		if !found {
			return nil, types.NewBlockError(types.ErrContextKeyNotFound, stack, "context has no entry %q", id)
		}
		object, isMap := v.(map[string]any)
		if !isMap {
			return nil, mismatch(stack, "context entry %q is %s, not an object", id, describe(v))
		}
		return object, nil
	}
	m, discriminator, ok := tagged(block)
	if !ok {
		return m, nil
	}
	return resolveReference[map[string]any](e, m, discriminator, (*Engine).ResolveObject, env, stack)
}

// ResolveState resolves a block of any value kind. References are dispatched
// once so their side effects run once, and custom objects (maps carrying a
// _base) are returned live. Other blocks go through the ordered attempts
// String, Number, Boolean, Array, Dictionary, Object.
func (e *Engine) ResolveState(block any, env *Env, stack types.Stack) (any, error) {
	if m, discriminator, ok := isReference(block); ok {
		if err := ValidateReference(block, stack); err != nil {
			return nil, err
		}
		return resolveReference[any](e, m, discriminator, (*Engine).ResolveState, env, stack)
	}
	if m, ok := block.(map[string]any); ok && m["_base"] != nil {
		return e.ResolveObject(m, env, stack)
	}
	return firstResolve(e, block, env, stack,
		widen[string]((*Engine).ResolveString),
		widen[float64]((*Engine).ResolveNumber),
		widen[bool]((*Engine).ResolveBoolean),
		widen[[]any](ResolveArray[any]((*Engine).ResolveState)),
		widen[map[string]any](ResolveDictionary[any]((*Engine).ResolveState)),
		widen[map[string]any]((*Engine).ResolveObject),
	)
}

// firstResolve is the runtime ordered-attempt combinator; see firstCollapse.
func firstResolve(e *Engine, block any, env *Env, stack types.Stack, attempts ...ResolveFunc[any]) (any, error) {
	for _, attempt := range attempts {
		v, err := attempt(e, block, env, stack)
		if err == nil {
			return v, nil
		}
		if telling(err, stack) {
			return nil, err
		}
	}
	return nil, mismatch(stack, "block could not resolve to any state")
}

// ResolveArray returns a resolver for Array<T> given T's resolver.
func ResolveArray[T any](fn ResolveFunc[T]) ResolveFunc[[]T] {
	return func(e *Engine, block any, env *Env, stack types.Stack) ([]T, error) {
		if err := ValidateArray(block, stack); err != nil {
			return nil, err
		}
		if list, ok := block.([]any); ok {
			out := make([]T, 0, len(list))
			for i, el := range list {
				v, err := fn(e, el, env, stack.Index(i))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		}

		m, discriminator, _ := tagged(block)
		switch discriminator {
		case TypeFilter:
			snapshot, err := ResolveArray[any]((*Engine).ResolveState)(e, m["array"], env, stack.Push("array"))
			if err != nil {
				return nil, err
			}
			iter := env.scope("index", "element")
			keep := make([]bool, len(snapshot))
			for i := len(snapshot) - 1; i >= 0; i-- {
				ok, err := e.ResolveBoolean(m["condition"], iter.bind(float64(i), snapshot[i]), stack.Push("condition"))
				if err != nil {
					return nil, err
				}
				keep[i] = ok
			}
			out := make([]T, 0, len(snapshot))
			for i, el := range snapshot {
				if !keep[i] {
					continue
				}
				v, err := fn(e, el, env, stack.Push("array").Index(i))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		case TypeMap:
			source, err := ResolveArray[any]((*Engine).ResolveState)(e, m["array"], env, stack.Push("array"))
			if err != nil {
				return nil, err
			}
			iter := env.scope("index", "element")
			out := make([]T, 0, len(source))
			for i, el := range source {
				v, err := fn(e, m["value"], iter.bind(float64(i), el), stack.Push("value"))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		case TypeKeys:
			dict, err := ResolveDictionary[any]((*Engine).ResolveState)(e, m["dictionary"], env, stack.Push("dictionary"))
			if err != nil {
				return nil, err
			}
			out := make([]T, 0, len(dict))
			for _, key := range sortedKeys(dict) {
				v, err := fn(e, key, env, stack.Push("dictionary", key))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		case TypeValues:
			// Resolved as Dictionary<State> and converted per value, so that
			// Array<T> never instantiates Dictionary<T>.
			dict, err := ResolveDictionary[any]((*Engine).ResolveState)(e, m["dictionary"], env, stack.Push("dictionary"))
			if err != nil {
				return nil, err
			}
			out := make([]T, 0, len(dict))
			for _, key := range sortedKeys(dict) {
				v, err := fn(e, dict[key], env, stack.Push("dictionary", key))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
			return out, nil
		default:
			return resolveReference[[]T](e, m, discriminator, ResolveArray[T](fn), env, stack)
		}
	}
}

// ResolveDictionary returns a resolver for Dictionary<T> given T's resolver.
func ResolveDictionary[T any](fn ResolveFunc[T]) ResolveFunc[map[string]T] {
	return func(e *Engine, block any, env *Env, stack types.Stack) (map[string]T, error) {
		if err := ValidateDictionary(block, stack); err != nil {
			return nil, err
		}
		m, discriminator, ok := tagged(block)
		if !ok {
			out := make(map[string]T, len(m))
			for _, key := range sortedKeys(m) {
				v, err := fn(e, m[key], env, stack.Push(key))
				if err != nil {
					return nil, err
				}
				out[key] = v
			}
			return out, nil
		}
		switch discriminator {
		case TypeCreateDictionary:
			entries, err := ResolveArray[Entry[T]](resolveEntry[T](fn))(e, m["entries"], env, stack.Push("entries"))
			if err != nil {
				return nil, err
			}
			out := make(map[string]T, len(entries))
			for _, entry := range entries {
				out[entry.Key] = entry.Value
			}
			return out, nil
		default:
			return resolveReference[map[string]T](e, m, discriminator, ResolveDictionary[T](fn), env, stack)
		}
	}
}

func resolveEntry[T any](fn ResolveFunc[T]) ResolveFunc[Entry[T]] {
	return func(e *Engine, block any, env *Env, stack types.Stack) (Entry[T], error) {
		if err := ValidateEntry(block, stack); err != nil {
			return Entry[T]{}, err
		}
		m := block.(map[string]any)
		key, err := e.ResolveString(m["key"], env, stack.Push("key"))
		if err != nil {
			return Entry[T]{}, err
		}
		value, err := fn(e, m["value"], env, stack.Push("value"))
		if err != nil {
			return Entry[T]{}, err
		}
		return Entry[T]{Key: key, Value: value}, nil
	}
}
