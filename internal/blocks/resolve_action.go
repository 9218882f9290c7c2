// internal/blocks/resolve_action.go
package blocks

import (
	"errors"
	"math"
	"strconv"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * Action execution.
 *
 * Actions run for effect. Control flow travels in the returned Outcome:
 * @return ends the enclosing action array and carries a value up to the
 * method call that started it; @break ends the enclosing array and is
 * consumed by the nearest repeat or forEach. Neither is ever an error.
 *
 * Loop bindings: forEach binds "index"/"element", repeat binds
 * "iteration", and event dispatch binds "iteration" to the payload, each
 * under a prefix reserved against the ambient environment.
 */

// Flow says how an action array finished.
type Flow int

const (
	// FlowNext means every action ran.
	FlowNext Flow = iota
	// FlowReturn means an @return ended the array.
	FlowReturn
	// FlowBreak means an @break ended the array.
	FlowBreak
)

// Outcome is the result of running an action or action array.
type Outcome struct {
	Flow  Flow
	Value any
}

var errNoCollaborator = errors.New("collaborator not configured")

// ResolveActions runs an action array in order, stopping at the first
// @return or @break. A single action block is accepted in place of an array.
func (e *Engine) ResolveActions(block any, env *Env, stack types.Stack) (Outcome, error) {
	if m, discriminator, ok := tagged(block); ok {
		kind, _ := KindOf(discriminator)
		switch {
		case kind == KindAction:
			return e.ResolveAction(block, env, stack)
		case discriminator == TypeMethod:
			if err := ValidateReference(block, stack); err != nil {
				return Outcome{}, err
			}
			_, err := e.callMethod(m, env, stack)
			return Outcome{}, err
		}
	}
	if err := ValidateArray(block, stack); err != nil {
		return Outcome{}, err
	}
	if list, ok := block.([]any); ok {
		for i, action := range list {
			out, err := e.ResolveAction(action, env, stack.Index(i))
			if err != nil {
				return Outcome{}, err
			}
			if out.Flow != FlowNext {
				return out, nil
			}
		}
		return Outcome{}, nil
	}
	if m, discriminator, ok := isReference(block); ok {
		return resolveReference[Outcome](e, m, discriminator, (*Engine).ResolveActions, env, stack)
	}
	outcomes, err := ResolveArray[Outcome]((*Engine).ResolveAction)(e, block, env, stack)
	if err != nil {
		return Outcome{}, err
	}
	for _, out := range outcomes {
		if out.Flow != FlowNext {
			return out, nil
		}
	}
	return Outcome{}, nil
}

// ResolveAction runs a single action.
func (e *Engine) ResolveAction(block any, env *Env, stack types.Stack) (Outcome, error) {
	if err := ValidateAction(block, stack); err != nil {
		return Outcome{}, err
	}
	m, discriminator, _ := tagged(block)
	switch discriminator {
	case ActionBranch:
		cond, err := e.ResolveBoolean(m["condition"], env, stack.Push("condition"))
		if err != nil {
			return Outcome{}, err
		}
		branch := "false"
		if cond {
			branch = "true"
		}
		if m[branch] == nil {
			return Outcome{}, nil
		}
		return e.ResolveActions(m[branch], env, stack.Push(branch))

	case ActionForEach:
		items, err := ResolveArray[any]((*Engine).ResolveState)(e, m["array"], env, stack.Push("array"))
		if err != nil {
			return Outcome{}, err
		}
		iter := env.scope("index", "element")
		for i, item := range items {
			out, err := e.ResolveActions(m["forEach"], iter.bind(float64(i), item), stack.Push("forEach"))
			if err != nil {
				return Outcome{}, err
			}
			if out.Flow == FlowBreak {
				break
			}
			if out.Flow == FlowReturn {
				return out, nil
			}
		}
		return Outcome{}, nil

	case ActionRepeat:
		n, err := e.ResolveNumber(m["iterations"], env, stack.Push("iterations"))
		if err != nil {
			return Outcome{}, err
		}
		count := int(math.Floor(n))
		if count > e.maxRepeatIterations {
			return Outcome{}, types.NewBlockError(types.ErrTooManyIterations, stack.Push("iterations"), "repeat of %d exceeds %d", count, e.maxRepeatIterations)
		}
		iter := env.scope("iteration")
		for i := 0; i < count; i++ {
			out, err := e.ResolveActions(m["run"], iter.bind(float64(i)), stack.Push("run"))
			if err != nil {
				return Outcome{}, err
			}
			if out.Flow == FlowBreak {
				break
			}
			if out.Flow == FlowReturn {
				return out, nil
			}
		}
		return Outcome{}, nil

	case ActionWait:
		node := ""
		if m["node"] != nil {
			var err error
			if node, err = e.ResolveString(m["node"], env, stack.Push("node")); err != nil {
				return Outcome{}, err
			}
		}
		duration, err := e.ResolveNumber(m["duration"], env, stack.Push("duration"))
		if err != nil {
			return Outcome{}, err
		}
		if e.scheduler == nil {
			e.logger.Debug("wait ignored without scheduler", "node", node, "duration", duration)
			return Outcome{}, nil
		}
		e.scheduler.Wait(node, duration)
		return Outcome{}, nil

	case ActionAddItemsToInventory:
		node, err := e.ResolveString(m["node"], env, stack.Push("node"))
		if err != nil {
			return Outcome{}, err
		}
		stacks, err := ResolveArray[types.ItemStack]((*Engine).ResolveItemStack)(e, m["items"], env, stack.Push("items"))
		if err != nil {
			return Outcome{}, err
		}
		if e.inventories == nil {
			return Outcome{}, wrapAt(errNoCollaborator, stack, "no inventory attached")
		}
		if err := e.inventories.AddItems(node, stacks); err != nil {
			return Outcome{}, wrapAt(err, stack, err.Error())
		}
		return Outcome{}, nil

	case ActionSetData:
		object, err := e.ResolveObject(m["object"], env, stack.Push("object"))
		if err != nil {
			return Outcome{}, err
		}
		if literal, ok := m["object"].(map[string]any); ok && literal["_type"] == nil {
			// An inline literal belongs to the block tree; write to a copy.
			object = cloneValue(object).(map[string]any)
		}
		key, err := e.ResolveString(m["key"], env, stack.Push("key"))
		if err != nil {
			return Outcome{}, err
		}
		if key == "_base" {
			return Outcome{}, invalid(stack.Push("key"), "_base cannot be overwritten")
		}
		value, err := e.ResolveState(m["value"], env, stack.Push("value"))
		if err != nil {
			return Outcome{}, err
		}
		object[key] = value
		return Outcome{}, nil

	case ActionAddNode:
		nodeType, err := e.ResolveString(m["nodeType"], env, stack.Push("nodeType"))
		if err != nil {
			return Outcome{}, err
		}
		pos, err := e.ResolvePosition(m["pos"], env, stack.Push("pos"))
		if err != nil {
			return Outcome{}, err
		}
		var data any
		if m["data"] != nil {
			if data, err = e.ResolveState(m["data"], env, stack.Push("data")); err != nil {
				return Outcome{}, err
			}
		}
		if e.board == nil {
			return Outcome{}, wrapAt(errNoCollaborator, stack, "no board attached")
		}
		e.board.AddNode(types.Node{ID: e.board.NextNodeID(), Position: pos, Type: nodeType, State: data})
		return Outcome{}, nil

	case ActionRemoveNode:
		id, err := e.ResolveNumber(m["node"], env, stack.Push("node"))
		if err != nil {
			return Outcome{}, err
		}
		if id != math.Trunc(id) {
			return Outcome{}, invalid(stack.Push("node"), "node id %v is not an integer", id)
		}
		if e.board == nil {
			return Outcome{}, wrapAt(errNoCollaborator, stack, "no board attached")
		}
		if !e.board.RemoveNode(int(id)) {
			return Outcome{}, types.NewBlockError(types.ErrNodeNotFound, stack.Push("node"), "node %d does not exist", int(id))
		}
		return Outcome{}, nil

	case ActionEvent:
		name, err := e.ResolveString(m["event"], env, stack.Push("event"))
		if err != nil {
			return Outcome{}, err
		}
		var payload any
		if m["data"] != nil {
			if payload, err = e.ResolveState(m["data"], env, stack.Push("data")); err != nil {
				return Outcome{}, err
			}
		}
		return Outcome{}, e.Emit(name, payload)

	case ActionError:
		message, err := e.ResolveString(m["message"], env, stack.Push("message"))
		if err != nil {
			return Outcome{}, err
		}
		e.logger.Error(message, "stack", stack.String())
		return Outcome{}, nil

	case ActionReturn:
		var value any
		if m["value"] != nil {
			var err error
			if value, err = e.ResolveState(m["value"], env, stack.Push("value")); err != nil {
				return Outcome{}, err
			}
		}
		return Outcome{Flow: FlowReturn, Value: value}, nil

	case ActionBreak:
		return Outcome{Flow: FlowBreak}, nil

	case TypeMethod:
		_, err := e.callMethod(m, env, stack)
		return Outcome{}, err

	default:
		return resolveReference[Outcome](e, m, discriminator, (*Engine).ResolveActions, env, stack)
	}
}

// Emit dispatches event to every registered listener in registration order.
// Each listener runs in a fresh environment built from the root bindings
// with the payload bound as "iteration". A failing listener is logged and
// the remaining listeners still run. Emit itself fails only when event
// nesting exceeds the call depth limit.
func (e *Engine) Emit(event string, payload any) error {
	if e.listeners == nil {
		return nil
	}
	stack := types.Stack{"eventListeners", event}
	if err := e.enter(stack); err != nil {
		e.logger.Error("event dispatch aborted", "event", event, "error", err)
		return err
	}
	defer e.leave()

	for i, listener := range e.listeners.Listeners(event) {
		root := e.RootEnv()
		env := root.scope("iteration").bind(payload)
		if _, err := e.ResolveActions(listener, env, stack.Push(strconv.Itoa(i))); err != nil {
			e.logger.Error("event listener failed", "event", event, "listener", i, "error", err)
		}
	}
	return nil
}

// wrapAt tags a collaborator error with the action's stack.
func wrapAt(err error, stack types.Stack, message string) error {
	return &types.BlockError{Err: err, Message: message, Stack: stack.Push()}
}
