// internal/packs/views.go
package packs

import (
	"errors"
	"fmt"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/types"
)

// ErrUnknownEntity marks a view or placement request for an id the registry
// does not hold.
var ErrUnknownEntity = errors.New("unknown entity")

// ItemView is an item type resolved for display.
type ItemView struct {
	ID           string  `json:"id"`
	Display      string  `json:"display"`
	Node         string  `json:"node,omitempty"`
	MaxStackSize float64 `json:"maxStackSize,omitempty"`
}

// NodeView is a node type resolved for display.
type NodeView struct {
	ID        string                      `json:"id"`
	Display   string                      `json:"display"`
	Size      types.Size                  `json:"size"`
	Draggable bool                        `json:"draggable"`
	Inventory *types.Inventory            `json:"inventory,omitempty"`
	Actions   map[string]types.NodeAction `json:"actions,omitempty"`
}

// ItemView resolves the item type id. A zero MaxStackSize means unbounded.
func (r *Registry) ItemView(e *blocks.Engine, id string) (ItemView, error) {
	item, ok := r.Items[id]
	if !ok {
		return ItemView{}, fmt.Errorf("%w: item %q", ErrUnknownEntity, id)
	}
	env := e.RootEnv()
	stack := types.Stack{CategoryItems, id}

	view := ItemView{ID: id}
	var err error
	if view.Display, err = e.ResolveString(item["display"], env, stack.Push("display")); err != nil {
		return ItemView{}, err
	}
	if item["node"] != nil {
		if view.Node, err = e.ResolveString(item["node"], env, stack.Push("node")); err != nil {
			return ItemView{}, err
		}
	}
	if item["maxStackSize"] != nil {
		if view.MaxStackSize, err = e.ResolveNumber(item["maxStackSize"], env, stack.Push("maxStackSize")); err != nil {
			return ItemView{}, err
		}
	}
	return view, nil
}

// NodeView resolves the node type id. Nodes are draggable unless the type
// says otherwise.
func (r *Registry) NodeView(e *blocks.Engine, id string) (NodeView, error) {
	node, ok := r.Nodes[id]
	if !ok {
		return NodeView{}, fmt.Errorf("%w: node %q", ErrUnknownEntity, id)
	}
	env := e.RootEnv()
	stack := types.Stack{CategoryNodes, id}

	view := NodeView{ID: id, Draggable: true}
	var err error
	if view.Display, err = e.ResolveString(node["display"], env, stack.Push("display")); err != nil {
		return NodeView{}, err
	}
	if view.Size, err = e.ResolveSize(node["size"], env, stack.Push("size")); err != nil {
		return NodeView{}, err
	}
	if node["draggable"] != nil {
		if view.Draggable, err = e.ResolveBoolean(node["draggable"], env, stack.Push("draggable")); err != nil {
			return NodeView{}, err
		}
	}
	if node["inventory"] != nil {
		inv, err := e.ResolveInventory(node["inventory"], env, stack.Push("inventory"))
		if err != nil {
			return NodeView{}, err
		}
		view.Inventory = &inv
	}
	if node["actions"] != nil {
		view.Actions, err = blocks.ResolveDictionary[types.NodeAction]((*blocks.Engine).ResolveNodeAction)(e, node["actions"], env, stack.Push("actions"))
		if err != nil {
			return NodeView{}, err
		}
	}
	return view, nil
}

// nodeDefaults builds a fresh node state from the declared data defaults.
// Fields declared without a default are left out.
func (r *Registry) nodeDefaults(e *blocks.Engine, nodeType string, node NodeType) (map[string]any, error) {
	state := make(map[string]any)
	schema, _ := node["data"].(map[string]any)
	env := e.RootEnv()
	for _, field := range sortedIDs(schema) {
		stack := types.Stack{CategoryNodes, nodeType, "data", field}
		v, static, err := blocks.CollapseByType(schema[field])(nil, stack)
		if errors.Is(err, types.ErrSchemaViolation) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !static {
			if v, err = e.ResolveState(v, env, stack); err != nil {
				return nil, err
			}
		}
		state[field] = v
	}
	return state, nil
}

// bindNode returns env with the node's id and state bound under a reserved
// prefix as "nodeId" and "node".
func bindNode(env *blocks.Env, n types.Node) *blocks.Env {
	prefix := env.ReservePrefix("node", "nodeId")
	return env.With(map[string]any{
		prefix + "node":   n.State,
		prefix + "nodeId": float64(n.ID),
	})
}

// PlaceNode adds a node of nodeType at pos, with its data defaults as state,
// and then runs the type's place actions. The node stays on the board when
// the place actions fail.
func (r *Registry) PlaceNode(e *blocks.Engine, b blocks.Board, nodeType string, pos types.Position) (types.Node, error) {
	def, ok := r.Nodes[nodeType]
	if !ok {
		return types.Node{}, fmt.Errorf("%w: node %q", ErrUnknownEntity, nodeType)
	}
	state, err := r.nodeDefaults(e, nodeType, def)
	if err != nil {
		return types.Node{}, err
	}
	n := types.Node{ID: b.NextNodeID(), Position: pos, Type: nodeType, State: state}
	b.AddNode(n)

	if def["place"] != nil {
		env := bindNode(e.RootEnv(), n)
		if _, err := e.ResolveActions(def["place"], env, types.Stack{CategoryNodes, nodeType, "place"}); err != nil {
			return n, err
		}
	}
	return n, nil
}

// NodeLookup finds placed nodes by id.
type NodeLookup interface {
	Node(id int) (types.Node, bool)
}

// RunNodeAction resolves the action name of the node nodeID and runs its
// run block. The resolved action is returned even when run fails.
func (r *Registry) RunNodeAction(e *blocks.Engine, nodes NodeLookup, nodeID int, name string) (types.NodeAction, error) {
	n, ok := nodes.Node(nodeID)
	if !ok {
		return types.NodeAction{}, fmt.Errorf("%w: %d", types.ErrNodeNotFound, nodeID)
	}
	def, ok := r.Nodes[n.Type]
	if !ok {
		return types.NodeAction{}, fmt.Errorf("%w: node %q", ErrUnknownEntity, n.Type)
	}
	actions, _ := def["actions"].(map[string]any)
	block, ok := actions[name]
	if !ok {
		return types.NodeAction{}, fmt.Errorf("%w: action %q on node %q", ErrUnknownEntity, name, n.Type)
	}

	env := bindNode(e.RootEnv(), n)
	stack := types.Stack{CategoryNodes, n.Type, "actions", name}
	action, err := e.ResolveNodeAction(block, env, stack)
	if err != nil {
		return types.NodeAction{}, err
	}
	if action.Run != nil {
		if _, err := e.ResolveActions(action.Run, env, stack.Push("run")); err != nil {
			return action, err
		}
	}
	return action, nil
}
