// internal/types/domain.go
package types

/*
 * Resolved values handed to board collaborators.
 *
 * Blocks resolve into these plain structs at the engine boundary. They carry
 * no block syntax; a Position here is always two concrete numbers.
 */

// Position is a board coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the footprint of a node type. A numeric size block resolves to a
// square Size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Node is one entry of the board's ordered node collection.
type Node struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
	Type     string   `json:"type"`
	State    any      `json:"state,omitempty"`
}

// ItemStack is a quantity of one item type.
type ItemStack struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
}

// Inventory describes a node type's storage.
type Inventory struct {
	Slots            int  `json:"slots"`
	CanPlayerExtract bool `json:"canPlayerExtract"`
	CanPlayerInsert  bool `json:"canPlayerInsert"`
}

// NodeAction is a player-triggered action on a node. Run stays a block and is
// resolved as an action array when the action fires.
type NodeAction struct {
	Display  string               `json:"display"`
	Duration float64              `json:"duration"`
	Cost     map[string]ItemStack `json:"cost,omitempty"`
	Tooltip  string               `json:"tooltip,omitempty"`
	Run      any                  `json:"-"`
}
