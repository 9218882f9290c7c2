// internal/board/board.go
package board

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/solatis/alkatest/internal/types"
)

/*
 * In-memory board.
 *
 * The board is the node collection the engine mutates through addNode and
 * removeNode, plus the per-node inventories filled by addItemsToInventory
 * and the wait requests the engine forwards. Nodes keep insertion order.
 * Ids are minted as one past the largest id ever issued, so a removed id is
 * never handed out again.
 */

// Wait is a pending wait request.
type Wait struct {
	Node     string
	Duration float64
}

// Board holds nodes, inventories and pending waits.
type Board struct {
	mu          sync.Mutex
	nodes       []types.Node
	lastID      int
	inventories map[string][]types.ItemStack
	waits       []Wait
}

// New creates a board holding nodes.
func New(nodes ...types.Node) *Board {
	b := &Board{inventories: make(map[string][]types.ItemStack)}
	for _, n := range nodes {
		b.AddNode(n)
	}
	return b
}

// NextNodeID returns an id no node on the board has ever used.
func (b *Board) NextNodeID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastID + 1
}

// AddNode appends node. An existing node with the same id is replaced in place.
func (b *Board) AddNode(node types.Node) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if node.ID > b.lastID {
		b.lastID = node.ID
	}
	for i := range b.nodes {
		if b.nodes[i].ID == node.ID {
			b.nodes[i] = node
			return
		}
	}
	b.nodes = append(b.nodes, node)
}

// RemoveNode removes the node with id and its inventory. It reports whether
// the node existed.
func (b *Board) RemoveNode(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			delete(b.inventories, strconv.Itoa(id))
			return true
		}
	}
	return false
}

// Node returns the node with id.
func (b *Board) Node(id int) (types.Node, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range b.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return types.Node{}, false
}

// Nodes returns a copy of the nodes in insertion order.
func (b *Board) Nodes() []types.Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.Node(nil), b.nodes...)
}

// AddItems adds stacks to the inventory keyed by node, merging quantities of
// the same item.
func (b *Board) AddItems(node string, stacks []types.ItemStack) error {
	for _, s := range stacks {
		if s.Item == "" {
			return fmt.Errorf("item stack has no item")
		}
		if s.Quantity < 0 {
			return fmt.Errorf("item stack %q has negative quantity %v", s.Item, s.Quantity)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	inv := b.inventories[node]
	for _, s := range stacks {
		merged := false
		for i := range inv {
			if inv[i].Item == s.Item {
				inv[i].Quantity += s.Quantity
				merged = true
				break
			}
		}
		if !merged {
			inv = append(inv, s)
		}
	}
	b.inventories[node] = inv
	return nil
}

// Inventory returns a copy of the inventory keyed by node, sorted by item.
func (b *Board) Inventory(node string) []types.ItemStack {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]types.ItemStack(nil), b.inventories[node]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Wait records a wait request.
func (b *Board) Wait(node string, duration float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waits = append(b.waits, Wait{Node: node, Duration: duration})
}

// DrainWaits returns and clears the pending wait requests.
func (b *Board) DrainWaits() []Wait {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.waits
	b.waits = nil
	return w
}
