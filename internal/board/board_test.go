// internal/board/board_test.go
package board

import (
	"reflect"
	"testing"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/types"
)

// Compile-time check that Board satisfies every engine collaborator.
var (
	_ blocks.Board       = (*Board)(nil)
	_ blocks.Inventories = (*Board)(nil)
	_ blocks.Scheduler   = (*Board)(nil)
)

func TestBoard_IDsNeverReused(t *testing.T) {
	b := New(types.Node{ID: 2, Type: "rock"}, types.Node{ID: 5, Type: "tree"})

	if got := b.NextNodeID(); got != 6 {
		t.Fatalf("NextNodeID() = %d, want 6", got)
	}
	if !b.RemoveNode(5) {
		t.Fatalf("RemoveNode(5) = false, want true")
	}
	if got := b.NextNodeID(); got != 6 {
		t.Errorf("NextNodeID() after remove = %d, want 6", got)
	}
	if b.RemoveNode(5) {
		t.Errorf("RemoveNode(5) twice = true, want false")
	}

	b.AddNode(types.Node{ID: 6, Type: "furnace"})
	var order []string
	for _, n := range b.Nodes() {
		order = append(order, n.Type)
	}
	if !reflect.DeepEqual(order, []string{"rock", "furnace"}) {
		t.Errorf("Nodes() order = %v, want [rock furnace]", order)
	}
	if n, ok := b.Node(6); !ok || n.Type != "furnace" {
		t.Errorf("Node(6) = %+v, %v", n, ok)
	}
}

func TestBoard_AddItemsMerges(t *testing.T) {
	b := New()
	if err := b.AddItems("1", []types.ItemStack{{Item: "coal", Quantity: 2}, {Item: "ore", Quantity: 1}}); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}
	if err := b.AddItems("1", []types.ItemStack{{Item: "coal", Quantity: 3}}); err != nil {
		t.Fatalf("AddItems() error = %v", err)
	}

	want := []types.ItemStack{{Item: "coal", Quantity: 5}, {Item: "ore", Quantity: 1}}
	if got := b.Inventory("1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Inventory() = %v, want %v", got, want)
	}

	if err := b.AddItems("1", []types.ItemStack{{Item: "", Quantity: 1}}); err == nil {
		t.Errorf("AddItems(empty item) error = nil, want error")
	}
	if err := b.AddItems("1", []types.ItemStack{{Item: "coal", Quantity: -1}}); err == nil {
		t.Errorf("AddItems(negative) error = nil, want error")
	}
}

func TestBoard_EngineIntegration(t *testing.T) {
	b := New(types.Node{ID: 1, Type: "chest"})
	e := blocks.NewEngine(blocks.WithBoard(b), blocks.WithInventories(b), blocks.WithScheduler(b))

	_, err := e.ResolveActions([]any{
		map[string]any{"_type": "addNode", "nodeType": "sapling", "pos": map[string]any{"x": 3, "y": 4}},
		map[string]any{"_type": "addItemsToInventory", "node": "1", "items": []any{map[string]any{"item": "seed", "quantity": 2}}},
		map[string]any{"_type": "wait", "node": "1", "duration": 5},
	}, blocks.NewEnv(nil), nil)
	if err != nil {
		t.Fatalf("ResolveActions() error = %v", err)
	}

	n, ok := b.Node(2)
	if !ok || n.Type != "sapling" || n.Position != (types.Position{X: 3, Y: 4}) {
		t.Errorf("Node(2) = %+v, %v", n, ok)
	}
	if got := b.Inventory("1"); !reflect.DeepEqual(got, []types.ItemStack{{Item: "seed", Quantity: 2}}) {
		t.Errorf("Inventory(1) = %v", got)
	}
	if got := b.DrainWaits(); !reflect.DeepEqual(got, []Wait{{Node: "1", Duration: 5}}) {
		t.Errorf("DrainWaits() = %v", got)
	}
	if got := b.DrainWaits(); len(got) != 0 {
		t.Errorf("DrainWaits() twice = %v, want empty", got)
	}
}
