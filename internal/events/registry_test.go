package events

import (
	"reflect"
	"testing"
)

func TestRegistry_OrderAndCopies(t *testing.T) {
	r := NewRegistry()
	first := []any{map[string]any{"_type": "@break"}}
	second := []any{map[string]any{"_type": "error", "message": "x"}}

	r.Add("tick", first)
	r.Add("tick", second)
	r.Add("tick", first)
	r.Add("place", second)

	got := r.Listeners("tick")
	if len(got) != 3 {
		t.Fatalf("Listeners(tick) len = %d, want 3 (no dedup)", len(got))
	}
	if !reflect.DeepEqual(got[1], second) {
		t.Errorf("Listeners(tick)[1] = %v, want registration order", got[1])
	}

	got[0] = nil
	if r.Listeners("tick")[0] == nil {
		t.Errorf("Listeners() exposed internal slice")
	}

	if events := r.Events(); !reflect.DeepEqual(events, []string{"place", "tick"}) {
		t.Errorf("Events() = %v, want [place tick]", events)
	}
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}

	if got := r.Listeners("missing"); len(got) != 0 {
		t.Errorf("Listeners(missing) = %v, want empty", got)
	}
}
