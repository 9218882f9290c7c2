// internal/blocks/resolve_test.go
package blocks

import (
	"errors"
	"reflect"
	"testing"

	"github.com/solatis/alkatest/internal/types"
)

func ctx(id string) map[string]any {
	return map[string]any{"_type": "getContext", "id": id}
}

func TestResolveBoolean_ComparisonChains(t *testing.T) {
	e := NewEngine()
	env := NewEnv(map[string]any{"low": 1.0, "high": 10.0})

	tests := []struct {
		name  string
		block map[string]any
		want  bool
	}{
		{"increasing", map[string]any{"_type": "lessThan", "operands": []any{ctx("low"), 5, ctx("high")}}, true},
		{"not increasing", map[string]any{"_type": "lessThan", "operands": []any{ctx("high"), ctx("low")}}, false},
		{"single operand", map[string]any{"_type": "greaterThan", "operands": []any{ctx("low")}}, true},
		{"equal context", map[string]any{"_type": "equals", "operands": []any{ctx("low"), 1}}, true},
		{"none empty", map[string]any{"_type": "none", "operands": []any{}}, true},
		{"any empty", map[string]any{"_type": "any", "operands": []any{}}, false},
		{"context exists", map[string]any{"_type": "contextExists", "object": "low"}, true},
		{"context missing", map[string]any{"_type": "contextExists", "object": "mid"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.ResolveBoolean(tt.block, env, nil)
			if err != nil {
				t.Fatalf("ResolveBoolean() error = %v, want nil", err)
			}
			if got != tt.want {
				t.Errorf("ResolveBoolean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveTernary_ShortCircuits(t *testing.T) {
	e := NewEngine()
	env := NewEnv(map[string]any{"flag": true})

	block := map[string]any{
		"_type":     "ternary",
		"condition": ctx("flag"),
		"true":      1,
		"false":     ctx("missing"),
	}
	got, err := e.ResolveNumber(block, env, nil)
	if err != nil {
		t.Fatalf("ResolveNumber() error = %v, want nil", err)
	}
	if got != 1 {
		t.Errorf("ResolveNumber() = %v, want 1", got)
	}

	env = NewEnv(map[string]any{"flag": false})
	_, err = e.ResolveNumber(block, env, nil)
	if !errors.Is(err, types.ErrContextKeyNotFound) {
		t.Errorf("ResolveNumber(false branch) error = %v, want ErrContextKeyNotFound", err)
	}
}

func TestResolveProperty(t *testing.T) {
	e := NewEngine()
	rock := map[string]any{"hardness": 3.0}
	env := NewEnv(map[string]any{"rock1": rock})

	got, err := e.ResolveNumber(map[string]any{"_type": "property", "object": "rock1", "property": "hardness"}, env, nil)
	if err != nil {
		t.Fatalf("ResolveNumber() error = %v, want nil", err)
	}
	if got != 3 {
		t.Errorf("ResolveNumber() = %v, want 3", got)
	}

	_, err = e.ResolveNumber(map[string]any{"_type": "property", "object": "rock1", "property": "missing-id"}, env, types.Stack{"value"})
	if !errors.Is(err, types.ErrUnresolvableReference) {
		t.Fatalf("ResolveNumber(missing) error = %v, want ErrUnresolvableReference", err)
	}
	if !errors.Is(err, types.ErrPropertyNotFound) {
		t.Errorf("ResolveNumber(missing) error = %v, want ErrPropertyNotFound", err)
	}
}

type fakeBase struct {
	methods    map[string]map[string]any
	properties map[string]map[string]any
}

func (b fakeBase) Method(name string) (map[string]any, bool) {
	m, ok := b.methods[name]
	return m, ok
}

func (b fakeBase) Property(name string) (map[string]any, bool) {
	p, ok := b.properties[name]
	return p, ok
}

func TestResolveProperty_BaseWins(t *testing.T) {
	e := NewEngine()
	object := map[string]any{
		"_base": fakeBase{properties: map[string]map[string]any{
			"hardness": {"_type": "number", "value": 7.0},
		}},
		"hardness": 1.0,
		"name":     "granite",
	}
	env := NewEnv(map[string]any{"stone": object})

	got, err := e.ResolveNumber(map[string]any{"_type": "property", "object": "stone", "property": "hardness"}, env, nil)
	if err != nil {
		t.Fatalf("ResolveNumber() error = %v, want nil", err)
	}
	if got != 7 {
		t.Errorf("ResolveNumber() = %v, want 7 from _base", got)
	}

	name, err := e.ResolveString(map[string]any{"_type": "property", "object": "stone", "property": "name"}, env, nil)
	if err != nil || name != "granite" {
		t.Errorf("ResolveString() = %q, %v, want granite from the object", name, err)
	}

	state, err := e.ResolveState(ctx("stone"), env, nil)
	if err != nil {
		t.Fatalf("ResolveState() error = %v, want nil", err)
	}
	if reflect.ValueOf(state).Pointer() != reflect.ValueOf(object).Pointer() {
		t.Errorf("ResolveState() returned a copy, want the live object")
	}
}

func TestResolveMethod_Return(t *testing.T) {
	e := NewEngine()
	object := map[string]any{
		"double": []any{
			map[string]any{
				"_type": "@return",
				"value": map[string]any{"_type": "addition", "operands": []any{ctx("n"), ctx("n")}},
			},
		},
		"noop": []any{map[string]any{"_type": "error", "message": "ignored"}},
	}
	env := NewEnv(map[string]any{"calc": object})

	got, err := e.ResolveNumber(map[string]any{
		"_type":  "method",
		"object": ctx("calc"),
		"method": "double",
		"params": map[string]any{"n": 4},
	}, env, nil)
	if err != nil {
		t.Fatalf("ResolveNumber() error = %v, want nil", err)
	}
	if got != 8 {
		t.Errorf("ResolveNumber() = %v, want 8", got)
	}

	_, err = e.ResolveNumber(map[string]any{"_type": "method", "object": "calc", "method": "noop"}, env, nil)
	if !errors.Is(err, types.ErrNoReturnValue) {
		t.Errorf("ResolveNumber(noop) error = %v, want ErrNoReturnValue", err)
	}

	_, err = e.ResolveNumber(map[string]any{"_type": "method", "object": "calc", "method": "triple"}, env, nil)
	if !errors.Is(err, types.ErrMethodNotFound) {
		t.Errorf("ResolveNumber(triple) error = %v, want ErrMethodNotFound", err)
	}
}

func TestResolveMethod_BaseDefaultParams(t *testing.T) {
	e := NewEngine()
	object := map[string]any{
		"_base": fakeBase{methods: map[string]map[string]any{
			"scale": {
				"params": map[string]any{"factor": 2.0, "offset": 1.0},
				"run": []any{map[string]any{
					"_type": "@return",
					"value": map[string]any{"_type": "addition", "operands": []any{ctx("factor"), ctx("offset")}},
				}},
			},
		}},
	}
	env := NewEnv(map[string]any{"obj": object})

	got, err := e.ResolveNumber(map[string]any{
		"_type":  "method",
		"object": "obj",
		"method": "scale",
		"params": map[string]any{"factor": 10},
	}, env, nil)
	if err != nil {
		t.Fatalf("ResolveNumber() error = %v, want nil", err)
	}
	if got != 11 {
		t.Errorf("ResolveNumber() = %v, want 11", got)
	}
}

func TestResolveMethod_CallDepth(t *testing.T) {
	e := NewEngine(WithLimits(8, 0))
	object := map[string]any{}
	object["loop"] = []any{map[string]any{"_type": "method", "object": "self", "method": "loop"}}
	env := NewEnv(map[string]any{"self": object})

	_, err := e.ResolveActions(map[string]any{"_type": "method", "object": "self", "method": "loop"}, env, nil)
	if !errors.Is(err, types.ErrCallDepthExceeded) {
		t.Fatalf("ResolveActions() error = %v, want ErrCallDepthExceeded", err)
	}
	if e.depth != 0 {
		t.Errorf("depth = %d after unwinding, want 0", e.depth)
	}
}

func TestResolveArray_FilterKeepsOrder(t *testing.T) {
	e := NewEngine()
	block := map[string]any{
		"_type": "filter",
		"array": []any{5, 1, 4, 2, 3},
		"condition": map[string]any{
			"_type":    "greaterThan",
			"operands": []any{ctx("@element"), 2},
		},
	}

	got, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, block, NewEnv(nil), nil)
	if err != nil {
		t.Fatalf("ResolveArray() error = %v, want nil", err)
	}
	if !reflect.DeepEqual(got, []float64{5, 4, 3}) {
		t.Errorf("filter = %v, want [5 4 3]", got)
	}
}

func TestResolveArray_Map(t *testing.T) {
	e := NewEngine()
	block := map[string]any{
		"_type": "map",
		"array": []any{1, 2, 3},
		"value": map[string]any{"_type": "addition", "operands": []any{ctx("@element"), ctx("@index")}},
	}

	got, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, block, NewEnv(nil), nil)
	if err != nil {
		t.Fatalf("ResolveArray() error = %v, want nil", err)
	}
	if !reflect.DeepEqual(got, []float64{1, 3, 5}) {
		t.Errorf("map = %v, want [1 3 5]", got)
	}
}

func TestResolveArray_NestedPrefixes(t *testing.T) {
	e := NewEngine()
	block := map[string]any{
		"_type": "map",
		"array": []any{"a", "b"},
		"value": map[string]any{
			"_type": "map",
			"array": []any{"x", "y"},
			"value": map[string]any{"_type": "concat", "operands": []any{ctx("@element"), ctx("2@element")}},
		},
	}

	got, err := ResolveArray[[]string](ResolveArray[string]((*Engine).ResolveString))(e, block, NewEnv(nil), nil)
	if err != nil {
		t.Fatalf("ResolveArray() error = %v, want nil", err)
	}
	want := [][]string{{"ax", "ay"}, {"bx", "by"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("nested map = %v, want %v", got, want)
	}
}

func TestResolveArray_LiteralsDoNotBindIteration(t *testing.T) {
	e := NewEngine()
	_, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, []any{ctx("@index")}, NewEnv(nil), nil)
	if !errors.Is(err, types.ErrContextKeyNotFound) {
		t.Errorf("ResolveArray() error = %v, want ErrContextKeyNotFound", err)
	}
}

func TestResolveDictionary_KeysValues(t *testing.T) {
	e := NewEngine()
	env := NewEnv(map[string]any{"costs": map[string]any{"iron": 3.0, "coal": 1.0}})

	keys, err := ResolveArray[string]((*Engine).ResolveString)(e, map[string]any{"_type": "keys", "dictionary": ctx("costs")}, env, nil)
	if err != nil {
		t.Fatalf("keys error = %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"coal", "iron"}) {
		t.Errorf("keys = %v, want [coal iron]", keys)
	}

	values, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, map[string]any{"_type": "values", "dictionary": ctx("costs")}, env, nil)
	if err != nil {
		t.Fatalf("values error = %v", err)
	}
	if !reflect.DeepEqual(values, []float64{1, 3}) {
		t.Errorf("values = %v, want [1 3]", values)
	}

	dict, err := ResolveDictionary[float64]((*Engine).ResolveNumber)(e, map[string]any{
		"_type": "createDictionary",
		"entries": []any{
			map[string]any{"key": "a", "value": 1},
			map[string]any{"key": "a", "value": 2},
		},
	}, env, nil)
	if err != nil {
		t.Fatalf("createDictionary error = %v", err)
	}
	if !reflect.DeepEqual(dict, map[string]float64{"a": 2}) {
		t.Errorf("createDictionary = %v, want later entry to win", dict)
	}
}

func TestResolveArray_ValuesOfCreatedDictionary(t *testing.T) {
	e := NewEngine()
	env := NewEnv(map[string]any{"bonus": 4.0})

	block := map[string]any{
		"_type": "values",
		"dictionary": map[string]any{
			"_type": "createDictionary",
			"entries": []any{
				map[string]any{"key": "b", "value": map[string]any{"_type": "addition", "operands": []any{ctx("bonus"), 1}}},
				map[string]any{"key": "a", "value": 2},
			},
		},
	}
	got, err := ResolveArray[float64]((*Engine).ResolveNumber)(e, block, env, nil)
	if err != nil {
		t.Fatalf("values(createDictionary) error = %v", err)
	}
	if !reflect.DeepEqual(got, []float64{2, 5}) {
		t.Errorf("values(createDictionary) = %v, want [2 5]", got)
	}

	_, err = ResolveArray[string]((*Engine).ResolveString)(e, block, env, nil)
	if !errors.Is(err, types.ErrInvalidBlock) {
		t.Errorf("values(createDictionary) as strings error = %v, want ErrInvalidBlock", err)
	}
}

func TestResolveNumber_Random(t *testing.T) {
	draw := 0.5
	e := NewEngine(WithRandom(func() float64 { return draw }))
	env := NewEnv(nil)

	got, err := e.ResolveNumber(map[string]any{"_type": "random", "min": 2, "max": 4}, env, nil)
	if err != nil {
		t.Fatalf("random error = %v", err)
	}
	if got != 3 {
		t.Errorf("random = %v, want 3", got)
	}

	draw = 0.55

	got, err = e.ResolveNumber(map[string]any{"_type": "randomInt", "min": 0, "max": 10}, env, nil)
	if err != nil {
		t.Fatalf("randomInt error = %v", err)
	}
	if got != 5 {
		t.Errorf("randomInt = %v, want 5", got)
	}
}

func TestCryptoFloat64_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if v := cryptoFloat64(); v < 0 || v >= 1 {
			t.Fatalf("cryptoFloat64() = %v, want [0, 1)", v)
		}
	}
}

func TestResolveNumber_Subtraction(t *testing.T) {
	e := NewEngine()
	got, err := e.ResolveNumber(map[string]any{"_type": "subtraction", "operands": []any{10, 3, 2}}, NewEnv(nil), nil)
	if err != nil || got != 5 {
		t.Errorf("subtraction = %v, %v, want 5", got, err)
	}

	_, err = e.ResolveNumber(map[string]any{"_type": "subtraction", "operands": []any{}}, NewEnv(nil), nil)
	if !errors.Is(err, types.ErrInvalidBlock) {
		t.Errorf("empty subtraction error = %v, want ErrInvalidBlock", err)
	}
}

func TestResolveStructs(t *testing.T) {
	e := NewEngine()
	env := NewEnv(map[string]any{"w": 4.0})

	size, err := e.ResolveSize(3, env, nil)
	if err != nil || size != (types.Size{Width: 3, Height: 3}) {
		t.Errorf("ResolveSize(3) = %v, %v", size, err)
	}
	size, err = e.ResolveSize(map[string]any{"width": ctx("w"), "height": 1}, env, nil)
	if err != nil || size != (types.Size{Width: 4, Height: 1}) {
		t.Errorf("ResolveSize(map) = %v, %v", size, err)
	}
	size, err = e.ResolveSize(map[string]any{"_type": "addition", "operands": []any{1, 1}}, env, nil)
	if err != nil || size != (types.Size{Width: 2, Height: 2}) {
		t.Errorf("ResolveSize(addition) = %v, %v", size, err)
	}

	inv, err := e.ResolveInventory(map[string]any{"slots": 9, "canPlayerInsert": false}, env, nil)
	if err != nil {
		t.Fatalf("ResolveInventory() error = %v", err)
	}
	want := types.Inventory{Slots: 9, CanPlayerExtract: true, CanPlayerInsert: false}
	if inv != want {
		t.Errorf("ResolveInventory() = %+v, want %+v", inv, want)
	}

	action, err := e.ResolveNodeAction(map[string]any{
		"display":  "Smelt",
		"duration": 2,
		"cost":     map[string]any{"ore": map[string]any{"item": "iron-ore", "quantity": 2}},
		"run":      []any{},
	}, env, nil)
	if err != nil {
		t.Fatalf("ResolveNodeAction() error = %v", err)
	}
	if action.Display != "Smelt" || action.Duration != 2 || action.Tooltip != "" {
		t.Errorf("ResolveNodeAction() = %+v", action)
	}
	if action.Cost["ore"] != (types.ItemStack{Item: "iron-ore", Quantity: 2}) {
		t.Errorf("Cost = %v", action.Cost)
	}
}

func TestResolveState_NestedErrorNotSwallowed(t *testing.T) {
	e := NewEngine()
	block := map[string]any{"a": ctx("missing"), "b": 1}

	got, err := e.ResolveState(block, NewEnv(nil), types.Stack{"root"})
	if !errors.Is(err, types.ErrContextKeyNotFound) {
		t.Fatalf("ResolveState() = %v, %v, want ErrContextKeyNotFound", got, err)
	}
}
