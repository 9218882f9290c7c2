// internal/packs/loader_test.go
package packs

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/types"
)

func mustPack(t *testing.T, name, src string) ContentPack {
	t.Helper()
	p, err := Load(name, []byte(src))
	if err != nil {
		t.Fatalf("Load(%s) error = %v", name, err)
	}
	return p
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const oreType = `"types": {
    "ore": {
      "data": {
        "hardness": {"_type": "number", "default": 1},
        "tags": {"_type": "dictionary", "keyType": {"_type": "string"}, "valueType": {"_type": "string"}, "default": {}}
      },
      "properties": {
        "kind": {"_type": "string", "value": "mineral"}
      }
    }
  }`

func TestProcess_MergeNoOverwrite(t *testing.T) {
	base := mustPack(t, "a.json", `{
  "display": "Base",
  `+oreType+`,
  "ore": {"rock1": {"hardness": 3, "tags": {"a": "x"}, "color": "grey"}}
}`)
	extra := mustPack(t, "b.json", `{
  "display": "Extra",
  "ore": {
    "rock1": {"hardness": 9, "tags": {"a": "y", "b": "z"}},
    "rock2": {}
  }
}`)

	reg, report := Process([]ContentPack{base, extra}, quiet())

	rock1, ok := reg.Object("ore", "rock1")
	if !ok {
		t.Fatalf("Object(ore, rock1) missing; report: %v", report.Err())
	}
	if rock1["hardness"] != 3.0 {
		t.Errorf("rock1.hardness = %v, want 3", rock1["hardness"])
	}
	if want := map[string]any{"a": "x", "b": "z"}; !reflect.DeepEqual(rock1["tags"], want) {
		t.Errorf("rock1.tags = %v, want %v", rock1["tags"], want)
	}
	if _, present := rock1["color"]; present {
		t.Errorf("rock1 kept undeclared field color")
	}
	if rock1["_base"] != reg.Types["ore"] {
		t.Errorf("rock1._base = %v, want the ore type", rock1["_base"])
	}

	rock2, ok := reg.Object("ore", "rock2")
	if !ok {
		t.Fatalf("Object(ore, rock2) missing")
	}
	if rock2["hardness"] != 1.0 {
		t.Errorf("rock2.hardness = %v, want default 1", rock2["hardness"])
	}

	if got := report.Len(); got != 2 {
		t.Errorf("Report.Len() = %d, want 2: %v", got, report.Err())
	}
	if !report.Has(ErrFieldOverride) || !report.Has(types.ErrDuplicateIdentifier) {
		t.Errorf("Report.Has(ErrFieldOverride) = false; report: %v", report.Err())
	}
	for _, d := range report.Diagnostics {
		if d.Pack != "Extra" || d.Category != "ore" || d.ID != "rock1" {
			t.Errorf("diagnostic = %+v, want Extra ore rock1", d)
		}
	}
}

func TestProcess_DuplicateKeepsFirst(t *testing.T) {
	a := mustPack(t, "a.json", `{"display": "A", "nodes": {"furnace": {"display": "Furnace", "size": 2}}}`)
	b := mustPack(t, "b.json", `{"display": "B", "nodes": {"furnace": {"display": "Other", "size": 1}, "chest": {"display": "Chest", "size": 1}}}`)

	reg, report := Process([]ContentPack{a, b}, quiet())

	if got := reg.Nodes["furnace"]["display"]; got != "Furnace" {
		t.Errorf("furnace.display = %v, want Furnace", got)
	}
	if _, ok := reg.Nodes["chest"]; !ok {
		t.Errorf("chest missing; later packs still add new ids")
	}
	if report.Len() != 1 || !report.Has(types.ErrDuplicateIdentifier) {
		t.Fatalf("report = %v, want one duplicate identifier", report.Err())
	}
	if d := report.Diagnostics[0]; d.Pack != "B" || d.Category != CategoryNodes || d.ID != "furnace" {
		t.Errorf("diagnostic = %+v, want B nodes furnace", d)
	}
}

func TestProcess_InvalidIdentifiers(t *testing.T) {
	p := mustPack(t, "a.json", `{"display": "A", "items": {"": {"display": "Empty"}, "@coal": {"display": "Reserved"}, "coal": {"display": "Coal"}}}`)

	reg, report := Process([]ContentPack{p}, quiet())

	if len(reg.Items) != 1 || reg.Items["coal"] == nil {
		t.Errorf("Items = %v, want only coal", reg.Items)
	}
	if got := report.Len(); got != 2 {
		t.Errorf("Report.Len() = %d, want 2", got)
	}
	for _, d := range report.Diagnostics {
		if !errors.Is(d, types.ErrInvalidIdentifier) {
			t.Errorf("diagnostic %v is not ErrInvalidIdentifier", d)
		}
	}
}

func TestProcess_PackLevelRejections(t *testing.T) {
	noDisplay := mustPack(t, "a.json", `{"items": {"coal": {"display": "Coal"}}}`)
	badCategory := mustPack(t, "b.json", `{"display": "B", "items": [1, 2], "nodes": {"chest": {"display": "Chest", "size": 1}}}`)

	reg, report := Process([]ContentPack{noDisplay, badCategory}, quiet())

	if len(reg.Items) != 0 {
		t.Errorf("Items = %v, want none", reg.Items)
	}
	if _, ok := reg.Nodes["chest"]; !ok {
		t.Errorf("chest missing; a bad category must not drop the pack")
	}
	if report.Len() != 2 {
		t.Fatalf("Report.Len() = %d, want 2: %v", report.Len(), report.Err())
	}
	if d := report.Diagnostics[0]; d.Pack != "a.json" || d.Category != CategoryPack {
		t.Errorf("first diagnostic = %+v, want a.json pack", d)
	}
	if d := report.Diagnostics[1]; d.Pack != "B" || d.Category != CategoryItems {
		t.Errorf("second diagnostic = %+v, want B items", d)
	}
}

func TestProcess_EntityDropIsolated(t *testing.T) {
	p := mustPack(t, "a.json", `{
  "display": "A",
  "items": {
    "coal": {"display": "Coal", "extra": 1},
    "sum": {"display": {"_type": "addition", "operands": [1, 2]}},
    "nameless": {"maxStackSize": 4}
  }
}`)

	reg, report := Process([]ContentPack{p}, quiet())

	if want := (ItemType{"display": "Coal"}); !reflect.DeepEqual(reg.Items["coal"], want) {
		t.Errorf("Items[coal] = %v, want %v", reg.Items["coal"], want)
	}
	if len(reg.Items) != 1 {
		t.Errorf("Items = %v, want only coal", reg.Items)
	}
	if report.Len() != 2 || !report.Has(types.ErrInvalidBlock) {
		t.Errorf("report = %v, want two invalid blocks", report.Err())
	}
}

func TestProcess_CustomObjectRejections(t *testing.T) {
	p := mustPack(t, "a.json", `{
  "display": "A",
  `+oreType+`,
  "ore": {
    "rock1": {"hardness": {"_type": "random", "min": 0, "max": 1}},
    "rock2": {"hardness": "soft"},
    "rock3": {"hardness": 2}
  },
  "broken": {"x": {}}
}`)
	p.Document["types"].(map[string]any)["broken"] = map[string]any{"data": 5.0}

	reg, report := Process([]ContentPack{p}, quiet())

	if _, ok := reg.Object("ore", "rock3"); !ok {
		t.Errorf("rock3 missing")
	}
	if _, ok := reg.Object("ore", "rock1"); ok {
		t.Errorf("rock1 kept a field that needs runtime context")
	}
	if _, ok := reg.Object("ore", "rock2"); ok {
		t.Errorf("rock2 kept a field of the wrong kind")
	}
	if _, ok := reg.Types["broken"]; ok {
		t.Errorf("broken type loaded")
	}
	for _, target := range []error{ErrNotStatic, types.ErrSchemaViolation, ErrUnknownType, types.ErrInvalidBlock} {
		if !report.Has(target) {
			t.Errorf("Report.Has(%v) = false; report: %v", target, report.Err())
		}
	}
}

func TestProcess_Listeners(t *testing.T) {
	a := mustPack(t, "a.json", `{"display": "A", "eventListeners": {"tick": [{"_type": "@break"}]}}`)
	b := mustPack(t, "b.json", `{"display": "B", "eventListeners": {"tick": {"_type": "error", "message": "boom"}, "bad": "nope", "worse": [{"_type": "explode"}]}}`)

	reg, report := Process([]ContentPack{a, b}, quiet())

	got := reg.Listeners.Listeners("tick")
	if len(got) != 2 {
		t.Fatalf("Listeners(tick) = %v, want 2 entries", got)
	}
	if _, ok := got[0].([]any); !ok {
		t.Errorf("Listeners(tick)[0] = %v, want the first pack's array", got[0])
	}
	if m, ok := got[1].(map[string]any); !ok || m["_type"] != "error" {
		t.Errorf("Listeners(tick)[1] = %v, want the error action", got[1])
	}
	if n := len(reg.Listeners.Listeners("bad")) + len(reg.Listeners.Listeners("worse")); n != 0 {
		t.Errorf("invalid listeners registered: %d", n)
	}

	ids := map[string]bool{}
	for _, d := range report.Diagnostics {
		ids[d.ID] = true
	}
	if !ids["bad#0"] || !ids["worse#0"] {
		t.Errorf("diagnostic ids = %v, want bad#0 and worse#0", ids)
	}
	if !report.Has(types.ErrUnknownBlockType) {
		t.Errorf("Report.Has(ErrUnknownBlockType) = false")
	}
}

func TestRegistry_RootResolves(t *testing.T) {
	p := mustPack(t, "a.json", `{"display": "A", `+oreType+`, "ore": {"rock1": {"hardness": 3}}}`)
	reg, report := Process([]ContentPack{p}, quiet())
	if report.Err() != nil {
		t.Fatalf("Process() report = %v", report.Err())
	}

	e := blocks.NewEngine(blocks.WithContext(reg.Root()))
	rock := map[string]any{
		"_type":    "property",
		"object":   map[string]any{"_type": "getContext", "id": "ore"},
		"property": "rock1",
	}

	hardness, err := e.ResolveNumber(map[string]any{"_type": "property", "object": rock, "property": "hardness"}, e.RootEnv(), nil)
	if err != nil || hardness != 3 {
		t.Errorf("ResolveNumber(hardness) = %v, %v, want 3", hardness, err)
	}
	kind, err := e.ResolveString(map[string]any{"_type": "property", "object": rock, "property": "kind"}, e.RootEnv(), nil)
	if err != nil || kind != "mineral" {
		t.Errorf("ResolveString(kind) = %q, %v, want mineral", kind, err)
	}

	want := Summary{Types: 1, Objects: 1}
	if got := reg.Summary(); got != want {
		t.Errorf("Summary() = %+v, want %+v", got, want)
	}
}

func TestReport_Err(t *testing.T) {
	r := &Report{}
	if r.Err() != nil {
		t.Errorf("empty Report.Err() = %v, want nil", r.Err())
	}
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Pack: "A", Category: "items", ID: "coal", Err: types.ErrDuplicateIdentifier})
	if got, want := r.Err().Error(), "A: items coal: duplicate identifier"; got != want {
		t.Errorf("Report.Err() = %q, want %q", got, want)
	}
}

// Property-based test: the first pack to declare an id owns it
func TestProcess_PropertyFirstWriterWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("duplicate ids keep the first declaration", prop.ForAll(
		func(id, first, second string) bool {
			pack := func(name, display string) ContentPack {
				return ContentPack{Name: name, Document: map[string]any{
					"display": name,
					"items":   map[string]any{id: map[string]any{"display": display}},
				}}
			}
			reg, report := Process([]ContentPack{pack("a", first), pack("b", second)}, quiet())
			return reg.Items[id]["display"] == first && report.Len() == 1 && report.Has(types.ErrDuplicateIdentifier)
		},
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
