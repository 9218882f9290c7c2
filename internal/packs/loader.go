// internal/packs/loader.go
package packs

import (
	"fmt"
	"log/slog"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/types"
)

/*
 * Load pipeline.
 *
 * Process is permissive at the pack level and strict at the entity level:
 * a pack with a bad envelope is skipped, a category that is not a mapping
 * is skipped, and every entity that fails an id check, a required-field
 * check or collapse is dropped on its own. Nothing short of that ever
 * fails the whole load; every rejection lands in the Report and the log.
 *
 * Order of passes: envelopes, then items, nodes and types (merge and
 * collapse), then custom objects (which need collapsed type schemas), then
 * event listeners.
 */

var itemSpecs = []blocks.FieldSpec{
	{Name: "display", Collapse: blocks.CollapseString},
	{Name: "node", Collapse: blocks.CollapseString, Optional: true},
	{Name: "maxStackSize", Collapse: blocks.CollapseNumber, Optional: true},
}

var nodeSpecs = []blocks.FieldSpec{
	{Name: "display", Collapse: blocks.CollapseString},
	{Name: "size", Collapse: blocks.CollapseSize},
	{Name: "draggable", Collapse: blocks.CollapseBoolean, Optional: true},
	{Name: "data", Collapse: blocks.CollapseTypeDictionary, Optional: true},
	{Name: "inventory", Collapse: blocks.CollapseInventory, Optional: true},
	{Name: "actions", Collapse: blocks.CollapseNodeActionDictionary, Optional: true},
	{Name: "place", Collapse: blocks.CollapseActions, Optional: true},
}

var typeSpecs = []blocks.FieldSpec{
	{Name: "data", Collapse: blocks.CollapseTypeDictionary, Optional: true},
	{Name: "methods", Collapse: blocks.CollapseMethodTypeDictionary, Optional: true},
	{Name: "properties", Collapse: blocks.CollapsePropertyDictionary, Optional: true},
}

func specNames(specs []blocks.FieldSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Option configures Process.
type Option func(*loader)

// WithLogger sets the logger rejections are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(ld *loader) { ld.logger = l }
}

type loader struct {
	logger *slog.Logger
	report *Report
}

func (l *loader) reject(pack, category, id string, err error) {
	l.report.Diagnostics = append(l.report.Diagnostics, Diagnostic{Pack: pack, Category: category, ID: id, Err: err})
	l.logger.Warn("content rejected", "pack", pack, "category", category, "id", id, "error", err)
}

// Process loads packs, in order, into a Registry. The Report lists every
// rejected pack, entity and field; a non-empty Report still comes with a
// usable Registry.
func Process(packs []ContentPack, opts ...Option) (*Registry, *Report) {
	l := &loader{report: &Report{}}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}

	reg := newRegistry()
	reg.Digest = Digest(packs)

	valid := l.envelopes(packs)

	items := l.collect(valid, CategoryItems, schemas.item, specNames(itemSpecs))
	for _, id := range sortedIDs(items) {
		if out, ok := l.collapseEntity(items[id], CategoryItems, id, itemSpecs); ok {
			reg.Items[id] = ItemType(out)
		}
	}

	nodes := l.collect(valid, CategoryNodes, schemas.node, specNames(nodeSpecs))
	for _, id := range sortedIDs(nodes) {
		if out, ok := l.collapseEntity(nodes[id], CategoryNodes, id, nodeSpecs); ok {
			reg.Nodes[id] = NodeType(out)
		}
	}

	rawTypes := l.collect(valid, CategoryTypes, schemas.entity, specNames(typeSpecs))
	for _, id := range sortedIDs(rawTypes) {
		out, ok := l.collapseEntity(rawTypes[id], CategoryTypes, id, typeSpecs)
		if !ok {
			continue
		}
		t, err := newTypeType(id, out)
		if err != nil {
			l.reject(rawTypes[id].pack, CategoryTypes, id, err)
			continue
		}
		reg.Types[id] = t
	}

	l.collectObjects(valid, rawTypes, reg)
	l.collectListeners(valid, reg)

	l.logger.Info("content loaded",
		"load_id", reg.LoadID,
		"packs", len(valid),
		"items", len(reg.Items),
		"nodes", len(reg.Nodes),
		"types", len(reg.Types),
		"listeners", reg.Listeners.Len(),
		"rejected", l.report.Len(),
	)
	return reg, l.report
}

func (l *loader) envelopes(packs []ContentPack) []ContentPack {
	valid := make([]ContentPack, 0, len(packs))
	for _, p := range packs {
		if err := schemas.envelope.Validate(p.Document); err != nil {
			l.reject(p.Name, CategoryPack, "", fmt.Errorf("%w: pack envelope: %v", types.ErrInvalidBlock, err))
			continue
		}
		valid = append(valid, p)
	}
	return valid
}

func (l *loader) collapseEntity(e entry, category, id string, specs []blocks.FieldSpec) (map[string]any, bool) {
	out, _, err := blocks.CollapseShape(e.value, specs, types.Stack{category, id})
	if err != nil {
		l.reject(e.pack, category, id, err)
		return nil, false
	}
	return out, true
}

func newTypeType(id string, out map[string]any) (*TypeType, error) {
	t := &TypeType{ID: id}
	for _, f := range []struct {
		name string
		dst  *map[string]any
	}{
		{"data", &t.Data},
		{"methods", &t.Methods},
		{"properties", &t.Properties},
	} {
		v, present := out[f.name]
		if !present {
			*f.dst = map[string]any{}
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, types.NewBlockError(types.ErrInvalidBlock, types.Stack{CategoryTypes, id, f.name}, "%s must be a literal dictionary", f.name)
		}
		*f.dst = m
	}
	return t, nil
}
