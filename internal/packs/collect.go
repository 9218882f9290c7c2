// internal/packs/collect.go
package packs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/solatis/alkatest/internal/blocks"
	"github.com/solatis/alkatest/internal/types"
)

// entry is a whitelisted entity and the pack it came from.
type entry struct {
	pack  string
	value map[string]any
}

func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", types.ErrInvalidIdentifier)
	}
	if strings.HasPrefix(id, types.ReservedPrefix) {
		return fmt.Errorf("%w: %q uses the reserved prefix %q", types.ErrInvalidIdentifier, id, types.ReservedPrefix)
	}
	return nil
}

// whitelist returns a shallow copy of m limited to fields.
func whitelist(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

// categoryOf returns p's mapping for category, rejecting anything else.
func (l *loader) categoryOf(p ContentPack, category string) (map[string]any, bool) {
	raw, present := p.Document[category]
	if !present {
		return nil, false
	}
	if err := schemas.category.Validate(raw); err != nil {
		l.reject(p.Display(), category, "", fmt.Errorf("%w: %s is not a mapping", types.ErrInvalidBlock, category))
		return nil, false
	}
	m, ok := raw.(map[string]any)
	return m, ok
}

// collect merges one entity category across packs. The first pack to declare
// an id owns it; later declarations are rejected as duplicates.
func (l *loader) collect(packs []ContentPack, category string, schema *jsonschema.Schema, fields []string) map[string]entry {
	acc := make(map[string]entry)
	for _, p := range packs {
		entities, ok := l.categoryOf(p, category)
		if !ok {
			continue
		}
		pack := p.Display()
		for _, id := range sortedIDs(entities) {
			if err := checkID(id); err != nil {
				l.reject(pack, category, id, err)
				continue
			}
			if prev, dup := acc[id]; dup {
				l.reject(pack, category, id, fmt.Errorf("%w: already declared by %s", types.ErrDuplicateIdentifier, prev.pack))
				continue
			}
			if err := schema.Validate(entities[id]); err != nil {
				l.reject(pack, category, id, fmt.Errorf("%w: %v", types.ErrInvalidBlock, err))
				continue
			}
			acc[id] = entry{pack: pack, value: whitelist(entities[id].(map[string]any), fields)}
		}
	}
	return acc
}

// isDictionaryType reports whether a collapsed Type descriptor declares a
// dictionary.
func isDictionaryType(schema any) bool {
	m, ok := schema.(map[string]any)
	return ok && m["_type"] == blocks.SchemaDictionary
}

// collectObjects merges the custom objects of every loaded type and collapses
// them against the type's data schema. Each object keeps only its declared
// fields. The first pack to set a field owns it, except that dictionary
// fields take new keys from later packs; any attempted overwrite is rejected
// and the object kept.
func (l *loader) collectObjects(packs []ContentPack, rawTypes map[string]entry, reg *Registry) {
	for _, typeID := range sortedIDs(rawTypes) {
		if _, loaded := reg.Types[typeID]; loaded {
			continue
		}
		for _, p := range packs {
			if _, present := p.Document[typeID]; present {
				l.reject(p.Display(), typeID, "", fmt.Errorf("%w: %s", ErrUnknownType, typeID))
			}
		}
	}

	for _, typeID := range sortedIDs(reg.Types) {
		t := reg.Types[typeID]
		merged := make(map[string]map[string]any)
		origin := make(map[string]string)

		for _, p := range packs {
			objects, ok := l.categoryOf(p, typeID)
			if !ok {
				continue
			}
			pack := p.Display()
			for _, id := range sortedIDs(objects) {
				if err := checkID(id); err != nil {
					l.reject(pack, typeID, id, err)
					continue
				}
				if err := schemas.entity.Validate(objects[id]); err != nil {
					l.reject(pack, typeID, id, fmt.Errorf("%w: %v", types.ErrInvalidBlock, err))
					continue
				}
				acc, seen := merged[id]
				if !seen {
					acc = make(map[string]any)
					merged[id] = acc
					origin[id] = pack
				}
				l.mergeObject(pack, typeID, id, t, acc, objects[id].(map[string]any))
			}
		}

		out := make(map[string]map[string]any, len(merged))
		for _, id := range sortedIDs(merged) {
			if obj, ok := l.collapseObject(origin[id], t, id, merged[id]); ok {
				out[id] = obj
			}
		}
		reg.Objects[typeID] = out
	}
}

func (l *loader) mergeObject(pack, typeID, id string, t *TypeType, acc, src map[string]any) {
	for _, field := range sortedIDs(t.Data) {
		v, present := src[field]
		if !present || v == nil {
			continue
		}
		existing, set := acc[field]
		if !set {
			if dict, ok := v.(map[string]any); ok && isDictionaryType(t.Data[field]) {
				v = whitelist(dict, sortedIDs(dict))
			}
			acc[field] = v
			continue
		}

		dst, dstOK := existing.(map[string]any)
		add, addOK := v.(map[string]any)
		if !isDictionaryType(t.Data[field]) || !dstOK || !addOK {
			l.reject(pack, typeID, id, fmt.Errorf("%w: %s", ErrFieldOverride, field))
			continue
		}
		for _, key := range sortedIDs(add) {
			if _, taken := dst[key]; taken {
				l.reject(pack, typeID, id, fmt.Errorf("%w: %s.%s", ErrFieldOverride, field, key))
				continue
			}
			dst[key] = add[key]
		}
	}
}

// collapseObject coerces every declared field through its Type. Fields must
// be static; the object is dropped otherwise.
func (l *loader) collapseObject(pack string, t *TypeType, id string, merged map[string]any) (map[string]any, bool) {
	obj := make(map[string]any, len(t.Data)+1)
	for _, field := range sortedIDs(t.Data) {
		stack := types.Stack{t.ID, id, field}
		v, static, err := blocks.CollapseByType(t.Data[field])(merged[field], stack)
		if err != nil {
			l.reject(pack, t.ID, id, err)
			return nil, false
		}
		if !static {
			l.reject(pack, t.ID, id, types.NewBlockError(ErrNotStatic, stack, "field %q needs runtime context", field))
			return nil, false
		}
		obj[field] = v
	}
	obj["_base"] = t
	return obj, true
}

// collectListeners appends every pack's listeners in pack order and
// collapses each one on its own.
func (l *loader) collectListeners(packs []ContentPack, reg *Registry) {
	counts := make(map[string]int)
	for _, p := range packs {
		listeners, ok := l.categoryOf(p, CategoryListeners)
		if !ok {
			continue
		}
		pack := p.Display()
		for _, event := range sortedIDs(listeners) {
			i := counts[event]
			counts[event]++
			id := event + "#" + strconv.Itoa(i)

			if err := schemas.listener.Validate(listeners[event]); err != nil {
				l.reject(pack, CategoryListeners, id, fmt.Errorf("%w: %v", types.ErrInvalidBlock, err))
				continue
			}
			actions, _, err := blocks.CollapseActions(listeners[event], types.Stack{CategoryListeners, event, strconv.Itoa(i)})
			if err != nil {
				l.reject(pack, CategoryListeners, id, err)
				continue
			}
			reg.Listeners.Add(event, actions)
		}
	}
}
