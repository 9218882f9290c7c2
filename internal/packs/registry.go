// internal/packs/registry.go
package packs

import (
	"sort"

	"github.com/solatis/alkatest/internal/events"
	"github.com/solatis/alkatest/internal/types"
)

// ItemType is a collapsed item entity: display, node?, maxStackSize?.
type ItemType map[string]any

// NodeType is a collapsed node entity: display, size, draggable?, data?,
// inventory?, actions?, place?.
type NodeType map[string]any

// TypeType is a collapsed custom type. Every object of the type holds the
// same *TypeType under its "_base" key.
type TypeType struct {
	ID         string
	Data       map[string]any
	Methods    map[string]any
	Properties map[string]any
}

// Method returns the collapsed MethodType block declared as name.
func (t *TypeType) Method(name string) (map[string]any, bool) {
	m, ok := t.Methods[name].(map[string]any)
	return m, ok
}

// Property returns the collapsed Property block declared as name.
func (t *TypeType) Property(name string) (map[string]any, bool) {
	p, ok := t.Properties[name].(map[string]any)
	return p, ok
}

// Registry is the result of loading a pack set.
type Registry struct {
	LoadID types.LoadID
	Digest string

	Items     map[string]ItemType
	Nodes     map[string]NodeType
	Types     map[string]*TypeType
	Objects   map[string]map[string]map[string]any
	Listeners *events.Registry
}

func newRegistry() *Registry {
	return &Registry{
		LoadID:    types.NewLoadID(),
		Items:     make(map[string]ItemType),
		Nodes:     make(map[string]NodeType),
		Types:     make(map[string]*TypeType),
		Objects:   make(map[string]map[string]map[string]any),
		Listeners: events.NewRegistry(),
	}
}

// Root returns the root bindings for an engine: each custom type id maps to
// its objects keyed by object id. Objects are shared, not copied, so setData
// on them is visible through the registry.
func (r *Registry) Root() map[string]any {
	root := make(map[string]any, len(r.Objects))
	for typeID, objects := range r.Objects {
		byID := make(map[string]any, len(objects))
		for id, obj := range objects {
			byID[id] = obj
		}
		root[typeID] = byID
	}
	return root
}

// Object returns the custom object typeID.id.
func (r *Registry) Object(typeID, id string) (map[string]any, bool) {
	obj, ok := r.Objects[typeID][id]
	return obj, ok
}

// Summary counts the entities by category.
type Summary struct {
	Items     int `json:"items"`
	Nodes     int `json:"nodes"`
	Types     int `json:"types"`
	Objects   int `json:"objects"`
	Listeners int `json:"listeners"`
}

// Summary counts the registry's entities.
func (r *Registry) Summary() Summary {
	s := Summary{
		Items:     len(r.Items),
		Nodes:     len(r.Nodes),
		Types:     len(r.Types),
		Listeners: r.Listeners.Len(),
	}
	for _, objects := range r.Objects {
		s.Objects += len(objects)
	}
	return s
}

func sortedIDs[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
