package blocks

import (
	"sort"
	"strconv"

	"github.com/solatis/alkatest/internal/types"
)

// Env is an immutable lexical frame of name bindings with an optional parent.
// Lookups walk outward; a child frame shadows its ancestors. Frames are never
// modified after construction, so an Env may be shared freely between
// sibling evaluations.
type Env struct {
	parent *Env
	table  map[string]any
}

// NewEnv creates a root frame holding a copy of bindings.
func NewEnv(bindings map[string]any) *Env {
	return &Env{table: copyBindings(bindings)}
}

func copyBindings(bindings map[string]any) map[string]any {
	table := make(map[string]any, len(bindings))
	for k, v := range bindings {
		table[k] = v
	}
	return table
}

// With returns a child frame binding each name in bindings.
func (e *Env) With(bindings map[string]any) *Env {
	return &Env{parent: e, table: copyBindings(bindings)}
}

// Lookup returns the nearest binding of name.
func (e *Env) Lookup(name string) (any, bool) {
	for f := e; f != nil; f = f.parent {
		if v, ok := f.table[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether name is bound in any visible frame.
func (e *Env) Has(name string) bool {
	_, ok := e.Lookup(name)
	return ok
}

// Root returns the outermost frame.
func (e *Env) Root() *Env {
	f := e
	for f.parent != nil {
		f = f.parent
	}
	return f
}

// Names returns every visible name, sorted.
func (e *Env) Names() []string {
	seen := make(map[string]struct{})
	for f := e; f != nil; f = f.parent {
		for k := range f.table {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ReservePrefix returns the shortest reserved prefix under which none of the
// given names is bound: "@", then "2@", "3@" and so on. Nested loops each
// reserve their own prefix, so "@index" always names the outermost loop's
// position and "2@index" the next one in.
func (e *Env) ReservePrefix(names ...string) string {
	for n := 1; ; n++ {
		prefix := types.ReservedPrefix
		if n > 1 {
			prefix = strconv.Itoa(n) + types.ReservedPrefix
		}
		free := true
		for _, name := range names {
			if e.Has(prefix + name) {
				free = false
				break
			}
		}
		if free {
			return prefix
		}
	}
}

// scope binds a tuple of iteration variables under a freshly reserved prefix.
type scope struct {
	env    *Env
	prefix string
	names  []string
}

func (e *Env) scope(names ...string) scope {
	return scope{env: e, prefix: e.ReservePrefix(names...), names: names}
}

// bind returns a child of the scope's frame binding names[i] to values[i].
func (s scope) bind(values ...any) *Env {
	bindings := make(map[string]any, len(s.names))
	for i, name := range s.names {
		bindings[s.prefix+name] = values[i]
	}
	return s.env.With(bindings)
}
