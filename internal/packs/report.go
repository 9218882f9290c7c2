package packs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/alkatest/internal/types"
)

// Categories reported in diagnostics. Custom objects report their type id.
const (
	CategoryPack      = "pack"
	CategoryItems     = "items"
	CategoryNodes     = "nodes"
	CategoryTypes     = "types"
	CategoryListeners = "eventListeners"
)

// ErrFieldOverride marks a later pack trying to replace a custom-object field
// or dictionary entry an earlier pack already set. The object is kept.
var ErrFieldOverride = fmt.Errorf("%w: field already set by an earlier pack", types.ErrDuplicateIdentifier)

// ErrNotStatic marks a custom-object field whose value needs runtime context.
var ErrNotStatic = errors.New("value is not static")

// ErrUnknownType marks custom objects whose type did not load.
var ErrUnknownType = errors.New("unknown custom type")

// Diagnostic is one loader finding. Err carries a taxonomy sentinel usable
// with errors.Is.
type Diagnostic struct {
	Pack     string
	Category string
	ID       string
	Err      error
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Pack)
	if d.Category != "" {
		b.WriteString(": " + d.Category)
	}
	if d.ID != "" {
		b.WriteString(" " + d.ID)
	}
	b.WriteString(": ")
	b.WriteString(d.Err.Error())
	return b.String()
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Report lists every diagnostic of one load in the order they occurred.
type Report struct {
	Diagnostics []Diagnostic
}

// Len returns the number of diagnostics.
func (r *Report) Len() int { return len(r.Diagnostics) }

// Has reports whether any diagnostic matches target.
func (r *Report) Has(target error) bool {
	for _, d := range r.Diagnostics {
		if errors.Is(d.Err, target) {
			return true
		}
	}
	return false
}

// Err joins every diagnostic, or returns nil for a clean load.
func (r *Report) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	errs := make([]error, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		errs[i] = d
	}
	return errors.Join(errs...)
}
