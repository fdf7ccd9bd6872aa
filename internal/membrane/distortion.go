package membrane

import (
	"errors"

	"github.com/dop251/goja"
)

// ErrNotAnObject reports a distortion registration keyed on a
// primitive. Primitives cross by value and cannot be distorted.
var ErrNotAnObject = errors.New("membrane: distortion key must be an object or function")

// Distortions is an identity-keyed substitution table consulted before
// an outer value is wrapped for the inner realm. Substitution is by
// reference identity: a capability reachable through two different
// references is distorted independently for each reference.
type Distortions struct {
	table map[*goja.Object]goja.Value
}

// NewDistortions creates an empty substitution table.
func NewDistortions() *Distortions {
	return &Distortions{table: make(map[*goja.Object]goja.Value)}
}

// Replace registers replacement as the stand-in exposed whenever
// original is about to cross into the inner realm. The original must
// be an object or function; the replacement may be any value.
func (d *Distortions) Replace(original, replacement goja.Value) error {
	obj, ok := original.(*goja.Object)
	if !ok {
		return ErrNotAnObject
	}
	d.table[obj] = replacement
	return nil
}

// Len reports how many substitutions are registered.
func (d *Distortions) Len() int { return len(d.table) }

func (d *Distortions) lookup(obj *goja.Object) (goja.Value, bool) {
	v, ok := d.table[obj]
	return v, ok
}
