package membrane

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// ThrownError is the realm-safe Go view of an exception that crossed
// the membrane: a kind tag and a message, never a foreign handle.
type ThrownError struct {
	Name    string
	Message string
}

func (e *ThrownError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// standardErrorCtors are the constructor names the correction step may
// resolve by name in the receiving realm's global scope.
var standardErrorCtors = map[string]struct{}{
	"Error":          {},
	"TypeError":      {},
	"RangeError":     {},
	"ReferenceError": {},
	"SyntaxError":    {},
	"EvalError":      {},
	"URIError":       {},
	"AggregateError": {},
}

// rethrowable converts an error raised by a same-realm intrinsic call
// into a value the realm's VM can throw.
func rethrowable(r *Realm, err error) interface{} {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex
	}
	return r.rt.NewGoError(err)
}

// thrownFor applies error identity correction to a failure raised on
// the from side of this crossing, producing a value safe to throw in
// the to realm. The exception's occurrence is never hidden; only its
// identity and attached metadata change. Stack information from the
// throwing realm is deliberately discarded on reconstruction.
func (c *crossing) thrownFor(err error) goja.Value {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return c.to.newError(interrupted.Error())
	}
	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return c.to.newError(overflow.Error())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return c.correctIdentity(ex.Value())
	}
	return c.to.newError(err.Error())
}

// correctIdentity re-anchors a thrown from-realm value in the to
// realm. Primitives cross by value. A value that originated in the to
// realm unwraps and is rethrown as-is; anything else is reconstructed
// from its constructor correspondence, then by standard constructor
// name, then as a plain base error carrying the original message.
func (c *crossing) correctIdentity(thrown goja.Value) goja.Value {
	if thrown == nil {
		return c.to.newError("")
	}
	obj, isObj := thrown.(*goja.Object)
	if !isObj {
		return thrown
	}
	if raw, ok := c.reverse.raws[obj]; ok {
		return raw
	}

	msg := safeString(obj, "message")
	if msg == "" {
		msg = safeString(obj, "name")
	}

	if ctorObj := safeObject(obj, "constructor"); ctorObj != nil {
		// The constructor may itself be a membrane proxy whose
		// original lives in the receiving realm.
		if rawCtor, ok := c.reverse.raws[ctorObj]; ok {
			if inst, err := c.to.rt.New(rawCtor, c.to.rt.ToValue(msg)); err == nil {
				return inst
			}
		}
		if name := safeString(ctorObj, "name"); name != "" {
			if _, std := standardErrorCtors[name]; std {
				if ctor := c.to.rt.Get(name); ctor != nil {
					if inst, err := c.to.rt.New(ctor, c.to.rt.ToValue(msg)); err == nil {
						return inst
					}
				}
			}
		}
	}

	return c.to.newError(msg)
}

// AsThrown converts an evaluation error into its realm-safe form. ok
// is false for errors that did not originate as a thrown value (pool
// exhaustion, interrupts, host failures).
func AsThrown(err error) (*ThrownError, bool) {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return nil, false
	}
	thrown := ex.Value()
	te := &ThrownError{}
	if obj, ok := thrown.(*goja.Object); ok {
		te.Name = safeString(obj, "name")
		te.Message = safeString(obj, "message")
		if te.Name == "" && te.Message == "" {
			te.Message = ex.Error()
		}
	} else if thrown != nil {
		te.Message = thrown.String()
	}
	return te, true
}

// safeString reads a string-valued property, treating any failure
// (revoked proxy, hostile getter) as absent.
func safeString(obj *goja.Object, prop string) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	v := obj.Get(prop)
	if !definedValue(v) {
		return ""
	}
	return v.String()
}

// safeObject reads an object-valued property on the same terms.
func safeObject(obj *goja.Object, prop string) (res *goja.Object) {
	defer func() {
		if recover() != nil {
			res = nil
		}
	}()
	v := obj.Get(prop)
	o, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return o
}
