package membrane

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"
)

// remapSkip lists global keys that must keep the inner realm's own
// binding. Remapping globalThis would hand the sandbox a proxy of the
// outer global as its top-level identity.
var remapSkip = map[string]struct{}{
	"globalThis": {},
}

// RemapGlobals installs a membrane-mediated descriptor on the inner
// global object for every own descriptor of the outer global object,
// plus the given endowments, so that unqualified identifiers inside
// evaluated inner source resolve to proxies rather than direct outer
// references. Inner globals that are non-configurable (undefined, NaN,
// Infinity) keep the inner realm's own binding. Used once, at sandbox
// setup.
func (e *Environment) RemapGlobals(endowments map[string]goja.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("membrane: remap globals: %v", r)
		}
	}()
	if e.revoked {
		return ErrRevoked
	}

	source := goja.Value(e.outer.rt.GlobalObject())
	target := goja.Value(e.inner.rt.GlobalObject())

	keysV, err := e.outer.invoke(e.outer.reflectOwnKeys, source)
	if err != nil {
		return fmt.Errorf("membrane: enumerate outer globals: %w", err)
	}
	keysObj, ok := keysV.(*goja.Object)
	if !ok {
		return fmt.Errorf("membrane: outer global keys are not an object")
	}

	length := keysObj.Get("length").ToInteger()
	for i := int64(0); i < length; i++ {
		key := keysObj.Get(strconv.FormatInt(i, 10))
		if key == nil {
			continue
		}
		if _, isSym := key.(*goja.Symbol); !isSym {
			if _, skip := remapSkip[key.String()]; skip {
				continue
			}
		}
		if !e.canRedefine(target, key) {
			continue
		}
		d, ok := captureDescriptor(e.outer, e.outer.rt.GlobalObject(), key)
		if !ok {
			continue
		}
		e.defineThrough(target, d)
	}

	for name, v := range endowments {
		key := e.inner.rt.ToValue(name)
		if !e.canRedefine(target, key) {
			continue
		}
		e.defineThrough(target, propDescriptor{
			key:          key,
			value:        v,
			writable:     true,
			enumerable:   true,
			configurable: true,
		})
	}
	return nil
}

// canRedefine reports whether the inner global can accept a remapped
// descriptor for key.
func (e *Environment) canRedefine(target goja.Value, key goja.Value) bool {
	descV, err := e.inner.invoke(e.inner.reflectGetOwnDescriptor, target, key)
	if err != nil {
		return false
	}
	if !definedValue(descV) {
		return true
	}
	desc, ok := descV.(*goja.Object)
	if !ok {
		return true
	}
	return desc.Get("configurable").ToBoolean()
}

// defineThrough installs one outer descriptor onto an inner target
// with its members translated across the membrane.
func (e *Environment) defineThrough(target goja.Value, d propDescriptor) {
	desc := e.inner.rt.NewObject()
	if d.accessor {
		_ = desc.Set("get", e.toInner.valueFor(d.getter))
		_ = desc.Set("set", e.toInner.valueFor(d.setter))
	} else {
		_ = desc.Set("value", e.toInner.valueFor(d.value))
		_ = desc.Set("writable", d.writable)
	}
	_ = desc.Set("enumerable", d.enumerable)
	_ = desc.Set("configurable", d.configurable)
	_, _ = e.inner.invoke(e.inner.reflectDefineProperty, target, d.key, desc)
}
