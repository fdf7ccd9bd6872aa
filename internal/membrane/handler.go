package membrane

import (
	"strconv"

	"github.com/dop251/goja"
)

// handler is the interception layer for one wrapped value in one
// crossing direction. It is a two-state machine: uninitialized (the
// shadow target carries no shape) and initialized (prototype, own
// descriptors and mutability state have been installed from the
// snapshot). Every trap activates initialize first; the state flag
// flips before any re-entrant work so cyclic object graphs terminate.
type handler struct {
	crossing *crossing
	raw      *goja.Object // from-realm original
	shadow   *goja.Object // to-realm placeholder backing the proxy

	initialized bool
}

// traps builds the to-realm handler object carrying the full trap set.
func (h *handler) traps() *goja.Object {
	obj := h.crossing.to.rt.NewObject()
	_ = obj.Set("get", h.trapGet)
	_ = obj.Set("set", h.trapSet)
	_ = obj.Set("has", h.trapHas)
	_ = obj.Set("deleteProperty", h.trapDeleteProperty)
	_ = obj.Set("ownKeys", h.trapOwnKeys)
	_ = obj.Set("getOwnPropertyDescriptor", h.trapGetOwnPropertyDescriptor)
	_ = obj.Set("defineProperty", h.trapDefineProperty)
	_ = obj.Set("getPrototypeOf", h.trapGetPrototypeOf)
	_ = obj.Set("setPrototypeOf", h.trapSetPrototypeOf)
	_ = obj.Set("isExtensible", h.trapIsExtensible)
	_ = obj.Set("preventExtensions", h.trapPreventExtensions)
	_ = obj.Set("apply", h.trapApply)
	_ = obj.Set("construct", h.trapConstruct)
	return obj
}

// initialize materializes the shadow from a fresh shape snapshot of
// the raw value. Idempotent; the no-op flip happens before any work
// that can re-enter the membrane.
func (h *handler) initialize() {
	if h.initialized {
		return
	}
	h.initialized = true

	c := h.crossing
	c.env.snapshots++
	meta := captureMeta(c.from, h.raw)

	shadowV := goja.Value(h.shadow)
	to := c.to

	proto := c.valueFor(meta.proto)
	_, _ = to.invoke(to.reflectSetPrototypeOf, shadowV, proto)

	for _, d := range meta.descriptors {
		h.installDescriptor(d)
	}

	switch {
	case meta.frozen:
		_, _ = to.invoke(to.objectFreeze, shadowV)
	case meta.sealed:
		_, _ = to.invoke(to.objectSeal, shadowV)
	case !meta.extensible:
		_, _ = to.invoke(to.reflectPreventExtensions, shadowV)
	}
}

// installDescriptor defines one snapshotted property onto the shadow
// with its members translated into the receiving realm. A conflicting
// pre-existing shadow property (a function shadow's own length, say)
// degrades to "not installed" rather than aborting initialization.
func (h *handler) installDescriptor(d propDescriptor) {
	c := h.crossing
	to := c.to
	desc := to.rt.NewObject()
	if d.accessor {
		_ = desc.Set("get", c.valueFor(d.getter))
		_ = desc.Set("set", c.valueFor(d.setter))
	} else {
		_ = desc.Set("value", c.valueFor(d.value))
		_ = desc.Set("writable", d.writable)
	}
	_ = desc.Set("enumerable", d.enumerable)
	_ = desc.Set("configurable", d.configurable)
	_, _ = to.invoke(to.reflectDefineProperty, goja.Value(h.shadow), d.key, desc)
}

// delegate runs an already-initialized meta-object operation against
// the shadow and rethrows any failure in the receiving realm.
func (h *handler) delegate(fn goja.Callable, args ...goja.Value) goja.Value {
	h.initialize()
	v, err := h.crossing.to.invoke(fn, args...)
	if err != nil {
		panic(rethrowable(h.crossing.to, err))
	}
	return v
}

func (h *handler) trapGet(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectGet, goja.Value(h.shadow), call.Argument(1), call.Argument(2))
}

func (h *handler) trapSet(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectSet, goja.Value(h.shadow), call.Argument(1), call.Argument(2), call.Argument(3))
}

func (h *handler) trapHas(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectHas, goja.Value(h.shadow), call.Argument(1))
}

func (h *handler) trapDeleteProperty(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectDeleteProperty, goja.Value(h.shadow), call.Argument(1))
}

func (h *handler) trapOwnKeys(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectOwnKeys, goja.Value(h.shadow))
}

func (h *handler) trapGetOwnPropertyDescriptor(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectGetOwnDescriptor, goja.Value(h.shadow), call.Argument(1))
}

// trapDefineProperty mutates only the shadow, never the original;
// cross-realm shape mutation stops at the membrane.
func (h *handler) trapDefineProperty(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectDefineProperty, goja.Value(h.shadow), call.Argument(1), call.Argument(2))
}

func (h *handler) trapGetPrototypeOf(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectGetPrototypeOf, goja.Value(h.shadow))
}

func (h *handler) trapSetPrototypeOf(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectSetPrototypeOf, goja.Value(h.shadow), call.Argument(1))
}

func (h *handler) trapIsExtensible(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectIsExtensible, goja.Value(h.shadow))
}

func (h *handler) trapPreventExtensions(call goja.FunctionCall) goja.Value {
	return h.delegate(h.crossing.to.reflectPreventExtensions, goja.Value(h.shadow))
}

// trapApply translates this and every argument into the callee's home
// realm, invokes the real function, and translates the result (or
// corrected error) back into the caller's realm.
func (h *handler) trapApply(call goja.FunctionCall) goja.Value {
	h.initialize()
	c := h.crossing

	fn, ok := goja.AssertFunction(h.raw)
	if !ok {
		panic(c.to.typeError("membrane: proxy target is not callable"))
	}
	rawThis := c.reverse.valueFor(call.Argument(1))
	rawArgs := c.reverse.arrayFor(argumentList(call.Argument(2)))

	ret, err := fn(rawThis, rawArgs...)
	if err != nil {
		panic(c.thrownFor(err))
	}
	return c.valueFor(ret)
}

// trapConstruct rejects plain invocation (no newTarget), translates
// arguments, runs the real constructor and translates the instance
// back.
func (h *handler) trapConstruct(call goja.FunctionCall) goja.Value {
	h.initialize()
	c := h.crossing

	newTarget := call.Argument(2)
	if !definedValue(newTarget) {
		panic(c.to.typeError("membrane: constructor requires new"))
	}
	ctor, ok := goja.AssertConstructor(h.raw)
	if !ok {
		panic(c.to.typeError("membrane: proxy target is not a constructor"))
	}
	rawArgs := c.reverse.arrayFor(argumentList(call.Argument(1)))

	// new.target must resolve on the raw side; for a direct `new` on
	// the proxy it unwraps to the raw constructor itself.
	rawNewTarget, ok := c.reverse.valueFor(newTarget).(*goja.Object)
	if !ok {
		rawNewTarget = h.raw
	}

	inst, err := ctor(rawNewTarget, rawArgs...)
	if err != nil {
		panic(c.thrownFor(err))
	}
	return c.valueFor(inst)
}

// argumentList flattens a realm-local arguments array into a slice.
func argumentList(v goja.Value) []goja.Value {
	arr, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	length := arr.Get("length").ToInteger()
	out := make([]goja.Value, 0, length)
	for i := int64(0); i < length; i++ {
		item := arr.Get(strconv.FormatInt(i, 10))
		if item == nil {
			item = goja.Undefined()
		}
		out = append(out, item)
	}
	return out
}
