package membrane

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/cordonlabs/cordon/internal/shared/id"
)

// shadowProgram produces a fresh plain function on every run. Function
// proxies need a callable, constructible placeholder target or the
// engine refuses apply/construct on the proxy.
var shadowProgram = goja.MustCompile("cordon:shadow", "(function(){})", true)

// Realm binds a goja runtime to a captured set of its intrinsic
// meta-object operations. The capture happens once, at construction,
// so code running inside the realm cannot later subvert membrane
// bookkeeping by replacing Reflect or Object statics.
type Realm struct {
	rt   *goja.Runtime
	id   id.RealmID
	name string

	reflectGet               goja.Callable
	reflectSet               goja.Callable
	reflectHas               goja.Callable
	reflectDeleteProperty    goja.Callable
	reflectOwnKeys           goja.Callable
	reflectGetOwnDescriptor  goja.Callable
	reflectDefineProperty    goja.Callable
	reflectGetPrototypeOf    goja.Callable
	reflectSetPrototypeOf    goja.Callable
	reflectIsExtensible      goja.Callable
	reflectPreventExtensions goja.Callable

	objectIsSealed goja.Callable
	objectIsFrozen goja.Callable
	objectSeal     goja.Callable
	objectFreeze   goja.Callable

	proxyRevocable goja.Callable
	errorCtor      *goja.Object
}

// NewRealm captures the runtime's intrinsics. It fails if the runtime's
// global scope no longer exposes the standard Reflect/Object/Proxy
// surface, which would leave the membrane unable to mediate anything.
func NewRealm(rt *goja.Runtime, name string) (*Realm, error) {
	r := &Realm{rt: rt, id: id.NewRealmID(), name: name}

	reflectObj, err := namedObject(rt, "Reflect")
	if err != nil {
		return nil, fmt.Errorf("realm %s: %w", name, err)
	}
	objectObj, err := namedObject(rt, "Object")
	if err != nil {
		return nil, fmt.Errorf("realm %s: %w", name, err)
	}
	proxyObj, err := namedObject(rt, "Proxy")
	if err != nil {
		return nil, fmt.Errorf("realm %s: %w", name, err)
	}
	errObj, err := namedObject(rt, "Error")
	if err != nil {
		return nil, fmt.Errorf("realm %s: %w", name, err)
	}
	r.errorCtor = errObj

	caps := []struct {
		owner *goja.Object
		prop  string
		dst   *goja.Callable
	}{
		{reflectObj, "get", &r.reflectGet},
		{reflectObj, "set", &r.reflectSet},
		{reflectObj, "has", &r.reflectHas},
		{reflectObj, "deleteProperty", &r.reflectDeleteProperty},
		{reflectObj, "ownKeys", &r.reflectOwnKeys},
		{reflectObj, "getOwnPropertyDescriptor", &r.reflectGetOwnDescriptor},
		{reflectObj, "defineProperty", &r.reflectDefineProperty},
		{reflectObj, "getPrototypeOf", &r.reflectGetPrototypeOf},
		{reflectObj, "setPrototypeOf", &r.reflectSetPrototypeOf},
		{reflectObj, "isExtensible", &r.reflectIsExtensible},
		{reflectObj, "preventExtensions", &r.reflectPreventExtensions},
		{objectObj, "isSealed", &r.objectIsSealed},
		{objectObj, "isFrozen", &r.objectIsFrozen},
		{objectObj, "seal", &r.objectSeal},
		{objectObj, "freeze", &r.objectFreeze},
		{proxyObj, "revocable", &r.proxyRevocable},
	}
	for _, c := range caps {
		fn, ok := goja.AssertFunction(c.owner.Get(c.prop))
		if !ok {
			return nil, fmt.Errorf("realm %s: intrinsic %s is not callable", name, c.prop)
		}
		*c.dst = fn
	}

	return r, nil
}

// Runtime returns the underlying goja runtime.
func (r *Realm) Runtime() *goja.Runtime { return r.rt }

// ID returns the realm's unique identity.
func (r *Realm) ID() id.RealmID { return r.id }

// Name returns the realm's diagnostic name.
func (r *Realm) Name() string { return r.name }

func namedObject(rt *goja.Runtime, name string) (*goja.Object, error) {
	v := rt.Get(name)
	if v == nil {
		return nil, fmt.Errorf("global %s is missing", name)
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("global %s is not an object", name)
	}
	return obj, nil
}

// invoke calls a captured intrinsic with an undefined receiver.
func (r *Realm) invoke(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	return fn(goja.Undefined(), args...)
}

// newShadowObject creates a plain placeholder object in this realm.
func (r *Realm) newShadowObject() *goja.Object {
	return r.rt.NewObject()
}

// newShadowFunction creates a callable, constructible placeholder in
// this realm.
func (r *Realm) newShadowFunction() (*goja.Object, error) {
	v, err := r.rt.RunProgram(shadowProgram)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("realm %s: shadow program did not produce a function", r.name)
	}
	return obj, nil
}

// newError constructs a base Error carrying msg in this realm.
func (r *Realm) newError(msg string) goja.Value {
	obj, err := r.rt.New(r.errorCtor, r.rt.ToValue(msg))
	if err != nil {
		return r.rt.NewTypeError(msg)
	}
	return obj
}

// typeError builds (but does not throw) a TypeError in this realm.
func (r *Realm) typeError(format string, args ...interface{}) *goja.Object {
	return r.rt.NewTypeError(fmt.Sprintf(format, args...))
}
