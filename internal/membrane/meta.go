package membrane

import (
	"strconv"

	"github.com/dop251/goja"
)

// propDescriptor is one own property captured from a wrapped value.
// All member values belong to the value's home realm and still need
// translation before they touch the other side.
type propDescriptor struct {
	key          goja.Value
	value        goja.Value
	getter       goja.Value
	setter       goja.Value
	accessor     bool
	writable     bool
	enumerable   bool
	configurable bool
}

// TargetMeta is the immutable shape snapshot of a wrapped value:
// prototype, own descriptors and mutability flags, captured once at
// first trap activation. Later mutations of the original are not
// observed by an already initialized proxy.
type TargetMeta struct {
	proto       goja.Value
	descriptors []propDescriptor
	extensible  bool
	sealed      bool
	frozen      bool
}

// captureMeta snapshots raw's observable shape using its home realm's
// captured intrinsics. Introspection failures on individual keys are
// treated as "property absent" so a hostile or revoked value degrades
// the shape instead of aborting the crossing.
func captureMeta(r *Realm, raw *goja.Object) *TargetMeta {
	meta := &TargetMeta{extensible: true}
	rawV := goja.Value(raw)

	if v, err := r.invoke(r.reflectGetPrototypeOf, rawV); err == nil {
		meta.proto = v
	} else {
		meta.proto = goja.Null()
	}
	if v, err := r.invoke(r.reflectIsExtensible, rawV); err == nil {
		meta.extensible = v.ToBoolean()
	}
	if v, err := r.invoke(r.objectIsSealed, rawV); err == nil {
		meta.sealed = v.ToBoolean()
	}
	if v, err := r.invoke(r.objectIsFrozen, rawV); err == nil {
		meta.frozen = v.ToBoolean()
	}

	keys, err := r.invoke(r.reflectOwnKeys, rawV)
	if err != nil {
		return meta
	}
	keysObj, ok := keys.(*goja.Object)
	if !ok {
		return meta
	}
	length := keysObj.Get("length").ToInteger()
	for i := int64(0); i < length; i++ {
		key := keysObj.Get(strconv.FormatInt(i, 10))
		if key == nil {
			continue
		}
		if d, ok := captureDescriptor(r, raw, key); ok {
			meta.descriptors = append(meta.descriptors, d)
		}
	}
	return meta
}

// captureDescriptor reads one own descriptor of raw. A missing or
// unreadable descriptor reports ok=false.
func captureDescriptor(r *Realm, raw *goja.Object, key goja.Value) (d propDescriptor, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	descV, err := r.invoke(r.reflectGetOwnDescriptor, raw, key)
	if err != nil || descV == nil || goja.IsUndefined(descV) {
		return d, false
	}
	desc, isObj := descV.(*goja.Object)
	if !isObj {
		return d, false
	}

	d.key = key
	d.getter = desc.Get("get")
	d.setter = desc.Get("set")
	d.accessor = definedValue(d.getter) || definedValue(d.setter)
	if d.accessor {
		d.enumerable = desc.Get("enumerable").ToBoolean()
		d.configurable = desc.Get("configurable").ToBoolean()
		return d, true
	}
	d.getter = nil
	d.setter = nil
	d.value = desc.Get("value")
	d.writable = desc.Get("writable").ToBoolean()
	d.enumerable = desc.Get("enumerable").ToBoolean()
	d.configurable = desc.Get("configurable").ToBoolean()
	return d, true
}

func definedValue(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v)
}
