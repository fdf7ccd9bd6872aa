package membrane

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// ErrRevoked reports a crossing attempted after Revoke.
var ErrRevoked = errors.New("membrane: environment has been revoked")

// Environment is the long-lived, per-sandbox authority for identity
// correspondence between the two realms. It owns one crossing per
// direction; each crossing holds the raw-to-proxy and proxy-to-raw
// maps for values travelling that way. Entries are append-only and
// live as long as the environment.
type Environment struct {
	outer *Realm
	inner *Realm

	toInner *crossing
	toOuter *crossing

	distortions *Distortions
	log         *zap.Logger

	snapshots int
	revoked   bool
}

// Option configures an Environment.
type Option func(*Environment)

// WithDistortions installs the substitution table consulted on
// outer-to-inner crossings.
func WithDistortions(d *Distortions) Option {
	return func(e *Environment) { e.distortions = d }
}

// WithLogger attaches a logger for proxy-creation traces.
func WithLogger(log *zap.Logger) Option {
	return func(e *Environment) { e.log = log }
}

// NewEnvironment joins an outer (trusted) and inner (sandboxed)
// runtime with a bidirectional membrane.
func NewEnvironment(outerRT, innerRT *goja.Runtime, opts ...Option) (*Environment, error) {
	outer, err := NewRealm(outerRT, "outer")
	if err != nil {
		return nil, err
	}
	inner, err := NewRealm(innerRT, "inner")
	if err != nil {
		return nil, err
	}

	e := &Environment{
		outer: outer,
		inner: inner,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.distortions == nil {
		e.distortions = NewDistortions()
	}

	e.toInner = &crossing{
		env:         e,
		from:        outer,
		to:          inner,
		proxies:     make(map[*goja.Object]goja.Value),
		raws:        make(map[*goja.Object]goja.Value),
		distortions: e.distortions,
	}
	e.toOuter = &crossing{
		env:     e,
		from:    inner,
		to:      outer,
		proxies: make(map[*goja.Object]goja.Value),
		raws:    make(map[*goja.Object]goja.Value),
	}
	e.toInner.reverse = e.toOuter
	e.toOuter.reverse = e.toInner
	return e, nil
}

// Outer returns the trusted realm.
func (e *Environment) Outer() *Realm { return e.outer }

// Inner returns the sandboxed realm.
func (e *Environment) Inner() *Realm { return e.inner }

// ToInner translates an outer value for consumption by the inner
// realm. Primitives pass unchanged; objects and functions come back as
// the inner-facing proxy, stable across repeated crossings.
//
// Crossing after Revoke panics with an inner-realm TypeError, so a
// trap-context caller surfaces it as a JS exception; Go callers must
// not cross a revoked environment.
func (e *Environment) ToInner(v goja.Value) goja.Value {
	return e.toInner.valueFor(v)
}

// ToOuter translates an inner value for consumption by the outer
// realm. The Revoke contract matches ToInner, with the TypeError
// raised in the outer realm.
func (e *Environment) ToOuter(v goja.Value) goja.Value {
	return e.toOuter.valueFor(v)
}

// FunctionToInner is ToInner with a callability guarantee: it fails if
// the crossing result is not invocable from the inner realm.
func (e *Environment) FunctionToInner(v goja.Value) (goja.Value, error) {
	return e.toInner.functionFor(v)
}

// FunctionToOuter is ToOuter with a callability guarantee.
func (e *Environment) FunctionToOuter(v goja.Value) (goja.Value, error) {
	return e.toOuter.functionFor(v)
}

// ArrayToInner translates a sequence element-wise into the inner
// realm. Elements cross independently; the sequence itself is new.
func (e *Environment) ArrayToInner(items []goja.Value) []goja.Value {
	return e.toInner.arrayFor(items)
}

// ArrayToOuter translates a sequence element-wise into the outer realm.
func (e *Environment) ArrayToOuter(items []goja.Value) []goja.Value {
	return e.toOuter.arrayFor(items)
}

// RawValue returns the original behind a membrane proxy, in whichever
// realm the original lives. ok is false if v is not a membrane proxy
// of this environment.
func (e *Environment) RawValue(v goja.Value) (goja.Value, bool) {
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return nil, false
	}
	if raw, ok := e.toInner.raws[obj]; ok {
		return raw, true
	}
	if raw, ok := e.toOuter.raws[obj]; ok {
		return raw, true
	}
	return nil, false
}

// Snapshots reports how many shape snapshots have been captured. A
// proxy that is never interacted with contributes nothing here.
func (e *Environment) Snapshots() int { return e.snapshots }

// Revoke tears down every proxy the environment ever created, in both
// directions. The environment is unusable afterwards.
func (e *Environment) Revoke() {
	if e.revoked {
		return
	}
	e.revoked = true
	e.toInner.revokeAll()
	e.toOuter.revokeAll()
}

// crossing is one direction of the membrane: it wraps values produced
// in the from realm for consumption in the to realm.
type crossing struct {
	env     *Environment
	from    *Realm
	to      *Realm
	reverse *crossing

	// proxies maps a raw from-realm value to its to-realm proxy;
	// raws is the inverse. Both are append-only.
	proxies map[*goja.Object]goja.Value
	raws    map[*goja.Object]goja.Value

	// distortions is consulted before wrapping; nil on the
	// inner-to-outer direction.
	distortions *Distortions

	revokes []goja.Callable
}

// valueFor implements the crossing decision of one direction:
// primitives pass through, known values return their recorded proxy,
// proxies of the opposite direction unwrap to their original, and
// unseen objects get a fresh revocable proxy.
func (c *crossing) valueFor(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return v
	}
	if c.env.revoked {
		panic(c.to.typeError("membrane: environment has been revoked"))
	}
	if p, ok := c.proxies[obj]; ok {
		return p
	}
	if raw, ok := c.reverse.raws[obj]; ok {
		// A proxy travelling home unwraps to its original.
		return raw
	}
	if c.distortions != nil {
		if sub, ok := c.distortions.lookup(obj); ok {
			subObj, subIsObj := sub.(*goja.Object)
			if !subIsObj {
				return sub
			}
			if p, ok := c.proxies[subObj]; ok {
				return p
			}
			if raw, ok := c.reverse.raws[subObj]; ok {
				return raw
			}
			obj = subObj
		}
	}
	return c.newProxy(obj)
}

func (c *crossing) functionFor(v goja.Value) (goja.Value, error) {
	wrapped := c.valueFor(v)
	if _, ok := goja.AssertFunction(wrapped); !ok {
		return nil, fmt.Errorf("membrane: %s value is not callable across the boundary", c.from.Name())
	}
	return wrapped, nil
}

func (c *crossing) arrayFor(items []goja.Value) []goja.Value {
	if items == nil {
		return nil
	}
	out := make([]goja.Value, len(items))
	for i, item := range items {
		out[i] = c.valueFor(item)
	}
	return out
}

// newProxy creates the to-realm revocable proxy for raw and records
// the correspondence in both maps before returning. Recording first is
// what makes re-entrant crossings of the same value (cyclic graphs,
// self-referential prototypes) terminate.
func (c *crossing) newProxy(raw *goja.Object) goja.Value {
	h := &handler{crossing: c, raw: raw}

	// Class constructors are constructible but not callable, so both
	// checks matter when choosing the shadow kind.
	_, callable := goja.AssertFunction(raw)
	_, constructible := goja.AssertConstructor(raw)

	var shadow *goja.Object
	if callable || constructible {
		fn, err := c.to.newShadowFunction()
		if err != nil {
			panic(c.to.typeError("membrane: cannot create function shadow: %v", err))
		}
		shadow = fn
	} else {
		shadow = c.to.newShadowObject()
	}
	h.shadow = shadow

	res, err := c.to.invoke(c.to.proxyRevocable, shadow, h.traps())
	if err != nil {
		panic(c.to.typeError("membrane: cannot create proxy: %v", err))
	}
	resObj, ok := res.(*goja.Object)
	if !ok {
		panic(c.to.typeError("membrane: Proxy.revocable returned a non-object"))
	}
	proxy := resObj.Get("proxy")
	proxyObj, ok := proxy.(*goja.Object)
	if !ok {
		panic(c.to.typeError("membrane: Proxy.revocable returned no proxy"))
	}
	if revoke, ok := goja.AssertFunction(resObj.Get("revoke")); ok {
		c.revokes = append(c.revokes, revoke)
	}

	c.proxies[raw] = proxy
	c.raws[proxyObj] = raw

	c.env.log.Debug("membrane proxy created",
		zap.String("from", c.from.Name()),
		zap.String("to", c.to.Name()),
	)
	return proxy
}

func (c *crossing) revokeAll() {
	for _, revoke := range c.revokes {
		_, _ = revoke(goja.Undefined())
	}
	c.revokes = nil
}
