package membrane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetThroughMembrane(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1, nested: {b: 2}})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.Equal(t, int64(1), mustRun(t, inner, `p.a`).ToInteger())
	assert.Equal(t, int64(2), mustRun(t, inner, `p.nested.b`).ToInteger())
	assert.True(t, mustRun(t, inner, `p.nested === p.nested`).ToBoolean(),
		"nested values must keep a stable identity")
}

func TestInheritedPropertyThroughPrototype(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `
		(function() {
			const proto = { greet() { return "hi " + this.who } };
			const o = Object.create(proto);
			o.who = "sandbox";
			return o;
		})()
	`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.Equal(t, "hi sandbox", mustRun(t, inner, `p.greet()`).String())
}

func TestSetStaysOnThisSideOfTheBoundary(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))
	require.NoError(t, outer.Set("o", obj))

	mustRun(t, inner, `p.b = 5`)
	assert.Equal(t, int64(5), mustRun(t, inner, `p.b`).ToInteger())
	assert.True(t, mustRun(t, outer, `o.b === undefined`).ToBoolean(),
		"data assignment mutates only the shadow, never the original")
}

func TestSetterCrossesTheBoundary(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `
		(function() {
			let store = 0;
			return {
				get v() { return store },
				set v(x) { store = x * 10 },
			};
		})()
	`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	mustRun(t, inner, `p.v = 4`)
	assert.Equal(t, int64(40), mustRun(t, inner, `p.v`).ToInteger(),
		"accessors must run in their home realm")
}

func TestFrozenShapeFidelity(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `Object.freeze({a: 1})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.False(t, mustRun(t, inner, `Object.isExtensible(p)`).ToBoolean())
	assert.True(t, mustRun(t, inner, `Object.isFrozen(p)`).ToBoolean())

	_, err := inner.RunString(`"use strict"; p.a = 2;`)
	assert.Error(t, err, "mutating a frozen proxy must fail in strict mode")
	assert.Equal(t, int64(1), mustRun(t, inner, `p.a`).ToInteger())
}

func TestSealedObjectMirrorsSealing(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `Object.seal({a: 1})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.True(t, mustRun(t, inner, `Object.isSealed(p)`).ToBoolean())
	mustRun(t, inner, `p.a = 9`)
	assert.Equal(t, int64(9), mustRun(t, inner, `p.a`).ToInteger(),
		"sealed leaves existing properties writable")
	assert.False(t, mustRun(t, inner, `delete p.a`).ToBoolean())
}

func TestLazyInitialization(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	proxy := env.ToInner(obj)
	assert.Equal(t, 0, env.Snapshots(), "an untouched proxy must not snapshot its target")

	require.NoError(t, inner.Set("p", proxy))
	mustRun(t, inner, `p.a`)
	assert.Equal(t, 1, env.Snapshots())

	mustRun(t, inner, `p.a; Object.keys(p)`)
	assert.Equal(t, 1, env.Snapshots(), "the snapshot is captured exactly once")
}

func TestSnapshotIsImmutable(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))
	require.NoError(t, outer.Set("o", obj))

	assert.Equal(t, int64(1), mustRun(t, inner, `p.a`).ToInteger())
	mustRun(t, outer, `o.a = 2`)
	assert.Equal(t, int64(1), mustRun(t, inner, `p.a`).ToInteger(),
		"later home-realm mutations are not observed by an initialized proxy")
}

func TestSelfReferentialObjectTerminates(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `(function() { const o = {}; o.self = o; return o })()`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.True(t, mustRun(t, inner, `p.self.self.self === p`).ToBoolean())
}

func TestOwnKeysAndEnumeration(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1, b: 2})`)
	require.NoError(t, inner.Set("p", env.ToInner(obj)))

	assert.Equal(t, "a,b", mustRun(t, inner, `Object.keys(p).join(",")`).String())
	assert.True(t, mustRun(t, inner, `"a" in p`).ToBoolean())
	assert.True(t, mustRun(t, inner, `delete p.a`).ToBoolean())
	assert.False(t, mustRun(t, inner, `"a" in p`).ToBoolean(),
		"deletion affects this realm's view")
}

func TestFunctionCallAcrossMembrane(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	mathObj := outer.Get("Math")
	require.NotNil(t, mathObj)
	require.NoError(t, inner.Set("M", env.ToInner(mathObj)))

	assert.Equal(t, int64(5), mustRun(t, inner, `M.max(1, 5, 3)`).ToInteger())
	assert.True(t, mustRun(t, inner, `M.max === M.max`).ToBoolean(),
		"the wrapped function identity is stable across calls")
}

func TestObjectArgumentsCrossBothWays(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	fn := mustRun(t, outer, `(function(o) { return o.x + 1 })`)
	require.NoError(t, inner.Set("f", env.ToInner(fn)))

	// The inner argument object crosses inner-to-outer; the outer
	// function reads it through a proxy of its own.
	assert.Equal(t, int64(8), mustRun(t, inner, `f({x: 7})`).ToInteger())
}

func TestConstructAcrossMembrane(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	ctor := mustRun(t, outer, `(class Point { constructor(x, y) { this.x = x; this.y = y } })`)
	require.NoError(t, inner.Set("P", env.ToInner(ctor)))

	assert.Equal(t, int64(2), mustRun(t, inner, `new P(2, 3).x`).ToInteger())
	assert.True(t, mustRun(t, inner, `new P(0, 0) instanceof P`).ToBoolean(),
		"instanceof must hold against the wrapped constructor")
}

func TestConstructSeesNewTarget(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	ctor := mustRun(t, outer, `
		(function Point() { this.direct = new.target === Point })
	`)
	require.NoError(t, inner.Set("P", env.ToInner(ctor)))

	res := mustRun(t, inner, `new P().direct`)
	assert.True(t, res.ToBoolean(),
		"new.target must resolve to the original constructor, not the proxy")
}

func TestConstructGuardRejectsPlainCall(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	ctor := mustRun(t, outer, `(class Point {})`)
	require.NoError(t, inner.Set("P", env.ToInner(ctor)))

	caught := mustRun(t, inner, `
		(function() {
			try { P(1) } catch (e) { return e instanceof TypeError }
			return false;
		})()
	`)
	assert.True(t, caught.ToBoolean(), "calling a wrapped class without new must raise a TypeError")
}

func TestNewOnNonConstructible(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	fn := mustRun(t, outer, `(x => x)`)
	require.NoError(t, inner.Set("f", env.ToInner(fn)))

	caught := mustRun(t, inner, `
		(function() {
			try { new f() } catch (e) { return e instanceof TypeError }
			return false;
		})()
	`)
	assert.True(t, caught.ToBoolean(), "new on a wrapped arrow function must raise a TypeError")
}
