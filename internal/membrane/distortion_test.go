package membrane

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistortionPrecedence(t *testing.T) {
	outer := goja.New()

	real := mustRun(t, outer, `(function() { return "network data" })`)
	stub := mustRun(t, outer, `(function() { throw new Error("forbidden") })`)

	d := NewDistortions()
	require.NoError(t, d.Replace(real, stub))

	env, err := NewEnvironment(outer, goja.New(), WithDistortions(d))
	require.NoError(t, err)
	inner := env.Inner().Runtime()

	require.NoError(t, inner.Set("fetch", env.ToInner(real)))
	res := mustRun(t, inner, `
		(function() {
			try { return fetch() } catch (e) { return "blocked: " + e.message }
		})()
	`)
	assert.Equal(t, "blocked: forbidden", res.String(),
		"the distorted reference must observe the stand-in's behavior")
}

func TestDistortionIsPerReference(t *testing.T) {
	outer := goja.New()

	// A closure captured before substitution bypasses the membrane
	// and keeps the original behavior.
	capture := mustRun(t, outer, `
		(function() {
			const real = function() { return "network data" };
			return { real: real, invoke: function() { return real() } };
		})()
	`)
	captureObj := capture.ToObject(outer)
	real := captureObj.Get("real")

	d := NewDistortions()
	require.NoError(t, d.Replace(real, mustRun(t, outer, `(function() { return "stubbed" })`)))

	env, err := NewEnvironment(outer, goja.New(), WithDistortions(d))
	require.NoError(t, err)
	inner := env.Inner().Runtime()

	require.NoError(t, inner.Set("fetch", env.ToInner(real)))
	require.NoError(t, inner.Set("invoke", env.ToInner(captureObj.Get("invoke"))))

	assert.Equal(t, "stubbed", mustRun(t, inner, `fetch()`).String())
	assert.Equal(t, "network data", mustRun(t, inner, `invoke()`).String(),
		"a pre-captured reference must keep the original behavior")
}

func TestDistortionIdentityIsStable(t *testing.T) {
	outer := goja.New()

	real := mustRun(t, outer, `(function() { return 1 })`)
	stub := mustRun(t, outer, `(function() { return 2 })`)

	d := NewDistortions()
	require.NoError(t, d.Replace(real, stub))
	assert.Equal(t, 1, d.Len())

	env, err := NewEnvironment(outer, goja.New(), WithDistortions(d))
	require.NoError(t, err)

	p1 := env.ToInner(real)
	p2 := env.ToInner(real)
	p3 := env.ToInner(stub)
	assert.True(t, p1.StrictEquals(p2))
	assert.True(t, p1.StrictEquals(p3),
		"the original and its stand-in share one proxy, so identity stays stable")
}

func TestDistortionRejectsPrimitiveKey(t *testing.T) {
	outer := goja.New()

	d := NewDistortions()
	err := d.Replace(outer.ToValue(42), outer.ToValue(43))
	assert.ErrorIs(t, err, ErrNotAnObject)
}
