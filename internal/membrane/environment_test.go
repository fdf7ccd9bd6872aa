package membrane

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T, opts ...Option) (*Environment, *goja.Runtime, *goja.Runtime) {
	t.Helper()

	outer := goja.New()
	inner := goja.New()
	env, err := NewEnvironment(outer, inner, opts...)
	require.NoError(t, err)
	return env, outer, inner
}

func mustRun(t *testing.T, rt *goja.Runtime, src string) goja.Value {
	t.Helper()

	v, err := rt.RunString(src)
	require.NoError(t, err, "script: %s", src)
	return v
}

func TestIdentityStability(t *testing.T) {
	env, outer, _ := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)

	p1 := env.ToInner(obj)
	p2 := env.ToInner(obj)
	assert.True(t, p1.StrictEquals(p2), "repeated crossings must return the same proxy")
}

func TestPrimitiveTransparency(t *testing.T) {
	env, outer, _ := newTestEnv(t)

	primitives := []string{
		`42`,
		`1.5`,
		`"hello"`,
		`true`,
		`null`,
		`undefined`,
		`Symbol("s")`,
		`10n`,
	}
	for _, src := range primitives {
		v := mustRun(t, outer, src)
		crossed := env.ToInner(v)
		assert.True(t, v.SameAs(crossed), "primitive %s must cross unchanged", src)
	}

	assert.Empty(t, env.toInner.proxies, "primitives must not enter the correspondence table")
	assert.Empty(t, env.toOuter.proxies)
}

func TestProxyUnwrapsTravellingHome(t *testing.T) {
	env, outer, _ := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	proxy := env.ToInner(obj)

	back := env.ToOuter(proxy)
	assert.True(t, back.StrictEquals(obj), "a proxy crossing home must unwrap to the original")
}

func TestRawValue(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	proxy := env.ToInner(obj)

	raw, ok := env.RawValue(proxy)
	require.True(t, ok)
	assert.True(t, raw.StrictEquals(obj))

	_, ok = env.RawValue(mustRun(t, inner, `({})`))
	assert.False(t, ok, "an unrelated object is not a membrane proxy")

	_, ok = env.RawValue(outer.ToValue(7))
	assert.False(t, ok)
}

func TestFunctionToInner(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	fn := mustRun(t, outer, `(function(x) { return x + 1 })`)
	wrapped, err := env.FunctionToInner(fn)
	require.NoError(t, err)

	require.NoError(t, inner.Set("f", wrapped))
	assert.Equal(t, int64(3), mustRun(t, inner, `f(2)`).ToInteger())

	_, err = env.FunctionToInner(mustRun(t, outer, `({})`))
	assert.Error(t, err, "a plain object must not satisfy the callable guarantee")
}

func TestArrayCrossesElementWise(t *testing.T) {
	env, outer, _ := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	items := []goja.Value{outer.ToValue(1), obj, outer.ToValue("x")}

	crossed := env.ArrayToInner(items)
	require.Len(t, crossed, 3)
	assert.True(t, crossed[0].SameAs(items[0]))
	assert.True(t, crossed[1].StrictEquals(env.ToInner(obj)), "elements cross through the same identity maps")
	assert.True(t, crossed[2].SameAs(items[2]))
}

func TestRevoke(t *testing.T) {
	env, outer, inner := newTestEnv(t)

	obj := mustRun(t, outer, `({a: 1})`)
	proxy := env.ToInner(obj)
	require.NoError(t, inner.Set("p", proxy))

	env.Revoke()

	_, err := inner.RunString(`p.a`)
	assert.Error(t, err, "a revoked proxy must reject every operation")

	assert.Panics(t, func() { env.ToInner(mustRun(t, outer, `({b: 2})`)) },
		"crossing a revoked environment must panic with a realm TypeError")
}
