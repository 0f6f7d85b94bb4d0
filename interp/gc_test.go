package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssiccha/GAP.jl/guest"
	"github.com/ssiccha/GAP.jl/interp"
)

func TestCollect_ReclaimsUnreachable(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v := g.BoxInt64(1)
	before := g.HeapSize()
	require.Positive(t, before)

	reclaimed := g.Collect()
	assert.Positive(t, reclaimed)
	assert.Less(t, g.HeapSize(), before)

	// Reclaimed values are poisoned: any later access panics.
	assert.Panics(t, func() { g.Int64Of(v) })
	assert.Equal(t, 1, g.Collections())
}

func TestCollect_KeepsGlobals(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v := g.BoxString("keep me")
	require.NoError(t, g.SetGlobal("kept", v))

	g.Collect()

	assert.Equal(t, "keep me", g.StringOf(v))
	got, ok := g.Global("kept")
	require.True(t, ok)
	assert.Equal(t, "keep me", g.StringOf(got))
}

func TestCollect_TracesThroughArrays(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	inner := g.BoxInt64(10)
	arr, err := g.NewArray(guest.ElemAny, 1)
	require.NoError(t, err)
	require.NoError(t, g.ArraySet(arr, 1, inner))
	require.NoError(t, g.SetGlobal("root", arr))

	g.Collect()

	// inner is reachable only through the rooted array and must survive.
	assert.Equal(t, int64(10), g.Int64Of(inner))
}

func TestCollect_UnrootedArrayElementsDie(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	inner := g.BoxInt64(10)
	arr, err := g.NewArray(guest.ElemAny, 1)
	require.NoError(t, err)
	require.NoError(t, g.ArraySet(arr, 1, inner))

	g.Collect()

	assert.Panics(t, func() { g.Int64Of(inner) })
	assert.Panics(t, func() { _, _ = g.ArrayLen(arr) })
}

func TestCollect_BuiltinsSurvive(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	fn, err := g.Function("identity")
	require.NoError(t, err)

	g.Collect()

	// Base-namespace callables are roots; the raw reference stays valid
	// across collections without any anchoring.
	arg := g.BoxInt64(4)
	res, err := g.Call1(fn, arg)
	require.NoError(t, err)
	assert.Equal(t, int64(4), g.Int64Of(res))
}
