package gapjl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gapjl "github.com/ssiccha/GAP.jl"
	"github.com/ssiccha/GAP.jl/bridgetest"
	"github.com/ssiccha/GAP.jl/convert"
	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
)

func TestNew_InvalidConfig(t *testing.T) {
	_, err := gapjl.New(nil, gapjl.WithConfig(gapjl.Config{
		StorageGlobal:  "same",
		FreeListGlobal: "same",
	}))
	require.Error(t, err)

	_, err = gapjl.New(nil, gapjl.WithStorageGlobal(""))
	require.Error(t, err)
}

func TestFunction_AndCalls(t *testing.T) {
	f := bridgetest.New(t)
	b := f.Bridge

	identity, err := b.Function("identity")
	require.NoError(t, err)
	assert.True(t, identity.Callable())

	_, err = b.Function("no_such_function")
	require.Error(t, err)
	var le *bridgeerrors.LookupError
	assert.ErrorAs(t, err, &le)

	arg, err := b.Box(int64(23))
	require.NoError(t, err)

	res, err := b.Call1(identity, arg)
	require.NoError(t, err)
	got, err := b.Unbox(res)
	require.NoError(t, err)
	assert.Equal(t, int64(23), got)

	// Two and three argument forms through the guest array builtins.
	arr, err := b.EvalString("[1, 2, 3]")
	require.NoError(t, err)
	require.NotNil(t, arr)

	getindex, err := b.Function("getindex")
	require.NoError(t, err)
	idx, err := b.Box(2)
	require.NoError(t, err)
	el, err := b.Call2(getindex, arr, idx)
	require.NoError(t, err)
	got, err = b.Unbox(el)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	setindex, err := b.Function("setindex!")
	require.NoError(t, err)
	val, err := b.Box(99)
	require.NoError(t, err)
	_, err = b.Call3(setindex, arr, val, idx)
	require.NoError(t, err)
	gotArr, err := b.Unbox(arr)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(99), int64(3)}, gotArr)
}

func TestCall0(t *testing.T) {
	f := bridgetest.New(t)

	// The reference guest has no zero-argument builtin, so Call0 is covered
	// through the arity error path.
	arr, err := f.Bridge.EvalString("[1]")
	require.NoError(t, err)

	pop, err := f.Bridge.Function("pop!")
	require.NoError(t, err)

	_, err = f.Bridge.Call0(pop)
	require.Error(t, err)
	var ce *bridgeerrors.CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, ce.Arity)

	res, err := f.Bridge.Call1(pop, arr)
	require.NoError(t, err)
	got, err := f.Bridge.Unbox(res)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestEvalString_Absence(t *testing.T) {
	f := bridgetest.New(t)

	h, err := f.Bridge.EvalString("nothing")
	require.NoError(t, err)
	assert.Nil(t, h, "guest nothing must yield absence, not a handle")

	// Assignments evaluate to nothing as well.
	h, err = f.Bridge.EvalString("x = 5")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = f.Bridge.EvalString("x")
	require.NoError(t, err)
	require.NotNil(t, h)
	got, err := f.Bridge.Unbox(h)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestEvalString_Error(t *testing.T) {
	f := bridgetest.New(t)

	_, err := f.Bridge.EvalString("[1, ")
	require.Error(t, err)
	var ee *bridgeerrors.EvalError
	assert.ErrorAs(t, err, &ee)
}

func TestBoxUnbox_RoundTripsAcrossCollection(t *testing.T) {
	f := bridgetest.New(t)

	bridgetest.RunRoundTrips(t, f, []bridgetest.RoundTripCase{
		{Name: "int", In: 42},
		{Name: "float", In: 3.25},
		{Name: "string", In: "crossing"},
		{Name: "bool", In: true},
		{Name: "sequence", In: []any{1, "two", 3.0, false}},
		{Name: "nested sequence", In: []any{[]any{1, 2}, []any{"a"}}},
	})
}

func TestBox_PermRoundTrip(t *testing.T) {
	f := bridgetest.New(t)

	h, err := f.Bridge.Box(convert.Perm16{1, 0, 2})
	require.NoError(t, err)
	defer h.Close()

	f.Guest.Collect()

	got, err := f.Bridge.Unbox(h)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(0), int64(2)}, got)
}

func TestBox_Unsupported(t *testing.T) {
	f := bridgetest.New(t)

	_, err := f.Bridge.Box(map[string]any{})
	assert.ErrorIs(t, err, bridgeerrors.ErrUnsupportedType)
}

func TestAnchorLiveness_HandleKeepsResultAlive(t *testing.T) {
	f := bridgetest.New(t)

	h, err := f.Bridge.EvalString(`"survives"`)
	require.NoError(t, err)
	require.NotNil(t, h)

	// Result values are reachable only through the anchor table; repeated
	// guest collections must not touch them while the handle lives.
	f.Guest.Collect()
	f.Guest.Collect()

	got, err := f.Bridge.Unbox(h)
	require.NoError(t, err)
	assert.Equal(t, "survives", got)

	anchored, err := f.Bridge.Anchors().Get(h.Slot())
	require.NoError(t, err)
	assert.Equal(t, "survives", f.Bridge.Runtime().StringOf(anchored))

	// Once closed, the value has no root and the next collection takes it.
	raw := h.Raw()
	require.NoError(t, h.Close())
	f.Guest.Collect()
	assert.Panics(t, func() { f.Bridge.Runtime().StringOf(raw) })
}

func TestSetGlobal_RootsIndependentlyOfAnchor(t *testing.T) {
	f := bridgetest.New(t)

	h, err := f.Bridge.Box("promoted")
	require.NoError(t, err)
	raw := h.Raw()

	require.NoError(t, f.Bridge.SetGlobal("promoted_value", h))

	// The global binding now roots the value; the handle may go away.
	require.NoError(t, h.Close())
	f.Guest.Collect()

	assert.Equal(t, "promoted", f.Bridge.Runtime().StringOf(raw))

	got, err := f.Bridge.EvalString("promoted_value")
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := f.Bridge.Unbox(got)
	require.NoError(t, err)
	assert.Equal(t, "promoted", v)
}

func TestWithAnchoredFuncs(t *testing.T) {
	f := bridgetest.New(t, gapjl.WithAnchoredFuncs())

	fn, err := f.Bridge.Function("identity")
	require.NoError(t, err)

	// The callable holds an anchor slot until closed.
	free, err := f.Bridge.Anchors().FreeSlots()
	require.NoError(t, err)
	require.Positive(t, free)

	anchored, err := f.Bridge.Anchors().Get(1)
	require.NoError(t, err)
	assert.Equal(t, guest.KindFunction, f.Bridge.Runtime().KindOf(anchored))

	require.NoError(t, fn.Close())
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	g := bridgetest.New(t)
	b := g.Bridge

	require.NoError(t, b.Close())
	require.NoError(t, b.Close()) // idempotent

	_, err := b.Function("length")
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
	_, err = b.EvalString("1")
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
	_, err = b.Box(1)
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
	err = b.SetGlobal("x", nil)
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
}
