package interp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
	"github.com/ssiccha/GAP.jl/interp"
)

func TestEvalString_Literals(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	tests := []struct {
		src  string
		kind guest.Kind
		// check inspects the resulting value
		check func(t *testing.T, v guest.Value)
	}{
		{"42", guest.KindInt64, func(t *testing.T, v guest.Value) {
			assert.Equal(t, int64(42), g.Int64Of(v))
		}},
		{"-17", guest.KindInt64, func(t *testing.T, v guest.Value) {
			assert.Equal(t, int64(-17), g.Int64Of(v))
		}},
		{"2.5", guest.KindFloat64, func(t *testing.T, v guest.Value) {
			assert.Equal(t, 2.5, g.Float64Of(v))
		}},
		{`"hi\n"`, guest.KindString, func(t *testing.T, v guest.Value) {
			assert.Equal(t, "hi\n", g.StringOf(v))
		}},
		{"true", guest.KindBool, func(t *testing.T, v guest.Value) {
			assert.True(t, g.BoolOf(v))
		}},
		{"false", guest.KindBool, func(t *testing.T, v guest.Value) {
			assert.False(t, g.BoolOf(v))
		}},
		{"[1, 2, 3]", guest.KindArray, func(t *testing.T, v guest.Value) {
			n, err := g.ArrayLen(v)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		}},
		{"[]", guest.KindArray, func(t *testing.T, v guest.Value) {
			n, err := g.ArrayLen(v)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			v, err := g.EvalString(tc.src)
			require.NoError(t, err)
			require.Equal(t, tc.kind, g.KindOf(v))
			tc.check(t, v)
		})
	}
}

func TestEvalString_Arithmetic(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v, err := g.EvalString("1 + 2 * 3 - 4")
	require.NoError(t, err)
	assert.Equal(t, int64(3), g.Int64Of(v))

	v, err = g.EvalString("(1 + 2) * 3")
	require.NoError(t, err)
	assert.Equal(t, int64(9), g.Int64Of(v))

	v, err = g.EvalString("1 + 0.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, g.Float64Of(v))
}

func TestEvalString_Nothing(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v, err := g.EvalString("nothing")
	require.NoError(t, err)
	assert.True(t, g.IsNothing(v))
}

func TestEvalString_AssignmentBindsGlobal(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v, err := g.EvalString("x = [1, 2]")
	require.NoError(t, err)
	assert.True(t, g.IsNothing(v))

	got, err := g.EvalString("x")
	require.NoError(t, err)
	assert.Equal(t, guest.KindArray, g.KindOf(got))
}

func TestEvalString_Calls(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	v, err := g.EvalString(`length("hello")`)
	require.NoError(t, err)
	assert.Equal(t, int64(5), g.Int64Of(v))

	v, err = g.EvalString("abs(0 - 9)")
	require.NoError(t, err)
	assert.Equal(t, int64(9), g.Int64Of(v))

	v, err = g.EvalString("getindex([10, 20, 30], 2)")
	require.NoError(t, err)
	assert.Equal(t, int64(20), g.Int64Of(v))
}

func TestEvalString_Errors(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	for _, src := range []string{
		"",
		"1 +",
		"[1, 2",
		`"unterminated`,
		"no_such_name",
		"no_such_fn(1)",
		"1 2",
	} {
		t.Run(src, func(t *testing.T) {
			_, err := g.EvalString(src)
			require.Error(t, err)
			var ee *bridgeerrors.EvalError
			assert.ErrorAs(t, err, &ee)
		})
	}
}

func TestFunction_Lookup(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	fn, err := g.Function("push!")
	require.NoError(t, err)
	assert.Equal(t, guest.KindFunction, g.KindOf(fn))

	_, err = g.Function("definitely_missing")
	require.Error(t, err)
	var le *bridgeerrors.LookupError
	assert.ErrorAs(t, err, &le)
}

func TestCalls_FixedArity(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	push, err := g.Function("push!")
	require.NoError(t, err)
	setindex, err := g.Function("setindex!")
	require.NoError(t, err)

	arr, err := g.NewArray(guest.ElemAny, 0)
	require.NoError(t, err)

	// push!(arr, 5)
	_, err = g.Call2(push, arr, g.BoxInt64(5))
	require.NoError(t, err)
	n, err := g.ArrayLen(arr)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// setindex!(arr, 9, 1)
	_, err = g.Call3(setindex, arr, g.BoxInt64(9), g.BoxInt64(1))
	require.NoError(t, err)
	el, err := g.ArrayRef(arr, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), g.Int64Of(el))

	// pop!(arr)
	pop, err := g.Function("pop!")
	require.NoError(t, err)
	popped, err := g.Call1(pop, arr)
	require.NoError(t, err)
	assert.Equal(t, int64(9), g.Int64Of(popped))

	// calling a non-function fails
	_, err = g.Call0(arr)
	require.Error(t, err)
	var ce *bridgeerrors.CallError
	assert.ErrorAs(t, err, &ce)
}

func TestArrays_Bounds(t *testing.T) {
	g := interp.New()
	t.Cleanup(func() { _ = g.Close() })

	arr, err := g.NewArray(guest.ElemAny, 2)
	require.NoError(t, err)

	_, err = g.ArrayRef(arr, 0)
	assert.Error(t, err)
	_, err = g.ArrayRef(arr, 3)
	assert.Error(t, err)
	assert.Error(t, g.ArraySet(arr, 0, g.BoxInt64(1)))
	assert.NoError(t, g.ArraySet(arr, 2, g.BoxInt64(1)))
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	g := interp.New()
	require.NoError(t, g.Close())
	require.NoError(t, g.Close()) // idempotent

	_, err := g.EvalString("1")
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
	_, err = g.Function("length")
	assert.ErrorIs(t, err, bridgeerrors.ErrClosed)
}
