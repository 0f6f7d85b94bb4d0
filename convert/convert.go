// Package convert implements the bidirectional value conversion between
// host-native Go values and guest boxed values.
//
// Unbox materializes a guest value fully into host form; it allocates only
// host memory and never creates handles for array elements. Box builds a raw
// guest value tree without anchoring anything: intermediate values stay alive
// because they are stored inside the still-unanchored parent during the
// single non-suspending conversion call, and the whole tree becomes reachable
// once the caller anchors the root.
package convert

import (
	"fmt"
	"math"
	"math/big"

	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
)

// Unbox translates a guest value into its host-native form. Supported guest
// kinds map as follows: any integer kind to int64, either float width to
// float64, string to string (byte-for-byte copy), bool to bool, and
// one-dimensional arrays to []any with every element unboxed recursively in
// index order. Anything else yields an UnsupportedTypeError.
func Unbox(rt guest.Runtime, v guest.Value) (any, error) {
	kind := rt.KindOf(v)
	switch {
	case kind.IsInteger():
		return rt.Int64Of(v), nil

	case kind == guest.KindFloat32 || kind == guest.KindFloat64:
		return rt.Float64Of(v), nil

	case kind == guest.KindString:
		return rt.StringOf(v), nil

	case kind == guest.KindBool:
		return rt.BoolOf(v), nil

	case kind == guest.KindArray:
		length, err := rt.ArrayLen(v)
		if err != nil {
			return nil, fmt.Errorf("unbox: reading array length: %w", err)
		}
		out := make([]any, length)
		for i := 0; i < length; i++ {
			elem, err := rt.ArrayRef(v, i+1)
			if err != nil {
				return nil, fmt.Errorf("unbox: reading array element %d: %w", i+1, err)
			}
			out[i], err = Unbox(rt, elem)
			if err != nil {
				return nil, err
			}
		}
		return out, nil

	default:
		return nil, bridgeerrors.NewUnboxError(kind.String())
	}
}

// Box translates a host-native value into a raw guest value. The result is
// not anchored; the caller is responsible for wrapping it in a value handle
// before the next guest collection point.
//
// Arbitrary-precision integers are not supported: a *big.Int outside the
// int64 range yields an UnsupportedTypeError rather than silent truncation,
// and in-range *big.Int values are rejected too, so the behavior does not
// depend on magnitude.
func Box(rt guest.Runtime, v any) (guest.Value, error) {
	switch x := v.(type) {
	case int:
		return rt.BoxInt64(int64(x)), nil
	case int8:
		return rt.BoxInt64(int64(x)), nil
	case int16:
		return rt.BoxInt64(int64(x)), nil
	case int32:
		return rt.BoxInt64(int64(x)), nil
	case int64:
		return rt.BoxInt64(x), nil
	case uint8:
		return rt.BoxInt64(int64(x)), nil
	case uint16:
		return rt.BoxInt64(int64(x)), nil
	case uint32:
		return rt.BoxInt64(int64(x)), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, bridgeerrors.NewBoxError("uint64 overflow")
		}
		return rt.BoxInt64(int64(x)), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, bridgeerrors.NewBoxError("uint overflow")
		}
		return rt.BoxInt64(int64(x)), nil

	case float64:
		return rt.BoxFloat64(x), nil
	case float32:
		return rt.BoxFloat64(float64(x)), nil

	case string:
		return rt.BoxString(x), nil

	case bool:
		return rt.BoxBool(x), nil

	case Perm16:
		arr, err := rt.NewArray(guest.ElemUint16, len(x))
		if err != nil {
			return nil, fmt.Errorf("box: allocating uint16 array: %w", err)
		}
		for i, pt := range x {
			if err := rt.ArraySet(arr, i+1, rt.BoxUint16(pt)); err != nil {
				return nil, fmt.Errorf("box: setting point %d: %w", i+1, err)
			}
		}
		return arr, nil

	case Perm32:
		arr, err := rt.NewArray(guest.ElemUint32, len(x))
		if err != nil {
			return nil, fmt.Errorf("box: allocating uint32 array: %w", err)
		}
		for i, pt := range x {
			if err := rt.ArraySet(arr, i+1, rt.BoxUint32(pt)); err != nil {
				return nil, fmt.Errorf("box: setting point %d: %w", i+1, err)
			}
		}
		return arr, nil

	case []any:
		arr, err := rt.NewArray(guest.ElemAny, len(x))
		if err != nil {
			return nil, fmt.Errorf("box: allocating array: %w", err)
		}
		for i, elem := range x {
			boxed, err := Box(rt, elem)
			if err != nil {
				return nil, err
			}
			if err := rt.ArraySet(arr, i+1, boxed); err != nil {
				return nil, fmt.Errorf("box: setting element %d: %w", i+1, err)
			}
		}
		return arr, nil

	case *big.Int:
		return nil, bridgeerrors.NewBoxError("*big.Int")

	default:
		return nil, bridgeerrors.NewBoxError(fmt.Sprintf("%T", v))
	}
}
