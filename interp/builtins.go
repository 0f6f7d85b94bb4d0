package interp

import (
	"fmt"

	"github.com/ssiccha/GAP.jl/guest"
)

// Builtins run with in.mu held (call acquires it); they must use the
// lock-free internals, never the exported Runtime methods.

func (in *Interp) installBuiltins() {
	for name, fn := range map[string]builtinFunc{
		"pop!":      biPop,
		"push!":     biPush,
		"setindex!": biSetIndex,
		"getindex":  biGetIndex,
		"length":    biLength,
		"identity":  biIdentity,
		"abs":       biAbs,
		"string":    biString,
	} {
		in.builtins[name] = &object{kind: guest.KindFunction, fn: fn, name: name}
	}
}

func wantArity(name string, args []*object, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s expects %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func wantArray(name string, o *object) error {
	if o.kind != guest.KindArray {
		return fmt.Errorf("%s expects an array, got %s", name, o.kind)
	}
	return nil
}

// biPop removes and returns the last element of an array.
func biPop(in *Interp, args []*object) (*object, error) {
	if err := wantArity("pop!", args, 1); err != nil {
		return nil, err
	}
	arr := args[0]
	if err := wantArray("pop!", arr); err != nil {
		return nil, err
	}
	if len(arr.arr) == 0 {
		return nil, fmt.Errorf("pop! on empty array")
	}
	last := arr.arr[len(arr.arr)-1]
	arr.arr = arr.arr[:len(arr.arr)-1]
	return last, nil
}

// biPush appends a value and returns the array.
func biPush(in *Interp, args []*object) (*object, error) {
	if err := wantArity("push!", args, 2); err != nil {
		return nil, err
	}
	arr := args[0]
	if err := wantArray("push!", arr); err != nil {
		return nil, err
	}
	arr.arr = append(arr.arr, args[1])
	return arr, nil
}

// biSetIndex is setindex!(array, value, index); returns the array.
func biSetIndex(in *Interp, args []*object) (*object, error) {
	if err := wantArity("setindex!", args, 3); err != nil {
		return nil, err
	}
	arr, val, idx := args[0], args[1], args[2]
	if err := wantArray("setindex!", arr); err != nil {
		return nil, err
	}
	if !idx.kind.IsInteger() {
		return nil, fmt.Errorf("setindex! index must be an integer, got %s", idx.kind)
	}
	i := int(idx.i64)
	if i < 1 || i > len(arr.arr) {
		return nil, fmt.Errorf("setindex! index %d out of bounds [1,%d]", i, len(arr.arr))
	}
	arr.arr[i-1] = val
	return arr, nil
}

func biGetIndex(in *Interp, args []*object) (*object, error) {
	if err := wantArity("getindex", args, 2); err != nil {
		return nil, err
	}
	arr, idx := args[0], args[1]
	if err := wantArray("getindex", arr); err != nil {
		return nil, err
	}
	if !idx.kind.IsInteger() {
		return nil, fmt.Errorf("getindex index must be an integer, got %s", idx.kind)
	}
	i := int(idx.i64)
	if i < 1 || i > len(arr.arr) {
		return nil, fmt.Errorf("getindex index %d out of bounds [1,%d]", i, len(arr.arr))
	}
	return arr.arr[i-1], nil
}

func biLength(in *Interp, args []*object) (*object, error) {
	if err := wantArity("length", args, 1); err != nil {
		return nil, err
	}
	switch args[0].kind {
	case guest.KindArray:
		return in.alloc(&object{kind: guest.KindInt64, i64: int64(len(args[0].arr))}), nil
	case guest.KindString:
		return in.alloc(&object{kind: guest.KindInt64, i64: int64(len(args[0].str))}), nil
	default:
		return nil, fmt.Errorf("length of %s value", args[0].kind)
	}
}

func biIdentity(in *Interp, args []*object) (*object, error) {
	if err := wantArity("identity", args, 1); err != nil {
		return nil, err
	}
	return args[0], nil
}

func biAbs(in *Interp, args []*object) (*object, error) {
	if err := wantArity("abs", args, 1); err != nil {
		return nil, err
	}
	o := args[0]
	switch {
	case o.kind.IsInteger():
		n := o.i64
		if n < 0 {
			n = -n
		}
		return in.alloc(&object{kind: guest.KindInt64, i64: n}), nil
	case o.kind == guest.KindFloat64:
		f := o.f64
		if f < 0 {
			f = -f
		}
		return in.alloc(&object{kind: guest.KindFloat64, f64: f}), nil
	default:
		return nil, fmt.Errorf("abs of %s value", o.kind)
	}
}

func biString(in *Interp, args []*object) (*object, error) {
	if err := wantArity("string", args, 1); err != nil {
		return nil, err
	}
	return in.alloc(&object{kind: guest.KindString, str: args[0].goString()}), nil
}
