// Package guest defines the interface the bridge requires from an embedded
// dynamic-language runtime ("the guest"). The bridge never inspects guest
// values itself: every operation on them goes through a Runtime, so the guest
// can be an in-process interpreter, a WebAssembly module, or a native library
// binding, as long as it honors the contracts below.
package guest

import "fmt"

// Value is an opaque reference to a value owned by the guest runtime. The
// host must never retain a Value across a guest collection unless it is
// anchored (see the anchor package); an unanchored Value may be reclaimed by
// the guest's collector at any collection point.
type Value any

// Kind identifies a guest value's runtime type.
type Kind int

const (
	KindInvalid Kind = iota
	KindNothing
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindArray
	KindFunction
	KindOther
)

var kindNames = map[Kind]string{
	KindInvalid:  "invalid",
	KindNothing:  "nothing",
	KindBool:     "bool",
	KindInt8:     "int8",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint8:    "uint8",
	KindUint16:   "uint16",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindArray:    "array",
	KindFunction: "function",
	KindOther:    "other",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsInteger reports whether the kind is a fixed-width integer of any
// signedness.
func (k Kind) IsInteger() bool {
	return k >= KindInt8 && k <= KindUint64
}

// ElemType selects the element type of a newly allocated guest array.
type ElemType int

const (
	// ElemAny is a heterogeneous array; elements may be any guest value.
	ElemAny ElemType = iota
	// ElemUint16 is a homogeneous array of unsigned 16-bit integers.
	ElemUint16
	// ElemUint32 is a homogeneous array of unsigned 32-bit integers.
	ElemUint32
)

// Runtime is the full set of guest operations the bridge consumes.
//
// Implementations must serialize access internally: the bridge's handle
// finalizers run on a collector goroutine and may call into the runtime
// concurrently with application calls.
type Runtime interface {
	// EvalString parses and evaluates guest source text and returns the
	// resulting value. Evaluating an expression that produces the guest
	// "nothing" sentinel returns a Value for which IsNothing reports true.
	EvalString(src string) (Value, error)

	// Function resolves a callable by name in the guest's base namespace.
	Function(name string) (Value, error)

	// Call0 through Call3 invoke a guest callable with a fixed number of
	// arguments. Arbitrary arity is deliberately not part of this interface.
	Call0(fn Value) (Value, error)
	Call1(fn Value, a Value) (Value, error)
	Call2(fn Value, a, b Value) (Value, error)
	Call3(fn Value, a, b, c Value) (Value, error)

	// KindOf reports the runtime type of a guest value.
	KindOf(v Value) Kind

	// IsNothing reports whether v is the guest "nothing" sentinel.
	IsNothing(v Value) bool

	// Scalar constructors. Each returns a freshly boxed guest value.
	BoxInt64(n int64) Value
	BoxUint16(n uint16) Value
	BoxUint32(n uint32) Value
	BoxFloat64(f float64) Value
	BoxBool(b bool) Value
	BoxString(s string) Value

	// Scalar accessors. Int64Of accepts any integer kind and widens or
	// reinterprets to int64; Float64Of accepts both float widths. Calling an
	// accessor on a value of the wrong kind is a contract violation and the
	// runtime may panic.
	Int64Of(v Value) int64
	Float64Of(v Value) float64
	BoolOf(v Value) bool
	StringOf(v Value) string

	// One-dimensional array operations. Indices are 1-based, matching the
	// guest's own array convention.
	NewArray(elem ElemType, length int) (Value, error)
	ArrayLen(v Value) (int, error)
	ArrayRef(v Value, index int) (Value, error)
	ArraySet(v Value, index int, elem Value) error

	// SetGlobal binds a value into the guest's global namespace. A global
	// binding roots the value against guest collection.
	SetGlobal(name string, v Value) error

	// Close shuts the runtime down. All Values obtained from the runtime are
	// invalid afterwards.
	Close() error
}
