// Package interp is the reference guest runtime: a small in-process
// dynamic-value interpreter with its own mark/sweep collector.
//
// Its collector traces only from the interpreter's global bindings and base
// namespace. Raw values handed to the host are deliberately not roots; a host
// that wants a value to survive Collect must anchor it, which is exactly the
// discipline the bridge's anchor table implements. Reclaimed values are
// poisoned so that any later access panics instead of reading stale data,
// which makes lifetime bugs loud in tests.
package interp

import (
	"fmt"
	"log/slog"
	"sync"

	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
)

// Interp implements guest.Runtime. All exported methods serialize on one
// mutex; the bridge's handle cleanups may call in from the collector
// goroutine at any time.
type Interp struct {
	mu sync.Mutex

	globals  map[string]*object
	builtins map[string]*object
	heap     map[*object]struct{}
	nothing  *object

	collections int
	closed      bool

	logger *slog.Logger
}

// Option configures an Interp.
type Option func(*Interp)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(in *Interp) {
		in.logger = l
	}
}

// New creates an interpreter with the base namespace populated.
func New(opts ...Option) *Interp {
	in := &Interp{
		globals:  make(map[string]*object),
		builtins: make(map[string]*object),
		heap:     make(map[*object]struct{}),
		nothing:  &object{kind: guest.KindNothing},
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.logger == nil {
		in.logger = slog.Default()
	}
	in.installBuiltins()
	return in
}

// alloc registers a fresh object on the heap. Caller holds in.mu.
func (in *Interp) alloc(o *object) *object {
	in.heap[o] = struct{}{}
	return o
}

func (in *Interp) obj(v guest.Value) *object {
	o, ok := v.(*object)
	if !ok {
		panic(fmt.Sprintf("interp: foreign value %T passed to runtime", v))
	}
	o.checkLive()
	return o
}

// Collect runs a full mark/sweep collection. Roots are the global bindings
// and the base namespace; nothing else. Returns the number of objects
// reclaimed.
func (in *Interp) Collect() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	for o := range in.heap {
		o.marked = false
	}

	var mark func(o *object)
	mark = func(o *object) {
		if o == nil || o.marked {
			return
		}
		o.marked = true
		for _, e := range o.arr {
			mark(e)
		}
	}
	for _, o := range in.globals {
		mark(o)
	}
	for _, o := range in.builtins {
		mark(o)
	}

	reclaimed := 0
	for o := range in.heap {
		if !o.marked {
			o.freed = true
			o.arr = nil
			delete(in.heap, o)
			reclaimed++
		}
	}

	in.collections++
	in.logger.Debug("guest collection", "reclaimed", reclaimed, "live", len(in.heap))
	return reclaimed
}

// Collections returns how many collections have run. Useful in tests.
func (in *Interp) Collections() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.collections
}

// HeapSize returns the number of live heap objects.
func (in *Interp) HeapSize() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.heap)
}

// Function resolves a callable in the base namespace.
func (in *Interp) Function(name string) (guest.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, bridgeerrors.ErrClosed
	}
	fn, ok := in.builtins[name]
	if !ok {
		return nil, &bridgeerrors.LookupError{Name: name}
	}
	return fn, nil
}

func (in *Interp) Call0(fn guest.Value) (guest.Value, error) {
	return in.call(fn, nil)
}

func (in *Interp) Call1(fn guest.Value, a guest.Value) (guest.Value, error) {
	return in.call(fn, []guest.Value{a})
}

func (in *Interp) Call2(fn guest.Value, a, b guest.Value) (guest.Value, error) {
	return in.call(fn, []guest.Value{a, b})
}

func (in *Interp) Call3(fn guest.Value, a, b, c guest.Value) (guest.Value, error) {
	return in.call(fn, []guest.Value{a, b, c})
}

func (in *Interp) call(fn guest.Value, args []guest.Value) (guest.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, bridgeerrors.ErrClosed
	}
	f := in.obj(fn)
	if f.kind != guest.KindFunction {
		return nil, &bridgeerrors.CallError{Arity: len(args), Err: fmt.Errorf("value of kind %s is not callable", f.kind)}
	}
	objArgs := make([]*object, len(args))
	for i, a := range args {
		objArgs[i] = in.obj(a)
	}
	res, err := f.fn(in, objArgs)
	if err != nil {
		return nil, &bridgeerrors.CallError{Arity: len(args), Err: err}
	}
	return res, nil
}

func (in *Interp) KindOf(v guest.Value) guest.Kind {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.obj(v).kind
}

func (in *Interp) IsNothing(v guest.Value) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.obj(v).kind == guest.KindNothing
}

func (in *Interp) BoxInt64(n int64) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindInt64, i64: n})
}

func (in *Interp) BoxUint16(n uint16) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindUint16, i64: int64(n)})
}

func (in *Interp) BoxUint32(n uint32) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindUint32, i64: int64(n)})
}

func (in *Interp) BoxFloat64(f float64) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindFloat64, f64: f})
}

func (in *Interp) BoxBool(b bool) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindBool, b: b})
}

func (in *Interp) BoxString(s string) guest.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.alloc(&object{kind: guest.KindString, str: s})
}

func (in *Interp) Int64Of(v guest.Value) int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if !o.kind.IsInteger() {
		panic(fmt.Sprintf("interp: Int64Of on %s value", o.kind))
	}
	return o.i64
}

func (in *Interp) Float64Of(v guest.Value) float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindFloat64 && o.kind != guest.KindFloat32 {
		panic(fmt.Sprintf("interp: Float64Of on %s value", o.kind))
	}
	return o.f64
}

func (in *Interp) BoolOf(v guest.Value) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindBool {
		panic(fmt.Sprintf("interp: BoolOf on %s value", o.kind))
	}
	return o.b
}

func (in *Interp) StringOf(v guest.Value) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindString {
		panic(fmt.Sprintf("interp: StringOf on %s value", o.kind))
	}
	return o.str
}

func (in *Interp) NewArray(elem guest.ElemType, length int) (guest.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil, bridgeerrors.ErrClosed
	}
	if length < 0 {
		return nil, fmt.Errorf("interp: negative array length %d", length)
	}
	arr := make([]*object, length)
	for i := range arr {
		arr[i] = in.nothing
	}
	return in.alloc(&object{kind: guest.KindArray, arr: arr, elem: elem}), nil
}

func (in *Interp) ArrayLen(v guest.Value) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindArray {
		return 0, fmt.Errorf("interp: length of %s value", o.kind)
	}
	return len(o.arr), nil
}

func (in *Interp) ArrayRef(v guest.Value, index int) (guest.Value, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindArray {
		return nil, fmt.Errorf("interp: indexing %s value", o.kind)
	}
	if index < 1 || index > len(o.arr) {
		return nil, fmt.Errorf("interp: index %d out of bounds [1,%d]", index, len(o.arr))
	}
	return o.arr[index-1], nil
}

func (in *Interp) ArraySet(v guest.Value, index int, elem guest.Value) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	o := in.obj(v)
	if o.kind != guest.KindArray {
		return fmt.Errorf("interp: indexing %s value", o.kind)
	}
	if index < 1 || index > len(o.arr) {
		return fmt.Errorf("interp: index %d out of bounds [1,%d]", index, len(o.arr))
	}
	o.arr[index-1] = in.obj(elem)
	return nil
}

func (in *Interp) SetGlobal(name string, v guest.Value) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return bridgeerrors.ErrClosed
	}
	in.globals[name] = in.obj(v)
	return nil
}

// Global returns the value bound to a global name. Used by eval and tests.
func (in *Interp) Global(name string) (guest.Value, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	o, ok := in.globals[name]
	return o, ok
}

func (in *Interp) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	in.globals = nil
	for o := range in.heap {
		o.freed = true
	}
	in.heap = nil
	return nil
}
