// Package handle provides the host-side wrappers around raw guest
// references. Two variants exist: Func wraps a guest callable and Object
// wraps an arbitrary guest value.
//
// An Object owns one anchor slot for its whole lifetime; the slot is released
// either explicitly through Close or, failing that, by a cleanup the host
// collector runs once the Object becomes unreachable. A Func carries no slot:
// callables resolved by name are rooted by the guest's own namespace tables.
// That rooting is an assumption inherited from the guest's binding model, not
// something this package enforces; see WithAnchoredFuncs on the bridge for
// the conservative alternative.
package handle

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/ssiccha/GAP.jl/anchor"
	"github.com/ssiccha/GAP.jl/guest"
)

// Handle is the capability common to both wrapper variants: an opaque guest
// payload the host collector can manage without tracing into it.
type Handle interface {
	// Raw returns the wrapped guest reference.
	Raw() guest.Value
	// Callable reports whether the handle wraps a guest callable.
	Callable() bool
}

// Func wraps a guest callable. The zero value is not usable; construct with
// NewFunc or NewAnchoredFunc.
type Func struct {
	name     string
	fn       guest.Value
	slot     int
	table    *anchor.Table
	cleanup  runtime.Cleanup
	anchored bool
	closed   atomic.Bool
}

// NewFunc wraps a raw guest callable. No finalizer is attached: the callable
// is assumed rooted by the guest's namespace for the handle's lifetime.
func NewFunc(name string, fn guest.Value) *Func {
	return &Func{name: name, fn: fn}
}

// NewAnchoredFunc wraps a guest callable and additionally anchors it, for
// guests whose namespaces allow unbinding names. The slot is released by
// Close or by cleanup, exactly as for Object.
func NewAnchoredFunc(table *anchor.Table, name string, fn guest.Value) (*Func, error) {
	slot, err := table.Acquire(fn)
	if err != nil {
		return nil, err
	}
	f := &Func{name: name, fn: fn, slot: slot, table: table, anchored: true}
	f.cleanup = runtime.AddCleanup(f, func(s int) {
		_ = table.Release(s)
	}, slot)
	return f, nil
}

// Close releases the anchor slot of an anchored callable. For unanchored
// callables it is a no-op. Idempotent.
func (f *Func) Close() error {
	if !f.anchored || f.closed.Swap(true) {
		return nil
	}
	f.cleanup.Stop()
	return f.table.Release(f.slot)
}

// Raw returns the wrapped guest callable.
func (f *Func) Raw() guest.Value { return f.fn }

// Callable implements Handle.
func (f *Func) Callable() bool { return true }

// Name returns the name the callable was resolved under, or "" for callables
// not obtained by lookup.
func (f *Func) Name() string { return f.name }

func (f *Func) String() string {
	return fmt.Sprintf("guest function %q", f.name)
}

// Object wraps an arbitrary guest value together with the anchor slot that
// keeps it alive. Construct with NewObject.
type Object struct {
	val     guest.Value
	slot    int
	table   *anchor.Table
	cleanup runtime.Cleanup
	closed  atomic.Bool
}

// NewObject anchors v and returns the wrapping handle. The returned Object's
// cleanup releases the slot when the Object becomes unreachable; callers that
// want deterministic release call Close instead.
func NewObject(table *anchor.Table, v guest.Value) (*Object, error) {
	slot, err := table.Acquire(v)
	if err != nil {
		return nil, err
	}
	o := &Object{val: v, slot: slot, table: table}
	// The cleanup must not capture o itself, or o would never become
	// unreachable. It receives the slot number and the table only.
	o.cleanup = runtime.AddCleanup(o, func(s int) {
		// Errors here have no caller to report to; the slot stays leaked
		// rather than corrupting the table.
		_ = table.Release(s)
	}, slot)
	return o, nil
}

// Raw returns the wrapped guest value. Calling Raw on a closed Object panics:
// after Close the guest value may already have been collected, and handing
// out a stale reference is exactly the bug the anchor table exists to
// prevent.
func (o *Object) Raw() guest.Value {
	if o.closed.Load() {
		panic("handle: use of closed guest object")
	}
	return o.val
}

// Callable implements Handle.
func (o *Object) Callable() bool { return false }

// Slot returns the anchor slot index owned by this handle.
func (o *Object) Slot() int { return o.slot }

// Close releases the anchor slot immediately and detaches the cleanup.
// Close is idempotent; only the first call releases the slot.
func (o *Object) Close() error {
	if o.closed.Swap(true) {
		return nil
	}
	o.cleanup.Stop()
	return o.table.Release(o.slot)
}

func (o *Object) String() string {
	if o.closed.Load() {
		return "guest object (closed)"
	}
	return fmt.Sprintf("guest object (slot %d)", o.slot)
}
