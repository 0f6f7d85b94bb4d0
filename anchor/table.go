// Package anchor implements the root table that keeps guest values alive on
// behalf of host-side handles.
//
// The table's backing state lives inside the guest: a "storage" array holding
// the anchored values and a "free list" array of recycled slot indices, both
// bound as guest globals so the guest's collector traces them as roots. The
// host side only ever manipulates them through three guest callables (pop!,
// push!, setindex!), resolved once at construction. This keeps the guest
// collector entirely unaware of the host; it simply sees two ordinary global
// arrays.
package anchor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ssiccha/GAP.jl/guest"
)

// Default guest global names for the table's backing arrays.
const (
	DefaultStorageGlobal  = "__host_anchor_storage"
	DefaultFreeListGlobal = "__host_anchor_free"
)

// Table anchors guest values against guest collection. Slot indices are
// 1-based, matching the guest array convention; index 0 never names a slot,
// and the sentinel stored in empty slots is the boxed integer 0.
//
// All operations take one mutex. Release is called from handle cleanup, which
// the host collector runs on its own goroutine, so the lock is mandatory: the
// free-list pop/push is not atomic across the two arrays.
type Table struct {
	mu sync.Mutex

	rt       guest.Runtime
	storage  guest.Value // guest array of anchored values
	freeList guest.Value // guest array of recycled slot indices

	pop      guest.Value // pop!(array)
	push     guest.Value // push!(array, value)
	setIndex guest.Value // setindex!(array, value, index)

	// length of the storage array, mirrored host-side for bounds checks
	storageLen int

	logger *slog.Logger
}

// Config names the guest globals backing a Table.
type Config struct {
	StorageGlobal  string
	FreeListGlobal string
	Logger         *slog.Logger
}

// New creates the backing arrays inside the guest, binds them as guest
// globals, resolves the three array callables, and seeds the free list with
// slot 1. The free list is never empty afterwards; that invariant is what
// makes Acquire O(1) amortized.
func New(rt guest.Runtime, cfg Config) (*Table, error) {
	if cfg.StorageGlobal == "" {
		cfg.StorageGlobal = DefaultStorageGlobal
	}
	if cfg.FreeListGlobal == "" {
		cfg.FreeListGlobal = DefaultFreeListGlobal
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	t := &Table{rt: rt, logger: cfg.Logger}

	for _, fn := range []struct {
		name string
		dst  *guest.Value
	}{
		{"pop!", &t.pop},
		{"push!", &t.push},
		{"setindex!", &t.setIndex},
	} {
		v, err := rt.Function(fn.name)
		if err != nil {
			return nil, fmt.Errorf("anchor: resolving %s: %w", fn.name, err)
		}
		*fn.dst = v
	}

	storage, err := rt.NewArray(guest.ElemAny, 0)
	if err != nil {
		return nil, fmt.Errorf("anchor: allocating storage array: %w", err)
	}
	freeList, err := rt.NewArray(guest.ElemAny, 0)
	if err != nil {
		return nil, fmt.Errorf("anchor: allocating free list array: %w", err)
	}

	// Global bindings make the two arrays guest GC roots for the life of the
	// process.
	if err := rt.SetGlobal(cfg.StorageGlobal, storage); err != nil {
		return nil, fmt.Errorf("anchor: binding %s: %w", cfg.StorageGlobal, err)
	}
	if err := rt.SetGlobal(cfg.FreeListGlobal, freeList); err != nil {
		return nil, fmt.Errorf("anchor: binding %s: %w", cfg.FreeListGlobal, err)
	}

	t.storage = storage
	t.freeList = freeList

	if _, err := rt.Call2(t.push, freeList, rt.BoxInt64(1)); err != nil {
		return nil, fmt.Errorf("anchor: seeding free list: %w", err)
	}

	return t, nil
}

// Acquire pops a free slot, binds v into it, and returns the slot index. The
// pop, the growth step, and the bind happen under one lock so no collection
// point can observe a freshly popped slot still holding the sentinel.
func (t *Table) Acquire(v guest.Value) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idxVal, err := t.rt.Call1(t.pop, t.freeList)
	if err != nil {
		return 0, fmt.Errorf("anchor: popping free slot: %w", err)
	}
	idx := int(t.rt.Int64Of(idxVal))

	remaining, err := t.rt.ArrayLen(t.freeList)
	if err != nil {
		return 0, fmt.Errorf("anchor: probing free list: %w", err)
	}
	if remaining == 0 {
		// Grow storage by one sentinel cell and hand its index to the free
		// list, keeping the list permanently non-empty.
		if _, err := t.rt.Call2(t.push, t.storage, t.rt.BoxInt64(0)); err != nil {
			return 0, fmt.Errorf("anchor: growing storage: %w", err)
		}
		t.storageLen++
		if _, err := t.rt.Call2(t.push, t.freeList, t.rt.BoxInt64(int64(idx)+1)); err != nil {
			return 0, fmt.Errorf("anchor: replenishing free list: %w", err)
		}
	}

	if err := t.bindLocked(idx, v); err != nil {
		return 0, err
	}

	t.logger.Debug("anchor slot acquired", "slot", idx, "storage_len", t.storageLen)
	return idx, nil
}

// bindLocked writes v into storage at idx. Caller holds t.mu.
func (t *Table) bindLocked(idx int, v guest.Value) error {
	t.checkIndex(idx)
	if _, err := t.rt.Call3(t.setIndex, t.storage, v, t.rt.BoxInt64(int64(idx))); err != nil {
		return fmt.Errorf("anchor: binding slot %d: %w", idx, err)
	}
	return nil
}

// Release resets the slot to the sentinel and recycles its index. Safe to
// call from a finalizer goroutine; each index has exactly one owning handle,
// so the same index is never released twice concurrently.
func (t *Table) Release(idx int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkIndex(idx)
	if _, err := t.rt.Call3(t.setIndex, t.storage, t.rt.BoxInt64(0), t.rt.BoxInt64(int64(idx))); err != nil {
		return fmt.Errorf("anchor: clearing slot %d: %w", idx, err)
	}
	if _, err := t.rt.Call2(t.push, t.freeList, t.rt.BoxInt64(int64(idx))); err != nil {
		return fmt.Errorf("anchor: recycling slot %d: %w", idx, err)
	}

	t.logger.Debug("anchor slot released", "slot", idx)
	return nil
}

// Get returns the value currently anchored at idx. Intended for tests and
// diagnostics; production paths hold the value in the handle itself.
func (t *Table) Get(idx int) (guest.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkIndex(idx)
	v, err := t.rt.ArrayRef(t.storage, idx)
	if err != nil {
		return nil, fmt.Errorf("anchor: reading slot %d: %w", idx, err)
	}
	return v, nil
}

// FreeSlots returns the current length of the free list.
func (t *Table) FreeSlots() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rt.ArrayLen(t.freeList)
}

// Len returns the current length of the storage array. Storage only ever
// grows; slots are recycled through the free list, never by shrinking, so
// live indices stay valid across unrelated releases.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.storageLen
}

// checkIndex fails fast on indices outside the storage bounds. An index here
// that is out of range means a corrupted or foreign slot number, which is a
// programming error, not a recoverable condition.
func (t *Table) checkIndex(idx int) {
	if idx < 1 || idx > t.storageLen {
		panic(fmt.Sprintf("anchor: slot index %d out of range [1,%d]", idx, t.storageLen))
	}
}
