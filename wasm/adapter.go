// Package wasm implements guest.Runtime over a guest runtime compiled to
// WebAssembly, executed with wazero. Guest values are u32 handles minted by
// the guest module; 0 is never a valid handle and signals failure, with the
// message available through the guest's last_error export. Variable-length
// data crosses the boundary as packed ptr+len u64 values in guest linear
// memory, allocated through the guest's allocate export.
package wasm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/ssiccha/GAP.jl/guest"
)

// Exports the guest module must provide, beyond allocate/deallocate.
var requiredExports = []string{
	"allocate",
	"last_error",
	"eval_string",
	"get_function",
	"call0", "call1", "call2", "call3",
	"kind_of", "is_nothing",
	"box_i64", "box_u16", "box_u32", "box_f64", "box_bool", "box_string",
	"unbox_i64", "unbox_f64", "unbox_bool", "string_of",
	"array_new", "array_len", "array_ref", "array_set",
	"set_global",
}

// handle is a guest value id minted by the wasm module.
type handle uint32

// Runtime is a wazero-backed guest.Runtime. All calls into the module are
// serialized on one mutex: wasm guest instances are single-threaded, and the
// bridge's handle cleanups call in from the collector goroutine.
type Runtime struct {
	mu sync.Mutex

	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module
	fns     map[string]api.Function

	logger *slog.Logger
}

// Option configures a Runtime.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	withWASI bool
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithWASI instantiates wasi_snapshot_preview1 before the guest module, for
// guests built against a WASI toolchain. Enabled by default.
func WithWASI(enabled bool) Option {
	return func(c *config) {
		c.withWASI = enabled
	}
}

// New compiles and instantiates a guest wasm module and resolves its ABI
// exports. The returned Runtime owns the wazero runtime; Close releases it.
func New(ctx context.Context, wasmBytes []byte, opts ...Option) (*Runtime, error) {
	cfg := config{withWASI: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	rt := wazero.NewRuntime(ctx)
	if cfg.withWASI {
		wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	}

	mod, err := rt.Instantiate(ctx, wasmBytes)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("wasm: instantiating guest module: %w", err)
	}

	r := &Runtime{
		ctx:     ctx,
		runtime: rt,
		module:  mod,
		fns:     make(map[string]api.Function, len(requiredExports)),
		logger:  cfg.logger,
	}
	for _, name := range requiredExports {
		f := mod.ExportedFunction(name)
		if f == nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("wasm: guest module does not export %q", name)
		}
		r.fns[name] = f
	}

	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			rt.Close(ctx)
			return nil, fmt.Errorf("wasm: calling _initialize: %w", err)
		}
	}

	r.logger.Debug("wasm guest instantiated", "module", mod.Name())
	return r, nil
}

// call invokes an export. Caller holds r.mu.
func (r *Runtime) call(name string, params ...uint64) (uint64, error) {
	results, err := r.fns[name].Call(r.ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("wasm: %s: %w", name, err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// writeString copies s into guest memory via the allocate export and
// returns the packed ptr+len. Caller holds r.mu. The guest owns the
// allocation and reclaims it when it processes the call.
func (r *Runtime) writeString(s string) (uint64, error) {
	if len(s) == 0 {
		return 0, nil
	}
	ptrRes, err := r.call("allocate", uint64(len(s)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(ptrRes)
	if !r.module.Memory().Write(ptr, []byte(s)) {
		return 0, fmt.Errorf("wasm: writing %d bytes to guest memory at %#x", len(s), ptr)
	}
	return packPtrLen(ptr, uint32(len(s))), nil
}

// readString reads a packed ptr+len string out of guest memory. Caller
// holds r.mu. The bytes are copied before return.
func (r *Runtime) readString(packed uint64) (string, error) {
	ptr, length := unpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return "", nil
	}
	data, ok := r.module.Memory().Read(ptr, length)
	if !ok {
		return "", fmt.Errorf("wasm: reading %d bytes from guest memory at %#x", length, ptr)
	}
	out := make([]byte, length)
	copy(out, data)
	return string(out), nil
}

// lastError fetches the guest's pending error message. Caller holds r.mu.
func (r *Runtime) lastError() error {
	packed, err := r.call("last_error")
	if err != nil {
		return err
	}
	msg, err := r.readString(packed)
	if err != nil {
		return err
	}
	if msg == "" {
		return fmt.Errorf("wasm: guest reported failure without message")
	}
	return fmt.Errorf("wasm guest: %s", msg)
}

// callHandle invokes an export that returns a value handle, translating the
// 0 handle into the guest's pending error. Caller holds r.mu.
func (r *Runtime) callHandle(name string, params ...uint64) (handle, error) {
	res, err := r.call(name, params...)
	if err != nil {
		return 0, err
	}
	if res == 0 {
		return 0, r.lastError()
	}
	return handle(uint32(res)), nil
}

func (r *Runtime) EvalString(src string) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	packed, err := r.writeString(src)
	if err != nil {
		return nil, err
	}
	return r.callHandle("eval_string", packed)
}

func (r *Runtime) Function(name string) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	packed, err := r.writeString(name)
	if err != nil {
		return nil, err
	}
	return r.callHandle("get_function", packed)
}

func (r *Runtime) Call0(fn guest.Value) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callHandle("call0", uint64(fn.(handle)))
}

func (r *Runtime) Call1(fn guest.Value, a guest.Value) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callHandle("call1", uint64(fn.(handle)), uint64(a.(handle)))
}

func (r *Runtime) Call2(fn guest.Value, a, b guest.Value) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callHandle("call2", uint64(fn.(handle)), uint64(a.(handle)), uint64(b.(handle)))
}

func (r *Runtime) Call3(fn guest.Value, a, b, c guest.Value) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callHandle("call3",
		uint64(fn.(handle)), uint64(a.(handle)), uint64(b.(handle)), uint64(c.(handle)))
}

// Wire values of kind_of, fixed by the guest ABI.
var wireKinds = map[uint32]guest.Kind{
	0:  guest.KindNothing,
	1:  guest.KindBool,
	2:  guest.KindInt8,
	3:  guest.KindInt16,
	4:  guest.KindInt32,
	5:  guest.KindInt64,
	6:  guest.KindUint8,
	7:  guest.KindUint16,
	8:  guest.KindUint32,
	9:  guest.KindUint64,
	10: guest.KindFloat32,
	11: guest.KindFloat64,
	12: guest.KindString,
	13: guest.KindArray,
	14: guest.KindFunction,
}

func (r *Runtime) KindOf(v guest.Value) guest.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("kind_of", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: kind_of: %v", err))
	}
	if k, ok := wireKinds[uint32(res)]; ok {
		return k
	}
	return guest.KindOther
}

func (r *Runtime) IsNothing(v guest.Value) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("is_nothing", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: is_nothing: %v", err))
	}
	return res != 0
}

func (r *Runtime) BoxInt64(n int64) guest.Value {
	return r.mustBox("box_i64", api.EncodeI64(n))
}

func (r *Runtime) BoxUint16(n uint16) guest.Value {
	return r.mustBox("box_u16", uint64(n))
}

func (r *Runtime) BoxUint32(n uint32) guest.Value {
	return r.mustBox("box_u32", uint64(n))
}

func (r *Runtime) BoxFloat64(f float64) guest.Value {
	return r.mustBox("box_f64", api.EncodeF64(f))
}

func (r *Runtime) BoxBool(b bool) guest.Value {
	var n uint64
	if b {
		n = 1
	}
	return r.mustBox("box_bool", n)
}

func (r *Runtime) BoxString(s string) guest.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	packed, err := r.writeString(s)
	if err != nil {
		panic(fmt.Sprintf("wasm: box_string: %v", err))
	}
	h, err := r.callHandle("box_string", packed)
	if err != nil {
		panic(fmt.Sprintf("wasm: box_string: %v", err))
	}
	return h
}

// mustBox wraps the scalar constructors, whose only failure mode is guest
// memory exhaustion. That is not recoverable, so it panics.
func (r *Runtime) mustBox(name string, param uint64) guest.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.callHandle(name, param)
	if err != nil {
		panic(fmt.Sprintf("wasm: %s: %v", name, err))
	}
	return h
}

func (r *Runtime) Int64Of(v guest.Value) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("unbox_i64", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: unbox_i64: %v", err))
	}
	// The raw result already carries the two's-complement bits.
	return int64(res)
}

func (r *Runtime) Float64Of(v guest.Value) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("unbox_f64", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: unbox_f64: %v", err))
	}
	return api.DecodeF64(res)
}

func (r *Runtime) BoolOf(v guest.Value) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("unbox_bool", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: unbox_bool: %v", err))
	}
	return res != 0
}

func (r *Runtime) StringOf(v guest.Value) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	packed, err := r.call("string_of", uint64(v.(handle)))
	if err != nil {
		panic(fmt.Sprintf("wasm: string_of: %v", err))
	}
	s, err := r.readString(packed)
	if err != nil {
		panic(fmt.Sprintf("wasm: string_of: %v", err))
	}
	return s
}

// Wire values of array_new's element type parameter.
var wireElems = map[guest.ElemType]uint64{
	guest.ElemAny:    0,
	guest.ElemUint16: 1,
	guest.ElemUint32: 2,
}

func (r *Runtime) NewArray(elem guest.ElemType, length int) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wire, ok := wireElems[elem]
	if !ok {
		return nil, fmt.Errorf("wasm: unknown element type %d", elem)
	}
	return r.callHandle("array_new", wire, uint64(length))
}

func (r *Runtime) ArrayLen(v guest.Value) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("array_len", uint64(v.(handle)))
	if err != nil {
		return 0, err
	}
	return int(int32(uint32(res))), nil
}

func (r *Runtime) ArrayRef(v guest.Value, index int) (guest.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callHandle("array_ref", uint64(v.(handle)), uint64(index))
}

func (r *Runtime) ArraySet(v guest.Value, index int, elem guest.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.call("array_set", uint64(v.(handle)), uint64(index), uint64(elem.(handle)))
	if err != nil {
		return err
	}
	if res == 0 {
		return r.lastError()
	}
	return nil
}

func (r *Runtime) SetGlobal(name string, v guest.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	packed, err := r.writeString(name)
	if err != nil {
		return err
	}
	res, err := r.call("set_global", packed, uint64(v.(handle)))
	if err != nil {
		return err
	}
	if res == 0 {
		return r.lastError()
	}
	return nil
}

// Close shuts down the wazero runtime and with it the guest module.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runtime.Close(r.ctx)
}
