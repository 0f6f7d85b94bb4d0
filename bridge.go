package gapjl

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ssiccha/GAP.jl/anchor"
	"github.com/ssiccha/GAP.jl/convert"
	bridgeerrors "github.com/ssiccha/GAP.jl/errors"
	"github.com/ssiccha/GAP.jl/guest"
	"github.com/ssiccha/GAP.jl/handle"
)

// Bridge is the host-side entry point to an embedded guest runtime. It owns
// the anchor table and exposes the call, eval, and conversion surface. A
// Bridge is safe for use from multiple goroutines as long as the underlying
// guest.Runtime serializes access, which all bundled runtimes do.
type Bridge struct {
	rt      guest.Runtime
	anchors *anchor.Table
	cfg     Config
	logger  *slog.Logger
	closed  atomic.Bool
}

// New initializes a bridge over an already-initialized guest runtime. It
// resolves the guest array callables and installs the anchor table's backing
// arrays as guest globals; both live for the life of the runtime.
func New(rt guest.Runtime, opts ...Option) (*Bridge, error) {
	s := settings{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	anchors, err := anchor.New(rt, anchor.Config{
		StorageGlobal:  s.cfg.StorageGlobal,
		FreeListGlobal: s.cfg.FreeListGlobal,
		Logger:         s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing anchor table: %w", err)
	}

	b := &Bridge{rt: rt, anchors: anchors, cfg: s.cfg, logger: s.logger}
	b.logger.Debug("bridge initialized",
		"storage_global", s.cfg.StorageGlobal,
		"free_list_global", s.cfg.FreeListGlobal,
		"anchor_funcs", s.cfg.AnchorFuncs)
	return b, nil
}

// Runtime returns the underlying guest runtime.
func (b *Bridge) Runtime() guest.Runtime { return b.rt }

// Anchors returns the bridge's anchor table. Exposed for diagnostics and
// tests; normal use never touches it directly.
func (b *Bridge) Anchors() *anchor.Table { return b.anchors }

// Function resolves a guest callable by name in the guest's base namespace
// and wraps it in a function handle.
func (b *Bridge) Function(name string) (*handle.Func, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	fn, err := b.rt.Function(name)
	if err != nil {
		return nil, &bridgeerrors.LookupError{Name: name, Err: err}
	}
	if b.cfg.AnchorFuncs {
		return handle.NewAnchoredFunc(b.anchors, name, fn)
	}
	return handle.NewFunc(name, fn), nil
}

// Call0 invokes a guest callable with no arguments and wraps the result.
func (b *Bridge) Call0(f *handle.Func) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	res, err := b.rt.Call0(f.Raw())
	if err != nil {
		return nil, err
	}
	return b.wrap(res)
}

// Call1 invokes a guest callable with one argument.
func (b *Bridge) Call1(f *handle.Func, a *handle.Object) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	res, err := b.rt.Call1(f.Raw(), a.Raw())
	if err != nil {
		return nil, err
	}
	return b.wrap(res)
}

// Call2 invokes a guest callable with two arguments.
func (b *Bridge) Call2(f *handle.Func, a, c *handle.Object) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	res, err := b.rt.Call2(f.Raw(), a.Raw(), c.Raw())
	if err != nil {
		return nil, err
	}
	return b.wrap(res)
}

// Call3 invokes a guest callable with three arguments.
func (b *Bridge) Call3(f *handle.Func, a, c, d *handle.Object) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	res, err := b.rt.Call3(f.Raw(), a.Raw(), c.Raw(), d.Raw())
	if err != nil {
		return nil, err
	}
	return b.wrap(res)
}

// EvalString parses and evaluates guest source text. A guest result of
// nothing yields (nil, nil): absence, not a handle.
func (b *Bridge) EvalString(src string) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	res, err := b.rt.EvalString(src)
	if err != nil {
		return nil, err
	}
	if b.rt.IsNothing(res) {
		return nil, nil
	}
	return b.wrap(res)
}

// Box converts a host-native value into a guest value and wraps it in an
// anchored handle. Supported host types are documented on convert.Box.
func (b *Bridge) Box(v any) (*handle.Object, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	raw, err := convert.Box(b.rt, v)
	if err != nil {
		return nil, err
	}
	return b.wrap(raw)
}

// Unbox converts a handle's guest value back into host-native form.
func (b *Bridge) Unbox(h *handle.Object) (any, error) {
	if b.closed.Load() {
		return nil, bridgeerrors.ErrClosed
	}
	return convert.Unbox(b.rt, h.Raw())
}

// SetGlobal binds a handle's guest value into the guest's global namespace.
// The global binding roots the value on the guest side from then on,
// independent of the anchor table, so the handle may be closed afterwards.
func (b *Bridge) SetGlobal(name string, h *handle.Object) error {
	if b.closed.Load() {
		return bridgeerrors.ErrClosed
	}
	return b.rt.SetGlobal(name, h.Raw())
}

// Close shuts down the bridge and the guest runtime. Handles must not be
// used afterwards; their cleanups become no-ops against a closed runtime's
// table only in the sense that errors are swallowed, so Close should be the
// last bridge operation of the process.
func (b *Bridge) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	b.logger.Debug("bridge closing")
	return b.rt.Close()
}

// wrap anchors a raw guest result and returns its value handle.
func (b *Bridge) wrap(res guest.Value) (*handle.Object, error) {
	h, err := handle.NewObject(b.anchors, res)
	if err != nil {
		return nil, fmt.Errorf("anchoring guest result: %w", err)
	}
	return h, nil
}
