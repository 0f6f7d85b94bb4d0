// Package bridgetest provides a test harness for bridge-backed code. It
// spins up the reference interpreter guest so tests exercise real guest
// collections without an external runtime.
package bridgetest

import (
	"testing"

	gapjl "github.com/ssiccha/GAP.jl"
	"github.com/ssiccha/GAP.jl/interp"
)

// Fixture bundles a bridge with its interpreter guest so tests can force
// guest collections between bridge operations.
type Fixture struct {
	Bridge *gapjl.Bridge
	Guest  *interp.Interp
}

// New creates an interpreter-backed bridge and registers cleanup on t.
func New(t *testing.T, opts ...gapjl.Option) *Fixture {
	t.Helper()

	g := interp.New()
	b, err := gapjl.New(g, opts...)
	if err != nil {
		t.Fatalf("bridgetest: creating bridge: %v", err)
	}
	t.Cleanup(func() {
		_ = b.Close()
	})
	return &Fixture{Bridge: b, Guest: g}
}

// RoundTripCase is one box-then-unbox expectation.
type RoundTripCase struct {
	Name string
	// In is the host value to box.
	In any
	// Want is the expected unboxed result; when nil, In itself is expected.
	Want any
}

// RunRoundTrips boxes each case's value, forces a guest collection, and
// checks that unboxing returns the expected host value. The collection in
// the middle is the point: it fails if boxing ever leaves the value
// unanchored.
func RunRoundTrips(t *testing.T, f *Fixture, cases []RoundTripCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			h, err := f.Bridge.Box(tc.In)
			if err != nil {
				t.Fatalf("Box(%v): %v", tc.In, err)
			}
			defer h.Close()

			f.Guest.Collect()

			got, err := f.Bridge.Unbox(h)
			if err != nil {
				t.Fatalf("Unbox: %v", err)
			}
			want := tc.Want
			if want == nil {
				want = tc.In
			}
			assertDeepEqual(t, want, got)
		})
	}
}

func assertDeepEqual(t *testing.T, want, got any) {
	t.Helper()
	if !deepEqual(want, got) {
		t.Fatalf("round trip mismatch:\n want %#v\n  got %#v", want, got)
	}
}

// deepEqual compares host values structurally, treating all integer inputs
// as int64 the way Unbox materializes them.
func deepEqual(want, got any) bool {
	switch w := want.(type) {
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return false
		}
		for i := range w {
			if !deepEqual(w[i], g[i]) {
				return false
			}
		}
		return true
	case int:
		g, ok := got.(int64)
		return ok && int64(w) == g
	case int64:
		g, ok := got.(int64)
		return ok && w == g
	default:
		return want == got
	}
}
