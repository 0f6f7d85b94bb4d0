// Package gapjl bridges the Go runtime and an embedded Julia-style guest
// runtime so values, functions, and boxed data can cross between them while
// each side's garbage collector stays unaware of the other's references.
//
// Guest values reach the host only wrapped in handles. A value handle owns a
// slot in the anchor table, a pair of guest-global arrays the guest collector
// traces as roots, so the wrapped value survives guest collections for
// exactly as long as the handle lives on the host side. Function handles
// carry no slot; callables resolved by name are rooted by the guest's own
// namespace (see WithAnchoredFuncs to opt out of that assumption).
//
// The guest runtime is pluggable through the guest.Runtime interface. The
// interp package provides an in-process reference runtime with a real
// collector; the wasm package runs a guest compiled to WebAssembly.
package gapjl
