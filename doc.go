// Package wasmjsapi is a conformance harness for the WebAssembly embedding
// API surface that constructs and inspects linear memories and tables.
//
// The harness installs Go-backed WebAssembly.Memory and WebAssembly.Table
// constructors on a goja runtime, drives an engine through them, and asserts
// that argument coercion, bounds checking and error signaling follow the
// embedding rules.
//
// # Architecture Overview
//
//	wasmjsapi/        Root package with index/element types and limits
//	├── descriptor/   Descriptor validation for memories and tables
//	├── engine/       Backends under test: native Go and wazero
//	├── wasm/         Binary encoder for the modules wazero instantiates
//	├── resource/     Handle table for host references held by wasm tables
//	├── realm/        Memory/Table constructors, prototypes and handles
//	├── verify/       Handle verification and shared assertion helpers
//	├── conformance/  Declarative suites, runner, metrics and tracing
//	├── errors/       Structured error types and error classes
//	└── cmd/conform/  Command line runner
//
// # Quick Start
//
//	backend := engine.NewNative(nil)
//	r := realm.New(ctx, backend)
//
//	mem, err := r.Eval("new WebAssembly.Memory({initial: 4})")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = verify.Memory(r, mem, verify.MemoryExpectation{Size: 4})
//
// Run every suite against a backend:
//
//	report, err := conformance.NewRunner().Run(ctx, backend, conformance.All()...)
//
// # Error Classes
//
// Malformed descriptors, wrong coercion families and out-of-range values
// surface as TypeError. A well-typed descriptor whose initial size exceeds its
// maximum, and element accesses past the end, surface as RangeError.
package wasmjsapi
