// Package engine provides the memory and table implementations that the
// realm exposes through its constructors.
//
// # Backends
//
// A Backend allocates live memories and tables from canonical descriptors:
//
//	NativeBackend - pure Go slices; supports every feature
//	WazeroBackend - each resource lives inside a wazero module instance
//
// The wazero backend encodes a tiny module per resource on the fly. A memory
// module declares one memory and exports it as "memory". A table module
// declares one table and exports accessor functions over it:
//
//	externref table         funcref table
//	───────────────────────────────────────────
//	get(i32) externref       is_null(i32) i32
//	set(i32, externref)      set_null(i32)
//	grow(externref, i32) i32 grow(i32) i32
//	size() i32               size() i32
//	fill(i32, externref, i32)
//
// Host values stored in externref tables never cross into wasm directly; the
// backend keeps them in a resource.Table and passes the handle as the
// reference. Handle 0 is the null reference.
//
// Compiled modules are cached by binary in an LRU, so repeated descriptors
// compile once per backend.
//
// # Features
//
// Backends report what they support via Features. wazero has no 64-bit
// index support, so i64 descriptors fail with an unsupported error there.
// Shared memories require Config.EnableThreads.
//
// # Errors
//
// Allocation and growth failures are LimitExceeded errors from the errors
// package; callers surface them as RangeError.
package engine
