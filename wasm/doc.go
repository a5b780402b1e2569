// Package wasm encodes the small WebAssembly modules the engine instantiates
// to host memories and tables.
//
// Only the sections those modules use are modelled: types, functions,
// tables, memories, exports and code. Limits carry the shared and memory64
// flags so that any memory descriptor can be expressed.
//
// # Encoding
//
//	m := &wasm.Module{
//	    Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
//	    Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory}},
//	}
//	bin := m.Encode()
package wasm
