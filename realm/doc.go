// Package realm exposes engine memories and tables to scripts running in a
// goja runtime, the way an embedder surfaces them.
//
// A Realm owns one backend and the objects bound to it:
//
//	WebAssembly                namespace with Memory and Table
//	Memory, Table              constructors (construct only, length 1)
//	Memory.prototype           buffer, grow, type
//	Table.prototype            length, get, set, grow, type
//	ArrayBuffer.prototype      byteLength, detached
//	SharedArrayBuffer.prototype byteLength
//
// Constructors run the descriptor validator and then allocate through the
// backend; nothing is allocated when validation fails. Handles returned by
// the constructors are ordinary extensible objects; the realm maps each one
// to its engine resource and releases them all on Close.
//
// Index arguments to get, set and grow go through the same address coercion
// as descriptor fields, so a malformed index is a TypeError before any range
// check runs.
package realm
