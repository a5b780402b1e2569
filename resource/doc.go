// Package resource provides reference-counted handles for host values.
//
// A handle is a small integer standing in for a Go value wherever the value
// itself cannot travel, such as an externref slot inside a wasm table. Handle
// 0 is reserved for the null reference.
//
//	table := resource.NewTable()
//
//	// Store a value referenced from three table slots
//	h := table.Insert(v, 3)
//
//	// Look it up
//	v, ok := table.Get(h)
//
//	// Each overwritten slot releases one reference
//	table.Release(h)
//
// When the last reference is released the slot is freed and reused by a
// later Insert.
//
// Observers registered with Subscribe see every create and release.
package resource
