// Package descriptor validates the loosely-typed descriptors passed to the
// Memory and Table constructors and produces canonical descriptors.
//
// Validation is a fixed sequence of property reads. Each key is read once,
// through [[Get]] only, and converted immediately:
//
//	memory: index, initial, maximum, shared
//	table:  element, index, initial, maximum
//
// The index tag selects one of two address strategies. Narrow (i32)
// addresses use numeric conversion and must fit in 32 bits; wide (i64)
// addresses use BigInt conversion and must fit in 64 bits. Supplying a value
// of the other conversion family fails.
//
// Malformed input is an InvalidArgument error (TypeError). A descriptor whose
// fields are individually valid but whose initial size exceeds its maximum,
// or which exceeds an implementation limit, is a LimitExceeded error
// (RangeError).
package descriptor
