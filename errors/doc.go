// Package errors provides structured error types for the wasm-jsapi module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). Every Kind maps to the Class a host observes: invalid arguments
// surface as TypeError, limit and range violations as RangeError.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseVerify, errors.KindMismatch).
//		Path("table", "length").
//		Want("4").
//		Got("3").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidArgument(errors.PhaseValidate, path, "initial is required")
//	err := errors.OutOfRange(errors.PhaseAccess, path, 10, 5)
//
// All errors implement the standard error interface and support errors.Is/As.
// ClassOf reports the class of any error chain.
package errors
