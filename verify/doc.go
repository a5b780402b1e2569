// Package verify checks the observable shape of Memory and Table handles and
// provides the assertion helpers shared by the conformance suites.
//
// Every check goes through the host surface only: properties are read and
// methods invoked exactly as a script would, so a verification exercises the
// backend the same way the suites do.
//
// Checks that examine several properties report every discrepancy they find,
// combined into one error with multierr. Use multierr.Errors to split it.
package verify
