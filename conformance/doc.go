// Package conformance holds the embedding API conformance suites as data and
// runs them against engine backends.
//
// A Suite is a named list of Cases. Each case runs in its own realm and
// either returns nil or an error describing what went wrong. Cases
// that need a backend feature declare it in Requires and are skipped on
// backends that lack it.
//
//	runner := conformance.NewRunner(
//	    conformance.WithLogger(logger),
//	    conformance.WithMetrics(conformance.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//	report, err := runner.Run(ctx, backend, conformance.All()...)
//
// The runner records one span per case through the global otel tracer
// provider unless another tracer is supplied.
package conformance
