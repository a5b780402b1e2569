package conformance

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-jsapi/engine"
	"github.com/wippyai/wasm-jsapi/errors"
	"github.com/wippyai/wasm-jsapi/realm"
)

const tracerName = "github.com/wippyai/wasm-jsapi/conformance"

// Runner executes suites against a backend.
type Runner struct {
	log     *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
	filter  *regexp.Regexp
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger. Realms created by the runner log
// through it too.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMetrics records every result in m.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) { r.tracer = t }
}

// WithFilter keeps only cases whose "suite/case" name matches re.
func WithFilter(re *regexp.Regexp) RunnerOption {
	return func(r *Runner) { r.filter = re }
}

// NewRunner creates a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{log: Logger()}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Run executes suites against backend, each case in a fresh realm. Case
// failures are recorded in the report; the returned error is non-nil only
// when ctx ends before every case ran.
func (rn *Runner) Run(ctx context.Context, backend engine.Backend, suites ...Suite) (*Report, error) {
	rep := &Report{
		ID:       uuid.NewString(),
		Backend:  backend.Name(),
		Features: backend.Features().String(),
		Started:  time.Now(),
	}
	log := rn.log.With(zap.String("backend", rep.Backend), zap.String("run", rep.ID))

	ctx, span := rn.tracer.Start(ctx, "conformance.run",
		trace.WithAttributes(
			attribute.String("run.id", rep.ID),
			attribute.String("backend", rep.Backend),
			attribute.String("features", rep.Features),
		))
	defer span.End()

	for _, s := range suites {
		s = s.Filter(rn.filter)
		for _, c := range s.Cases {
			if err := ctx.Err(); err != nil {
				rep.Duration = time.Since(rep.Started)
				span.SetStatus(codes.Error, "interrupted")
				return rep, err
			}
			res := rn.runCase(ctx, backend, s.Name, c, log)
			rep.Results = append(rep.Results, res)
			rn.metrics.observe(rep.Backend, res)
		}
	}

	rep.Duration = time.Since(rep.Started)
	pass, fail, skip := rep.Counts()
	span.SetAttributes(
		attribute.Int("cases.pass", pass),
		attribute.Int("cases.fail", fail),
		attribute.Int("cases.skip", skip),
	)
	if fail > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d cases failed", fail))
	}
	log.Info("run complete",
		zap.Int("pass", pass),
		zap.Int("fail", fail),
		zap.Int("skip", skip),
		zap.Duration("duration", rep.Duration))
	return rep, nil
}

func (rn *Runner) runCase(ctx context.Context, backend engine.Backend, suite string, c Case, log *zap.Logger) Result {
	res := Result{Suite: suite, Case: c.Name}
	log = log.With(zap.String("suite", suite), zap.String("case", c.Name))

	ctx, span := rn.tracer.Start(ctx, "conformance.case",
		trace.WithAttributes(
			attribute.String("backend", backend.Name()),
			attribute.String("suite", suite),
			attribute.String("case", c.Name),
		))
	defer span.End()

	if missing := c.Requires &^ backend.Features(); missing != 0 {
		res.Status = StatusSkip
		res.Error = "requires " + missing.String()
		span.SetAttributes(attribute.String("status", string(res.Status)))
		log.Debug("case skipped", zap.Stringer("missing", missing))
		return res
	}

	start := time.Now()
	rlm := realm.New(ctx, backend, realm.WithLogger(log))
	err := runRecovered(c, rlm)
	res.Duration = time.Since(start)
	if cerr := rlm.Close(ctx); cerr != nil {
		log.Warn("realm close failed", zap.Error(cerr))
	}

	if err != nil {
		res.Status = StatusFail
		res.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Error)
		log.Warn("case failed", zap.Error(err))
	} else {
		res.Status = StatusPass
		log.Debug("case passed", zap.Duration("duration", res.Duration))
	}
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return res
}

func runRecovered(c Case, r *realm.Realm) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Internal(errors.PhaseVerify, fmt.Sprintf("case panicked: %v", p), nil)
		}
	}()
	return c.Run(r)
}
