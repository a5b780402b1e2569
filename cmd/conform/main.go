package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-jsapi/conformance"
	"github.com/wippyai/wasm-jsapi/engine"
)

func main() {
	var (
		configFile  = flag.String("config", "", "YAML config file")
		backend     = flag.String("backend", "", "Backend to test: native, wazero or all")
		suites      = flag.String("suite", "", "Suites to run (comma-separated, default all)")
		runPattern  = flag.String("run", "", "Only run cases whose suite/case name matches this regexp")
		format      = flag.String("format", "", "Report format: text, json or yaml")
		metricsFile = flag.String("metrics", "", "Write Prometheus metrics to this file")
		trace       = flag.Bool("trace", false, "Print OpenTelemetry spans to stderr")
		verbose     = flag.Bool("v", false, "Verbose logging")
		list        = flag.Bool("list", false, "List suites and cases and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backend
		case "suite":
			cfg.Suites = splitList(*suites)
		case "run":
			cfg.Run = *runPattern
		case "format":
			cfg.Format = *format
		case "metrics":
			cfg.Metrics = *metricsFile
		case "trace":
			cfg.Trace = *trace
		case "v":
			cfg.Verbose = *verbose
		}
	})
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	selected, err := selectSuites(cfg.Suites)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if *list {
		printList(os.Stdout, selected)
		return
	}

	if *interactive {
		if err := runInteractive(cfg, selected); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	failed, err := run(cfg, selected)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func run(cfg Config, suites []conformance.Suite) (bool, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log, err := newLogger(cfg.Verbose)
	if err != nil {
		return false, fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	engine.SetLogger(log.Named("engine"))

	opts := []conformance.RunnerOption{conformance.WithLogger(log.Named("conformance"))}

	if cfg.Run != "" {
		re, err := regexp.Compile(cfg.Run)
		if err != nil {
			return false, fmt.Errorf("compile -run pattern: %w", err)
		}
		opts = append(opts, conformance.WithFilter(re))
	}

	reg := prometheus.NewRegistry()
	if cfg.Metrics != "" {
		opts = append(opts, conformance.WithMetrics(conformance.NewMetrics(reg)))
	}

	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			return false, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		otel.SetTracerProvider(tp)
	}

	runner := conformance.NewRunner(opts...)
	names := cfg.backends()
	reports := make([]*conformance.Report, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			b, err := engine.New(gctx, name, &cfg.Engine)
			if err != nil {
				return fmt.Errorf("create %s backend: %w", name, err)
			}
			defer func() { _ = b.Close(context.Background()) }()

			rep, err := runner.Run(gctx, b, suites...)
			reports[i] = rep
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	if cfg.Metrics != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics, reg); err != nil {
			return false, fmt.Errorf("write metrics: %w", err)
		}
	}

	if err := writeReports(os.Stdout, cfg.Format, reports); err != nil {
		return false, err
	}

	for _, rep := range reports {
		if rep.Failed() {
			return true, nil
		}
	}
	return false, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func selectSuites(names []string) ([]conformance.Suite, error) {
	if len(names) == 0 {
		return conformance.All(), nil
	}
	out := make([]conformance.Suite, 0, len(names))
	for _, name := range names {
		s, ok := conformance.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (known: %s)", name, strings.Join(conformance.Names(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}
