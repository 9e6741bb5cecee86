// Package observer provides OTEL-based observability for dispatched CouchDB
// operations.
//
// It wraps a couchmcp.Handler with an instrumented version that emits
// traces, metrics, and logs via OpenTelemetry. Users export to any
// OTEL-compatible backend by setting standard OTEL env vars; a config
// endpoint overrides them when set.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/couchmcp/couchmcp/observer"

// Config controls exporter setup.
type Config struct {
	// Endpoint overrides the standard OTEL env configuration when set,
	// e.g. "http://localhost:4318".
	Endpoint string
	// ServiceVersion is reported on the resource when set.
	ServiceVersion string
}

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// DispatchCalls counts every dispatched operation by name and status.
	DispatchCalls metric.Int64Counter
	// DispatchDuration records per-operation latency.
	DispatchDuration metric.Float64Histogram
	// DispatchErrors counts failures by operation and error kind.
	DispatchErrors metric.Int64Counter
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT,
// etc.) unless cfg.Endpoint is set. Returns a shutdown function that must be
// called on application exit.
func Init(ctx context.Context, cfg Config) (*Instruments, func(context.Context) error, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName("couchmcp")),
		resource.WithFromEnv(),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	var traceOpts []otlptracehttp.Option
	if cfg.Endpoint != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	}
	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	var metricOpts []otlpmetrichttp.Option
	if cfg.Endpoint != "" {
		metricOpts = append(metricOpts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	var logOpts []otlploghttp.Option
	if cfg.Endpoint != "" {
		logOpts = append(logOpts, otlploghttp.WithEndpointURL(cfg.Endpoint))
	}
	logExp, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	calls, err := meter.Int64Counter("couchmcp.dispatch.calls",
		metric.WithDescription("Dispatched operation count"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("couchmcp.dispatch.duration",
		metric.WithDescription("Operation dispatch duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	errCount, err := meter.Int64Counter("couchmcp.dispatch.errors",
		metric.WithDescription("Dispatch failure count by error kind"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:           tracer,
		Meter:            meter,
		Logger:           logger,
		DispatchCalls:    calls,
		DispatchDuration: duration,
		DispatchErrors:   errCount,
	}, nil
}
