package observer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/couchmcp/couchmcp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedDispatcher wraps a couchmcp.Handler with OTEL instrumentation.
// It changes no dispatch behavior: results and errors pass through
// untouched.
type ObservedDispatcher struct {
	inner couchmcp.Handler
	inst  *Instruments
}

// WrapDispatcher returns an instrumented handler.
func WrapDispatcher(inner couchmcp.Handler, inst *Instruments) *ObservedDispatcher {
	return &ObservedDispatcher{inner: inner, inst: inst}
}

var _ couchmcp.Handler = (*ObservedDispatcher)(nil)

func (o *ObservedDispatcher) Dispatch(ctx context.Context, operation string, args json.RawMessage) (any, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "couchmcp.dispatch", trace.WithAttributes(
		AttrOperation.String(operation),
	))
	defer span.End()
	start := time.Now()

	out, err := o.inner.Dispatch(ctx, operation, args)

	durationMs := float64(time.Since(start).Milliseconds())
	status := statusOf(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrStatus.String(status))

	o.inst.DispatchCalls.Add(ctx, 1, metric.WithAttributes(
		AttrOperation.String(operation),
		attribute.String("status", status),
	))
	o.inst.DispatchDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrOperation.String(operation),
	))
	if err != nil {
		o.inst.DispatchErrors.Add(ctx, 1, metric.WithAttributes(
			AttrOperation.String(operation),
			AttrErrorKind.String(status),
		))
	}

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("operation dispatched"))
	rec.AddAttributes(
		otellog.String("couchmcp.operation", operation),
		otellog.String("couchmcp.status", status),
		otellog.Float64("couchmcp.duration_ms", durationMs),
	)
	if err != nil {
		rec.AddAttributes(otellog.String("couchmcp.error", err.Error()))
	}
	o.inst.Logger.Emit(ctx, rec)

	return out, err
}

// statusOf folds an error into the status label: "ok" for success, the
// taxonomy kind for classified failures, "error" otherwise.
func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := couchmcp.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
