package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"crm-functions/internal/common/logger"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	invocations    otelmetric.Int64Counter
	duration       otelmetric.Float64Histogram
	logger         logger.Logger
}

// New wires the OpenTelemetry meter (exported through the Prometheus
// registry) and the tracer provider.
func New(cfg Config, log logger.Logger) *Observability {
	o := &Observability{
		tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName),
		logger: log,
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(cfg.ServiceName)

		o.invocations, _ = o.meter.Int64Counter(
			"functions.invoked",
			otelmetric.WithDescription("Number of function invocations"),
		)
		o.duration, _ = o.meter.Float64Histogram(
			"functions.duration",
			otelmetric.WithDescription("Function invocation duration"),
			otelmetric.WithUnit("ms"),
		)
	}

	tp, err := newTracerProvider(cfg)
	if err != nil {
		log.Warn("Tracing disabled", map[string]interface{}{"error": err.Error()})
		return o
	}
	if tp != nil {
		o.tracerProvider = tp
		otel.SetTracerProvider(tp)
		o.tracer = tp.Tracer(cfg.ServiceName)
	}
	return o
}

// StartSpan opens a span for one invocation.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Observability) RecordInvocation(ctx context.Context, function, status string) {
	if o.invocations != nil {
		o.invocations.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("function", function),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordDuration(ctx context.Context, function string, duration time.Duration, status string) {
	if o.duration != nil {
		o.duration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("function", function),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
