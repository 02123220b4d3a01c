package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	apiCalls       otelmetric.Int64Counter
	apiDuration    otelmetric.Float64Histogram
	actions        otelmetric.Int64Counter
}

// New installs global meter and tracer providers for serviceName. Failures to
// build the exporter degrade to a no-op instance.
func New(serviceName string) *Observability {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	o := &Observability{
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	apiCalls, _ := meter.Int64Counter(
		"api.calls",
		otelmetric.WithDescription("Number of REST calls issued"),
	)
	apiDuration, _ := meter.Float64Histogram(
		"api.duration",
		otelmetric.WithDescription("REST call duration"),
		otelmetric.WithUnit("ms"),
	)
	actions, _ := meter.Int64Counter(
		"workflow.actions",
		otelmetric.WithDescription("Review workflow actions submitted"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.apiCalls = apiCalls
	o.apiDuration = apiDuration
	o.actions = actions
	return o
}

// StartSpan starts a span on the console tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return otel.Tracer("marketplace-console").Start(ctx, name, trace.WithAttributes(attrs...))
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordAPICall(ctx context.Context, method, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	)
	if o.apiCalls != nil {
		o.apiCalls.Add(ctx, 1, attrs)
	}
	if o.apiDuration != nil {
		o.apiDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordAction(ctx context.Context, action, outcome string) {
	if o == nil || o.actions == nil {
		return
	}
	o.actions.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
