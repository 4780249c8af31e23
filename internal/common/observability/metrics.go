package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Observability bundles the OpenTelemetry meter and tracer used by the
// pipeline service and the job workers. Meters are exported through the
// Prometheus registry so they appear on /metrics.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	jobCounter      otelmetric.Int64Counter
	jobDuration     otelmetric.Float64Histogram
	viewCounter     otelmetric.Int64Counter
	viewDuration    otelmetric.Float64Histogram
	mutationCounter otelmetric.Int64Counter
	degradations    otelmetric.Int64Counter
	exclusions      otelmetric.Int64Counter
}

// New registers the exporter with the default Prometheus registerer.
func New(serviceName string) (*Observability, error) {
	return NewWithRegisterer(serviceName, prometheus.DefaultRegisterer)
}

func NewWithRegisterer(serviceName string, reg prometheus.Registerer) (*Observability, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	mp := metric.NewMeterProvider(metric.WithReader(exporter))
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	o := &Observability{
		meterProvider:  mp,
		tracerProvider: tp,
		tracer:         tp.Tracer(serviceName),
	}
	if err := o.initInstruments(mp.Meter(serviceName)); err != nil {
		return nil, err
	}
	return o, nil
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	o := &Observability{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
	_ = o.initInstruments(metricnoop.NewMeterProvider().Meter("noop"))
	return o
}

func (o *Observability) initInstruments(meter otelmetric.Meter) error {
	var err error
	if o.jobCounter, err = meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed")); err != nil {
		return err
	}
	if o.jobDuration, err = meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms")); err != nil {
		return err
	}
	if o.viewCounter, err = meter.Int64Counter("pipeline.views.built",
		otelmetric.WithDescription("Candidate views assembled")); err != nil {
		return err
	}
	if o.viewDuration, err = meter.Float64Histogram("pipeline.views.duration",
		otelmetric.WithDescription("Time to assemble a candidate view"),
		otelmetric.WithUnit("ms")); err != nil {
		return err
	}
	if o.mutationCounter, err = meter.Int64Counter("pipeline.mutations",
		otelmetric.WithDescription("Mutations applied by kind and outcome")); err != nil {
		return err
	}
	if o.degradations, err = meter.Int64Counter("pipeline.feed.degradations",
		otelmetric.WithDescription("Source feeds that degraded during a read")); err != nil {
		return err
	}
	if o.exclusions, err = meter.Int64Counter("pipeline.records.excluded",
		otelmetric.WithDescription("Records dropped by the identity matcher")); err != nil {
		return err
	}
	return nil
}

// StartSpan starts a span named name as a child of any span in ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	o.jobDuration.Record(ctx, float64(duration.Milliseconds()),
		otelmetric.WithAttributes(attribute.String("status", status)))
}

func (o *Observability) RecordView(ctx context.Context, duration time.Duration, degraded bool, embedded bool) {
	attrs := otelmetric.WithAttributes(
		attribute.Bool("degraded", degraded),
		attribute.Bool("embedded", embedded),
	)
	o.viewCounter.Add(ctx, 1, attrs)
	o.viewDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) RecordMutation(ctx context.Context, kind, outcome string) {
	o.mutationCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordDegradation(ctx context.Context, source, kind string) {
	o.degradations.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("source", source),
		attribute.String("kind", kind),
	))
}

func (o *Observability) RecordExclusion(ctx context.Context, reason string) {
	o.exclusions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", reason)))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		if err := o.tracerProvider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if o.meterProvider != nil {
		return o.meterProvider.Shutdown(ctx)
	}
	return nil
}
