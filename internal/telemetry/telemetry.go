// Package telemetry wires up the process's Prometheus metrics and
// OpenTelemetry tracer provider, grounded on Tutu-Engine's
// internal/infra/metrics (promauto-registered counters/gauges/
// histograms under a namespace) and the teacher's otel/otelslog
// dependency pair for the structured-log bridge.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const namespace = "nonagon"

// The flush collectors publish the `{dirty_qsize, batch, duration_ms}`
// triple from spec.md §4.1's flush loop; the scheduler and wizard
// collectors follow.
var (
	flushQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "flush_dirty_queue_size",
		Help: "Dirty-queue length observed at the start of the most recent flush batch.",
	})
	flushBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "flush_batch_size",
		Help:    "Number of coalesced users written per flush batch.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
	})
	flushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "flush_duration_seconds",
		Help:    "Wall-clock duration of a flush batch.",
		Buckets: prometheus.DefBuckets,
	})
	flushErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "flush_errors_total",
		Help: "Total per-user persistence failures across all flush batches.",
	})

	schedulerTenantsScanned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "scheduler_tenants_scanned_total",
		Help: "Total tenant scans performed by the announcement scheduler.",
	})
	schedulerPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "scheduler_quests_published_total",
		Help: "Total quests published by the deferred announcement scheduler.",
	})
	schedulerErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "scheduler_tick_errors_total",
		Help: "Total tenant scans that failed outright during a scheduler tick.",
	})
	schedulerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "scheduler_tick_duration_seconds",
		Help:    "Wall-clock duration of one scheduler tick across all tenants.",
		Buckets: prometheus.DefBuckets,
	})

	wizardSessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "wizard_sessions_opened_total",
		Help: "Total DM wizard sessions started.",
	})
	wizardSessionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "wizard_sessions_resolved_total",
		Help: "Total DM wizard sessions resolved, by outcome.",
	}, []string{"outcome"})
)

// Metrics adapts the package-level Prometheus collectors to the
// guildcache.Metrics and scheduler.Metrics observer interfaces, so both
// background loops report through the same registry without depending on
// this package's internals.
type Metrics struct{}

func NewMetrics() Metrics { return Metrics{} }

// ObserveFlush implements guildcache.Metrics.
func (Metrics) ObserveFlush(dirtyQueueSize, batchSize int, duration time.Duration) {
	flushQueueSize.Set(float64(dirtyQueueSize))
	flushBatchSize.Observe(float64(batchSize))
	flushDuration.Observe(duration.Seconds())
}

// ObserveFlushError increments the flush error counter; called once per
// per-user failure inside the flush loop (kept separate from
// ObserveFlush since a batch reports one duration but N errors).
func (Metrics) ObserveFlushError() { flushErrors.Inc() }

// ObserveScheduler implements scheduler.Metrics.
func (Metrics) ObserveScheduler(tenantsScanned, published, errored int, duration time.Duration) {
	schedulerTenantsScanned.Add(float64(tenantsScanned))
	schedulerPublished.Add(float64(published))
	schedulerErrors.Add(float64(errored))
	schedulerDuration.Observe(duration.Seconds())
}

// ObserveWizardOpened records a new wizard session starting.
func (Metrics) ObserveWizardOpened() { wizardSessionsOpened.Inc() }

// ObserveWizardResolved records a wizard session's terminal outcome
// ("success", "cancelled", "timed out").
func (Metrics) ObserveWizardResolved(outcome string) {
	wizardSessionsResolved.WithLabelValues(outcome).Inc()
}

// NewTracerProvider builds the process's otel tracer provider, tagged
// with the service name, matching the teacher's go.mod otel/sdk pairing.
func NewTracerProvider(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// NewLoggerProvider builds an otel log provider wired to no exporter by
// default; callers that want logs shipped to a collector attach a
// processor before calling NewSlogHandler. Kept separate from
// NewTracerProvider so a caller can use one without the other.
func NewLoggerProvider() *log.LoggerProvider {
	return log.NewLoggerProvider()
}

// NewSlogHandler bridges the stdlib slog logger used throughout this
// process onto the otel log pipeline via otelslog, so a slog.Logger built
// on the returned handler emits otel log records when a provider with
// exporters is supplied.
func NewSlogHandler(provider *log.LoggerProvider, scope string) slog.Handler {
	return otelslog.NewHandler(scope, otelslog.WithLoggerProvider(provider))
}
