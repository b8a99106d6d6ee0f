package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	Insecure         bool
	ServiceName      string
	Environment      string
}

// Metrics exposes migration instruments. It records every entity outcome and
// observes finished runs.
type Metrics struct {
	outcomes     metric.Int64Counter
	phaseAborts  metric.Int64Counter
	runDuration  metric.Float64Histogram
	runsFinished metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the migration instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "stripe-migrate"
	}
	meter := provider.Meter(name)

	outcomes, err := meter.Int64Counter("stripe_migrate_outcomes_total",
		metric.WithDescription("Terminal outcomes per source entity."))
	if err != nil {
		return nil, err
	}
	phaseAborts, err := meter.Int64Counter("stripe_migrate_phase_aborts_total")
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("stripe_migrate_run_duration_seconds",
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	runsFinished, err := meter.Int64Counter("stripe_migrate_runs_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		outcomes:     outcomes,
		phaseAborts:  phaseAborts,
		runDuration:  runDuration,
		runsFinished: runsFinished,
	}, nil
}

// RecordOutcome counts one entity outcome.
func (m *Metrics) RecordOutcome(ctx context.Context, o reconcile.Outcome) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", string(o.Kind)),
		attribute.String("status", string(o.Status)),
		attribute.String("failure", string(o.Failure)),
	)
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveRun records aborted phases and the run duration.
func (m *Metrics) ObserveRun(ctx context.Context, r *orchestrator.Report) {
	if m == nil || r == nil {
		return
	}
	dryRun := attribute.Bool("dry_run", r.DryRun)
	for _, p := range r.Phases {
		if p.Aborted {
			m.phaseAborts.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("phase", p.Name), dryRun)...))
		}
	}
	result := "ok"
	if r.NeedsFollowUp() {
		result = "follow_up"
	}
	attrs := FilterAttributes(dryRun, attribute.String("result", result))
	m.runsFinished.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runDuration.Record(ctx, r.FinishedAt.Sub(r.StartedAt).Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string, insecure bool) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Entity and run IDs never become labels.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"kind":    {},
	"status":  {},
	"failure": {},
	"phase":   {},
	"dry_run": {},
	"result":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
