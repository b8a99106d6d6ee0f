package observability

import (
	"github.com/varunnayak/stripe-migrate/internal/observability/logger"
	"github.com/varunnayak/stripe-migrate/internal/observability/metrics"
	"github.com/varunnayak/stripe-migrate/internal/observability/pushgateway"
	"github.com/varunnayak/stripe-migrate/internal/observability/tracing"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		provideLoggerConfig,
		logger.New,
		provideTracingConfig,
		tracing.NewProvider,
		provideTracerProvider,
		provideMetricsConfig,
		metrics.NewProvider,
		metrics.New,
		provideRecorder,
		fx.Annotate(provideMetricsObserver, fx.ResultTags(`group:"run_observers"`)),
		fx.Annotate(providePushgateway, fx.ResultTags(`group:"run_observers"`)),
	),
)

func provideLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		IncludeCaller:       cfg.Debug(),
		IncludeStackOnError: cfg.Debug(),
	}
}

func provideTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		Insecure:         cfg.OtelInsecure,
	}
}

func provideTracerProvider(tp *sdktrace.TracerProvider) trace.TracerProvider {
	return tp
}

func provideMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		Insecure:         cfg.OtelInsecure,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

func provideRecorder(m *metrics.Metrics) reconcile.Recorder {
	return m
}

func provideMetricsObserver(m *metrics.Metrics) orchestrator.RunObserver {
	return m
}

func providePushgateway(cfg Config, log *zap.Logger) orchestrator.RunObserver {
	return pushgateway.NewPusher(cfg.PushgatewayEndpoint, cfg.PushgatewayJob, map[string]string{
		"environment": cfg.Environment,
	}, log)
}
