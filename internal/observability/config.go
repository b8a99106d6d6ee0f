package observability

import (
	"strings"

	"github.com/varunnayak/stripe-migrate/internal/config"
)

// Config holds observability settings derived from the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelInsecure         bool

	PushgatewayEndpoint string
	PushgatewayJob      string
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "stripe-migrate"
	}
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.Log.Level,
		LogFormat:            cfg.Log.Format,
		OtelEnabled:          cfg.Telemetry.Enabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.Telemetry.Endpoint),
		OtelExporterProtocol: cfg.Telemetry.Protocol,
		OtelInsecure:         cfg.Telemetry.Insecure,
		PushgatewayEndpoint:  cfg.Pushgateway.Endpoint,
		PushgatewayJob:       strings.TrimSpace(cfg.Pushgateway.Job),
	}
}

func (c Config) Debug() bool {
	return c.LogLevel == "debug"
}
