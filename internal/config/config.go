package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string `mapstructure:"app_name"`
	AppVersion  string `mapstructure:"app_version"`
	Environment string `mapstructure:"environment"`

	SourceAPIKey string `mapstructure:"source_api_key"`
	TargetAPIKey string `mapstructure:"target_api_key"`

	// DryRun is true unless Options.Live was set. It is never read from a file
	// or the environment.
	DryRun bool   `mapstructure:"-"`
	Step   string `mapstructure:"step"`
	Output string `mapstructure:"output"`

	Stripe        StripeConfig        `mapstructure:"stripe"`
	PaymentMethod PaymentMethodConfig `mapstructure:"payment_method"`
	Subscription  SubscriptionConfig  `mapstructure:"subscription"`
	Log           LogConfig           `mapstructure:"log"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Pushgateway   PushgatewayConfig   `mapstructure:"pushgateway"`
}

type StripeConfig struct {
	PageSize          int64 `mapstructure:"page_size"`
	MaxNetworkRetries int64 `mapstructure:"max_network_retries"`
	// BaseURL points both clients at another API host, e.g. stripe-mock.
	BaseURL string `mapstructure:"base_url"`
	// RequestsPerSecond paces each account's client. Zero disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type PaymentMethodConfig struct {
	// SetDefault makes a found but non-default card the customer's default.
	SetDefault bool `mapstructure:"set_default"`
	// SourceFallback copies the source customer's card when the target customer has none.
	SourceFallback bool `mapstructure:"source_fallback"`
}

type SubscriptionConfig struct {
	CancelSourceAtPeriodEnd bool `mapstructure:"cancel_source_at_period_end"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol"`
	Insecure bool   `mapstructure:"insecure"`
}

type PushgatewayConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Job      string `mapstructure:"job"`
}

const (
	StepProducts      = "products"
	StepCoupons       = "coupons"
	StepSubscriptions = "subscriptions"
	StepAll           = "all"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

const (
	envPrefix  = "STRIPE_MIGRATE"
	configName = "stripe-migrate"
)

// Options control where Load looks for settings beyond the environment.
type Options struct {
	// File is an explicit config file. It must exist when set.
	File string
	// Overrides are applied last, keyed like the config file (e.g. "log.level").
	Overrides map[string]any
	// SkipDotEnv disables loading a local .env file.
	SkipDotEnv bool
	// Live switches the run to modify the target account.
	Live bool
}

// Load reads .env, defaults, the optional config file, the environment and
// overrides, in increasing order of precedence.
func Load(opts Options) (Config, error) {
	if !opts.SkipDotEnv {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("source_api_key", envPrefix+"_SOURCE_API_KEY", "API_KEY_SOURCE")
	_ = v.BindEnv("target_api_key", envPrefix+"_TARGET_API_KEY", "API_KEY_TARGET")

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.DryRun = !opts.Live
	cfg.normalize()
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "stripe-migrate")
	v.SetDefault("app_version", "0.1.0")
	v.SetDefault("environment", "development")
	v.SetDefault("source_api_key", "")
	v.SetDefault("target_api_key", "")
	v.SetDefault("step", StepAll)
	v.SetDefault("output", OutputText)
	v.SetDefault("stripe.page_size", 100)
	v.SetDefault("stripe.max_network_retries", 2)
	v.SetDefault("stripe.base_url", "")
	v.SetDefault("stripe.requests_per_second", 20)
	v.SetDefault("payment_method.set_default", true)
	v.SetDefault("payment_method.source_fallback", false)
	v.SetDefault("subscription.cancel_source_at_period_end", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.protocol", "grpc")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("pushgateway.endpoint", "")
	v.SetDefault("pushgateway.job", "stripe_migrate")
}

func (c *Config) normalize() {
	c.SourceAPIKey = strings.TrimSpace(c.SourceAPIKey)
	c.TargetAPIKey = strings.TrimSpace(c.TargetAPIKey)
	c.Step = strings.ToLower(strings.TrimSpace(c.Step))
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Telemetry.Protocol = strings.ToLower(strings.TrimSpace(c.Telemetry.Protocol))
	c.Pushgateway.Endpoint = strings.TrimSpace(c.Pushgateway.Endpoint)
	c.Stripe.BaseURL = strings.TrimSpace(c.Stripe.BaseURL)
}

// Steps expands the step selector into the phases to run, in dependency order.
func (c Config) Steps() []string {
	if c.Step == StepAll || c.Step == "" {
		return []string{StepProducts, StepCoupons, StepSubscriptions}
	}
	return []string{c.Step}
}
