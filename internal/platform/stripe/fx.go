package stripe

import (
	"time"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Stripe's own client timeout.
const requestTimeout = 80 * time.Second

var Module = fx.Module("platform.stripe",
	fx.Provide(NewAccounts),
)

// NewAccounts binds one client to each configured account. Rate limits are
// per account, so each client gets its own limiter.
func NewAccounts(cfg config.Config, log *zap.Logger) platform.Accounts {
	client := func(key string, log *zap.Logger) *Client {
		return NewClient(Config{
			APIKey:            key,
			PageSize:          cfg.Stripe.PageSize,
			MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
			BaseURL:           cfg.Stripe.BaseURL,
			HTTPClient:        ratelimit.NewClient(cfg.Stripe.RequestsPerSecond, requestTimeout, log),
		}, log)
	}
	return platform.Accounts{
		Source: client(cfg.SourceAPIKey, log.Named("stripe.source")),
		Target: client(cfg.TargetAPIKey, log.Named("stripe.target")),
	}
}
