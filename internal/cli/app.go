package cli

import (
	"github.com/bwmarrin/snowflake"
	"github.com/varunnayak/stripe-migrate/internal/catalog"
	"github.com/varunnayak/stripe-migrate/internal/clock"
	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/discount"
	"github.com/varunnayak/stripe-migrate/internal/observability"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/paymentmethod"
	"github.com/varunnayak/stripe-migrate/internal/platform/stripe"
	"github.com/varunnayak/stripe-migrate/internal/subscription"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Modules assembles the application graph for a validated config.
func Modules(cfg config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),

		// Core Infrastructure
		observability.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		stripe.Module,

		// Migration
		paymentmethod.Module,
		catalog.Module,
		discount.Module,
		subscription.Module,
		orchestrator.Module,
	)
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
