package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/report"
	"go.uber.org/fx"
)

const stopTimeout = 10 * time.Second

// RootOptions holds the command-line flags.
type RootOptions struct {
	Live       bool
	Step       string
	Debug      bool
	LogFormat  string
	ConfigFile string
	Output     string
}

// NewRootCommand creates the stripe-migrate command.
func NewRootCommand() *cobra.Command {
	return newRootCommand()
}

// newRootCommand accepts extra fx options so tests can swap the platform.
func newRootCommand(extra ...fx.Option) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stripe-migrate",
		Short: "Copy products, prices, coupons, promotion codes and subscriptions between Stripe accounts",
		Long: `stripe-migrate copies the billing catalog and active subscriptions from a
source Stripe account into a target account, in dependency order.

Every run is a dry run unless --live is given. Created entities are tagged
with the source ID, so re-running after a partial failure only creates
what is still missing.

Credentials are read from STRIPE_MIGRATE_SOURCE_API_KEY and
STRIPE_MIGRATE_TARGET_API_KEY (or API_KEY_SOURCE / API_KEY_TARGET), a
local .env file, or the config file.

Example:
  stripe-migrate --step products
  stripe-migrate --live --step all --output json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, opts, extra)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Live, "live", false, "modify the target account (default is a dry run)")
	flags.StringVar(&opts.Step, "step", config.StepAll, "phase to run (products|coupons|subscriptions|all)")
	flags.BoolVarP(&opts.Debug, "debug", "d", false, "debug logging")
	flags.StringVar(&opts.LogFormat, "log-format", "json", "log encoding (json|console)")
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML config file")
	flags.StringVarP(&opts.Output, "output", "o", config.OutputText, "summary format (text|json|yaml)")

	return cmd
}

// overrides turns the flags the user actually set into config keys, so
// unset flags never shadow the file or environment.
func (o *RootOptions) overrides(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("step") {
		out["step"] = o.Step
	}
	if flags.Changed("debug") && o.Debug {
		out["log.level"] = "debug"
	}
	if flags.Changed("log-format") {
		out["log.format"] = o.LogFormat
	}
	if flags.Changed("output") {
		out["output"] = o.Output
	}
	return out
}

func runMigration(cmd *cobra.Command, opts *RootOptions, extra []fx.Option) error {
	cfg, err := config.Load(config.Options{
		File:      opts.ConfigFile,
		Overrides: opts.overrides(cmd),
		Live:      opts.Live,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	var orch *orchestrator.Orchestrator
	app := fx.New(
		Modules(cfg),
		fx.Options(extra...),
		fx.Populate(&orch),
	)
	if err := app.Err(); err != nil {
		return WrapExitError(ExitCommandError, "build application", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "start application", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	result, runErr := orch.Run(ctx, cfg.Steps(), cfg.DryRun)
	if result == nil {
		return WrapExitError(ExitCommandError, "run", runErr)
	}
	if err := report.Write(cmd.OutOrStdout(), cfg.Output, result); err != nil {
		return WrapExitError(ExitCommandError, "write summary", err)
	}
	if result.NeedsFollowUp() {
		if runErr == nil {
			runErr = errors.New("entity failures")
		}
		return WrapExitError(ExitFollowUp, "migration needs manual follow-up", runErr)
	}
	return nil
}
