// Package orchestrator runs the migration phases in dependency order and
// collects their outcomes into a run report.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-multierror"
	"github.com/varunnayak/stripe-migrate/internal/catalog"
	"github.com/varunnayak/stripe-migrate/internal/clock"
	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/discount"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"github.com/varunnayak/stripe-migrate/internal/subscription"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrPhaseAborted = errors.New("phase_aborted")
	ErrUnknownStep  = errors.New("unknown_step")
)

// Phase migrates one entity type, or a parent type with its children.
type Phase interface {
	Name() string
	Kinds() []platform.Kind
	Run(ctx context.Context, run reconcile.Run) (*reconcile.Summary, error)
}

// RunObserver is notified once a run has finished, aborted phases included.
type RunObserver interface {
	ObserveRun(ctx context.Context, report *Report)
}

type Orchestrator struct {
	phases    []Phase
	observers []RunObserver
	clock     clock.Clock
	node      *snowflake.Node
	tracer    trace.Tracer
	log       *zap.Logger
}

type Params struct {
	fx.In

	Catalog       *catalog.Phase
	Discount      *discount.Phase
	Subscription  *subscription.Phase
	Observers     []RunObserver `group:"run_observers"`
	Clock         clock.Clock
	Node          *snowflake.Node
	Log           *zap.Logger
	TraceProvider trace.TracerProvider `optional:"true"`
}

func New(p Params) *Orchestrator {
	o := NewOrchestrator(p.Clock, p.Node, p.Log, p.Catalog, p.Discount, p.Subscription)
	o.observers = p.Observers
	if p.TraceProvider != nil {
		o.tracer = p.TraceProvider.Tracer("github.com/varunnayak/stripe-migrate/internal/orchestrator")
	}
	return o
}

// NewOrchestrator runs phases in the order given.
func NewOrchestrator(clk clock.Clock, node *snowflake.Node, log *zap.Logger, phases ...Phase) *Orchestrator {
	return &Orchestrator{
		phases: phases,
		clock:  clk,
		node:   node,
		tracer: noop.NewTracerProvider().Tracer(""),
		log:    log.Named("orchestrator"),
	}
}

// Observe registers an observer for finished runs.
func (o *Orchestrator) Observe(obs RunObserver) {
	o.observers = append(o.observers, obs)
}

// Run executes the selected phases in dependency order. A phase that aborts
// does not stop later phases; every abort is returned in the combined error.
// Per-entity failures are only counted in the report.
func (o *Orchestrator) Run(ctx context.Context, steps []string, dryRun bool) (*Report, error) {
	selected, err := o.selectPhases(steps)
	if err != nil {
		return nil, err
	}

	run := reconcile.Run{ID: o.node.Generate().String(), DryRun: dryRun}
	log := o.log.With(zap.String("run_id", run.ID), zap.Bool("dry_run", dryRun))
	report := &Report{RunID: run.ID, DryRun: dryRun, StartedAt: o.clock.Now()}

	if len(selected) == 1 && selected[0].Name() == config.StepSubscriptions {
		log.Warn("running subscriptions alone, products and coupons are assumed to be migrated already")
	}
	if !dryRun {
		log.Warn("live run, the target account will be modified")
	}
	log.Info("migration started", zap.Strings("steps", names(selected)))

	var result *multierror.Error
	for _, phase := range selected {
		pr, err := o.runPhase(ctx, log, run, phase)
		report.Phases = append(report.Phases, pr)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %w", ErrPhaseAborted, phase.Name(), err))
		}
	}
	report.FinishedAt = o.clock.Now()

	totals := report.Totals()
	log.Info("migration finished",
		zap.Int("created", totals.Created),
		zap.Int("skipped", totals.Skipped),
		zap.Int("failed", totals.Failed),
		zap.Int("dry_run", totals.DryRun),
		zap.Strings("aborted_phases", report.Aborted()),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	for _, obs := range o.observers {
		obs.ObserveRun(ctx, report)
	}
	return report, result.ErrorOrNil()
}

func (o *Orchestrator) runPhase(ctx context.Context, log *zap.Logger, run reconcile.Run, phase Phase) (PhaseReport, error) {
	ctx, span := o.tracer.Start(ctx, "migrate."+phase.Name(), trace.WithAttributes(
		attribute.String("run_id", run.ID),
		attribute.Bool("dry_run", run.DryRun),
	))
	defer span.End()

	log = log.With(zap.String("phase", phase.Name()))
	log.Info("phase started")
	started := o.clock.Now()

	summary, err := o.safeRun(ctx, run, phase)
	pr := newPhaseReport(phase.Name(), summary)
	pr.StartedAt = started
	pr.FinishedAt = o.clock.Now()

	for _, k := range pr.Kinds {
		span.SetAttributes(
			attribute.Int(string(k.Kind)+".created", k.Created),
			attribute.Int(string(k.Kind)+".skipped", k.Skipped),
			attribute.Int(string(k.Kind)+".failed", k.Failed),
			attribute.Int(string(k.Kind)+".dry_run", k.DryRun),
		)
	}
	if err != nil {
		pr.Aborted = true
		pr.Reason = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "phase aborted")
		log.Error("phase aborted", zap.Error(err))
		return pr, err
	}
	log.Info("phase finished", zap.Any("kinds", pr.Kinds))
	return pr, nil
}

// safeRun keeps a panicking phase from taking down the phases after it.
func (o *Orchestrator) safeRun(ctx context.Context, run reconcile.Run, phase Phase) (summary *reconcile.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return phase.Run(ctx, run)
}

func (o *Orchestrator) selectPhases(steps []string) ([]Phase, error) {
	if len(steps) == 0 || slices.Contains(steps, config.StepAll) {
		return o.phases, nil
	}
	for _, step := range steps {
		if !slices.ContainsFunc(o.phases, func(p Phase) bool { return p.Name() == step }) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
		}
	}
	var out []Phase
	for _, p := range o.phases {
		if slices.Contains(steps, p.Name()) {
			out = append(out, p)
		}
	}
	return out, nil
}

func names(phases []Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = p.Name()
	}
	return out
}
