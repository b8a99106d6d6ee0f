// Package reconcile holds the per-entity migration state machine shared by every
// phase: look up the correlation index, resolve dependencies, and create only
// what the target does not already have.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"go.uber.org/zap"
)

// ErrPrecondition marks live-only checks that failed before a create was attempted.
var ErrPrecondition = errors.New("precondition_failed")

// Spec is the per-kind configuration of a Migrator. Only Build and Create are required.
type Spec[T platform.Object] struct {
	Kind     platform.Kind
	Strategy correlation.Strategy[T]

	// Eligible excludes source entities outright. They end SKIPPED without a target.
	Eligible func(src T) (ok bool, reason string)
	// Build derives the entity to create from the source entity. It must not perform
	// I/O; dependency lookups go through a Resolver.
	Build func(src T) (T, error)
	// Prepare runs live-only preconditions that need I/O, after Build succeeded.
	Prepare func(ctx context.Context, src, desired T) (T, error)
	Create  func(ctx context.Context, desired T, opts platform.CreateOptions) (T, error)
	// Refetch retrieves a portable entity after a conflict on create.
	Refetch func(ctx context.Context, id string) (T, error)
	// Probe performs read-only existence checks during dry runs, for logging only.
	Probe func(ctx context.Context, src T)
	// AfterCreate runs side effects of a successful create. It cannot change the outcome.
	AfterCreate func(ctx context.Context, src, created T)
}

type Options struct {
	DryRun   bool
	Log      *zap.Logger
	Recorder Recorder
	// IdempotencyKey derives the create idempotency key from kind and correlation key.
	IdempotencyKey func(kind platform.Kind, key string) string
}

// Migrator drives one source entity at a time from UNSEEN to a terminal status.
type Migrator[T platform.Object] struct {
	spec  Spec[T]
	index *correlation.Index
	opts  Options
	log   *zap.Logger
}

func NewMigrator[T platform.Object](spec Spec[T], index *correlation.Index, opts Options) *Migrator[T] {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Migrator[T]{
		spec:  spec,
		index: index,
		opts:  opts,
		log:   log.With(zap.String("kind", string(spec.Kind)), zap.Bool("dry_run", opts.DryRun)),
	}
}

// Index returns the correlation index the migrator reads and appends to.
func (m *Migrator[T]) Index() *correlation.Index { return m.index }

// Migrate processes src. It never panics and never returns an error: every
// failure is folded into a FAILED outcome.
func (m *Migrator[T]) Migrate(ctx context.Context, src T) (out Outcome) {
	sourceID := src.ObjectID()
	log := m.log.With(zap.String("source_id", sourceID))
	defer func() {
		if r := recover(); r != nil {
			out = m.failed(log, sourceID, FailureInternal, fmt.Errorf("panic: %v", r))
		}
		if m.opts.Recorder != nil {
			m.opts.Recorder.RecordOutcome(ctx, out)
		}
	}()

	if m.spec.Eligible != nil {
		if ok, reason := m.spec.Eligible(src); !ok {
			log.Info("source entity not eligible, skipping", zap.String("reason", reason))
			return Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusSkipped, Reason: reason}
		}
	}

	key := m.spec.Strategy.SourceKey(src)
	log = log.With(zap.String("correlation_key", key))
	if targetID, ok := m.index.Lookup(key); ok {
		log.Info("already present in target, reusing", zap.String("target_id", targetID))
		return Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusSkipped, TargetID: targetID, Exists: true, Reason: "correlated"}
	}

	desired, err := m.spec.Build(src)
	if err != nil {
		return m.failed(log, sourceID, classify(err, FailureInternal), err)
	}

	if m.opts.DryRun {
		if m.spec.Probe != nil {
			m.spec.Probe(ctx, src)
		}
		m.index.AddPending(key)
		log.Info("would create in target")
		return Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusDryRun, Exists: true}
	}

	if m.spec.Prepare != nil {
		desired, err = m.spec.Prepare(ctx, src, desired)
		if err != nil {
			return m.failed(log, sourceID, classify(err, FailurePrecondition), err)
		}
	}

	var createOpts platform.CreateOptions
	if m.opts.IdempotencyKey != nil {
		createOpts.IdempotencyKey = m.opts.IdempotencyKey(m.spec.Kind, key)
	}
	created, err := m.spec.Create(ctx, desired, createOpts)
	if err != nil {
		if platform.IsConflict(err) {
			return m.conflict(ctx, log, key, sourceID, desired, err)
		}
		return m.failed(log, sourceID, classify(err, FailureAPI), err)
	}

	targetID := created.ObjectID()
	m.index.Add(key, targetID)
	log.Info("created in target", zap.String("target_id", targetID))
	if m.spec.AfterCreate != nil {
		m.spec.AfterCreate(ctx, src, created)
	}
	return Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusCreated, TargetID: targetID, Exists: true}
}

func (m *Migrator[T]) conflict(ctx context.Context, log *zap.Logger, key, sourceID string, desired T, cause error) Outcome {
	out := Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusSkipped, Exists: true, Reason: "conflict"}
	if m.spec.Kind.Portable() {
		out.TargetID = desired.ObjectID()
		if m.spec.Refetch != nil {
			got, err := m.spec.Refetch(ctx, desired.ObjectID())
			if err != nil {
				log.Warn("refetch after conflict failed, assuming portable id", zap.Error(err))
			} else {
				out.TargetID = got.ObjectID()
			}
		}
	}
	m.index.Add(key, out.TargetID)
	log.Warn("created concurrently by someone else, treating as present",
		zap.String("target_id", out.TargetID),
		zap.NamedError("cause", cause),
	)
	return out
}

func (m *Migrator[T]) failed(log *zap.Logger, sourceID string, failure Failure, err error) Outcome {
	log.Error("migration failed",
		zap.String("failure", string(failure)),
		zap.Error(err),
	)
	return Outcome{Kind: m.spec.Kind, SourceID: sourceID, Status: StatusFailed, Failure: failure, Err: err}
}

func classify(err error, fallback Failure) Failure {
	switch {
	case errors.Is(err, ErrMissingMapping):
		return FailureMissingMapping
	case errors.Is(err, ErrPrecondition):
		return FailurePrecondition
	default:
		return fallback
	}
}
