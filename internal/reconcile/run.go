package reconcile

import "go.uber.org/zap"

// Run identifies one invocation of the migration and its mode.
type Run struct {
	ID     string
	DryRun bool
}

// Options returns migrator options for this run.
func (r Run) Options(log *zap.Logger, recorder Recorder) Options {
	return Options{
		DryRun:         r.DryRun,
		Log:            log.With(zap.String("run_id", r.ID)),
		Recorder:       recorder,
		IdempotencyKey: IdempotencyKeys(r.ID),
	}
}
