package reconcile

import (
	"context"

	"github.com/varunnayak/stripe-migrate/internal/platform"
)

// Status is the terminal state of one source entity.
type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusDryRun  Status = "dry_run"
)

// Failure classifies why an entity ended FAILED.
type Failure string

const (
	FailureNone           Failure = ""
	FailureMissingMapping Failure = "missing_mapping"
	FailurePrecondition   Failure = "precondition"
	FailureAPI            Failure = "api_error"
	FailureInternal       Failure = "internal"
)

// Outcome is what happened to one source entity.
type Outcome struct {
	Kind     platform.Kind
	SourceID string
	Status   Status
	// TargetID is empty for dry runs and for conflicts on non-portable kinds.
	TargetID string
	// Exists reports whether the entity is, or after a live run would be, present
	// in the target. Dependent entities are only attempted when it is true.
	Exists  bool
	Reason  string
	Failure Failure
	Err     error
}

// Recorder observes every outcome, e.g. for metrics.
type Recorder interface {
	RecordOutcome(ctx context.Context, o Outcome)
}

// Tally counts outcomes for one entity kind.
type Tally struct {
	Created int `json:"created" yaml:"created"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
	DryRun  int `json:"dry_run" yaml:"dry_run"`
}

func (t *Tally) Record(status Status) {
	switch status {
	case StatusCreated:
		t.Created++
	case StatusSkipped:
		t.Skipped++
	case StatusFailed:
		t.Failed++
	case StatusDryRun:
		t.DryRun++
	}
}

func (t Tally) Total() int {
	return t.Created + t.Skipped + t.Failed + t.DryRun
}

// Summary holds independent tallies for the kinds handled by one phase.
type Summary struct {
	kinds   []platform.Kind
	tallies map[platform.Kind]*Tally
}

func NewSummary(kinds ...platform.Kind) *Summary {
	s := &Summary{tallies: make(map[platform.Kind]*Tally, len(kinds))}
	for _, k := range kinds {
		s.ensure(k)
	}
	return s
}

func (s *Summary) ensure(kind platform.Kind) *Tally {
	t, ok := s.tallies[kind]
	if !ok {
		t = &Tally{}
		s.tallies[kind] = t
		s.kinds = append(s.kinds, kind)
	}
	return t
}

func (s *Summary) Record(o Outcome) {
	s.ensure(o.Kind).Record(o.Status)
}

// Tally returns the counters for kind.
func (s *Summary) Tally(kind platform.Kind) Tally {
	if t, ok := s.tallies[kind]; ok {
		return *t
	}
	return Tally{}
}

// Kinds returns the kinds in the order they were first recorded or declared.
func (s *Summary) Kinds() []platform.Kind {
	return append([]platform.Kind(nil), s.kinds...)
}

func (s *Summary) Failed() int {
	n := 0
	for _, t := range s.tallies {
		n += t.Failed
	}
	return n
}
