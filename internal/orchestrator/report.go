package orchestrator

import (
	"time"

	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
)

// Report is the run-end summary: enough to tell whether manual follow-up is needed.
type Report struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	DryRun     bool          `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Phases     []PhaseReport `json:"phases" yaml:"phases"`
}

type PhaseReport struct {
	Name       string       `json:"name" yaml:"name"`
	StartedAt  time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time    `json:"finished_at" yaml:"finished_at"`
	Aborted    bool         `json:"aborted" yaml:"aborted"`
	Reason     string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	Kinds      []KindReport `json:"kinds" yaml:"kinds"`
}

type KindReport struct {
	Kind            platform.Kind `json:"kind" yaml:"kind"`
	reconcile.Tally `yaml:",inline"`
}

func newPhaseReport(name string, summary *reconcile.Summary) PhaseReport {
	pr := PhaseReport{Name: name}
	if summary == nil {
		return pr
	}
	for _, kind := range summary.Kinds() {
		pr.Kinds = append(pr.Kinds, KindReport{Kind: kind, Tally: summary.Tally(kind)})
	}
	return pr
}

// Failed is the number of entities that ended FAILED across all phases.
func (r *Report) Failed() int {
	n := 0
	for _, p := range r.Phases {
		for _, k := range p.Kinds {
			n += k.Failed
		}
	}
	return n
}

// Aborted lists the phases that stopped before processing every entity.
func (r *Report) Aborted() []string {
	var out []string
	for _, p := range r.Phases {
		if p.Aborted {
			out = append(out, p.Name)
		}
	}
	return out
}

// Totals sums the counters of every phase per outcome.
func (r *Report) Totals() reconcile.Tally {
	var t reconcile.Tally
	for _, p := range r.Phases {
		for _, k := range p.Kinds {
			t.Created += k.Created
			t.Skipped += k.Skipped
			t.Failed += k.Failed
			t.DryRun += k.DryRun
		}
	}
	return t
}

// NeedsFollowUp reports whether anything in the run requires manual attention.
func (r *Report) NeedsFollowUp() bool {
	return r.Failed() > 0 || len(r.Aborted()) > 0
}
