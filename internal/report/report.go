// Package report renders the run-end summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown_format")

// Write renders r to w as text, json or yaml.
func Write(w io.Writer, format string, r *orchestrator.Report) error {
	switch format {
	case config.OutputText, "":
		return writeText(w, r)
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeText(w io.Writer, r *orchestrator.Report) error {
	mode := "live"
	if r.DryRun {
		mode = "dry run"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", r.RunID, mode)
	fmt.Fprintf(&b, "started %s, finished %s (%s)\n\n",
		r.StartedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.UTC().Format(time.RFC3339),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
	)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tKIND\tCREATED\tSKIPPED\tFAILED\tDRY_RUN\tSTATUS")
	for _, p := range r.Phases {
		status := "ok"
		if p.Aborted {
			status = "aborted"
		}
		for _, k := range p.Kinds {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", p.Name, k.Kind, k.Created, k.Skipped, k.Failed, k.DryRun, status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := r.Totals()
	fmt.Fprintf(&b, "\ntotals: created=%d skipped=%d failed=%d dry_run=%d\n", t.Created, t.Skipped, t.Failed, t.DryRun)
	for _, p := range r.Phases {
		if p.Aborted {
			fmt.Fprintf(&b, "aborted %s: %s\n", p.Name, p.Reason)
		}
	}
	if r.NeedsFollowUp() {
		fmt.Fprintf(&b, "manual follow-up needed: %d failed, %d phase(s) aborted. re-running is safe.\n", r.Failed(), len(r.Aborted()))
	} else {
		b.WriteString("nothing to follow up. re-running is safe.\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
