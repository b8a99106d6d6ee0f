// Package pushgateway publishes a finished run's summary to a Prometheus
// Pushgateway. A one-shot CLI has no scrape window, so the last run's numbers
// are pushed instead.
package pushgateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"go.uber.org/zap"
)

const defaultPushTimeout = 5 * time.Second

// Pusher sends run summaries to the Pushgateway. Push failures are logged and
// never fail the run.
type Pusher struct {
	endpoint string
	job      string
	grouping map[string]string
	log      *zap.Logger
}

// NewPusher returns nil when no endpoint is configured.
func NewPusher(endpoint, job string, grouping map[string]string, log *zap.Logger) *Pusher {
	if log == nil {
		log = zap.NewNop()
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil
	}
	return &Pusher{
		endpoint: endpoint,
		job:      strings.TrimSpace(job),
		grouping: grouping,
		log:      log.Named("pushgateway"),
	}
}

// ObserveRun pushes the run summary.
func (p *Pusher) ObserveRun(ctx context.Context, r *orchestrator.Report) {
	if p == nil || r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()
	if err := p.Push(ctx, r); err != nil {
		p.log.Warn("pushgateway push failed", zap.String("endpoint", p.endpoint), zap.Error(err))
		return
	}
	p.log.Debug("run summary pushed", zap.String("run_id", r.RunID))
}

// Push sends the gauges built from r.
func (p *Pusher) Push(ctx context.Context, r *orchestrator.Report) error {
	if p.job == "" {
		return errors.New("pushgateway job is required")
	}

	pusher := push.New(p.endpoint, p.job).
		Gatherer(Registry(r)).
		Grouping("dry_run", strconv.FormatBool(r.DryRun))
	for key, value := range p.grouping {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pusher = pusher.Grouping(key, value)
	}
	return pusher.PushContext(ctx)
}

// Registry holds the run summary as gauges.
func Registry(r *orchestrator.Report) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	outcomes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stripe_migrate_last_run_outcomes",
		Help: "Outcomes of the last run per phase, kind and status.",
	}, []string{"phase", "kind", "status"})
	aborted := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stripe_migrate_last_run_phase_aborted",
		Help: "1 when the phase aborted in the last run.",
	}, []string{"phase"})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stripe_migrate_last_run_finished_timestamp_seconds",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stripe_migrate_last_run_duration_seconds",
	})
	registry.MustRegister(outcomes, aborted, finished, duration)

	for _, phase := range r.Phases {
		for _, k := range phase.Kinds {
			kind := string(k.Kind)
			outcomes.WithLabelValues(phase.Name, kind, "created").Set(float64(k.Created))
			outcomes.WithLabelValues(phase.Name, kind, "skipped").Set(float64(k.Skipped))
			outcomes.WithLabelValues(phase.Name, kind, "failed").Set(float64(k.Failed))
			outcomes.WithLabelValues(phase.Name, kind, "dry_run").Set(float64(k.DryRun))
		}
		value := 0.0
		if phase.Aborted {
			value = 1
		}
		aborted.WithLabelValues(phase.Name).Set(value)
	}
	finished.Set(float64(r.FinishedAt.Unix()))
	duration.Set(r.FinishedAt.Sub(r.StartedAt).Seconds())
	return registry
}
