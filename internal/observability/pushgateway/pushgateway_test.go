package pushgateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.uber.org/zap"
)

func sampleReport() *orchestrator.Report {
	started := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return &orchestrator.Report{
		RunID:      "1852381637652189184",
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Second),
		Phases: []orchestrator.PhaseReport{
			{Name: "products", Kinds: []orchestrator.KindReport{
				{Kind: platform.KindProduct, Tally: reconcile.Tally{Created: 2, Skipped: 1}},
			}},
			{Name: "subscriptions", Aborted: true, Reason: "empty_price_map"},
		},
	}
}

func TestRegistryHoldsRunSummary(t *testing.T) {
	expected := `
# HELP stripe_migrate_last_run_phase_aborted 1 when the phase aborted in the last run.
# TYPE stripe_migrate_last_run_phase_aborted gauge
stripe_migrate_last_run_phase_aborted{phase="products"} 0
stripe_migrate_last_run_phase_aborted{phase="subscriptions"} 1
# HELP stripe_migrate_last_run_outcomes Outcomes of the last run per phase, kind and status.
# TYPE stripe_migrate_last_run_outcomes gauge
stripe_migrate_last_run_outcomes{kind="product",phase="products",status="created"} 2
stripe_migrate_last_run_outcomes{kind="product",phase="products",status="dry_run"} 0
stripe_migrate_last_run_outcomes{kind="product",phase="products",status="failed"} 0
stripe_migrate_last_run_outcomes{kind="product",phase="products",status="skipped"} 1
`
	err := testutil.GatherAndCompare(Registry(sampleReport()), strings.NewReader(expected),
		"stripe_migrate_last_run_phase_aborted", "stripe_migrate_last_run_outcomes")
	require.NoError(t, err)
}

func TestObserveRunPushesToGateway(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPusher(srv.URL, "stripe_migrate", map[string]string{"environment": "test", "empty": " "}, zap.NewNop())
	require.NotNil(t, p)
	p.ObserveRun(context.Background(), sampleReport())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/stripe_migrate"), path)
	assert.Contains(t, path, "/environment/test")
	assert.Contains(t, path, "/dry_run/false")
	assert.NotContains(t, path, "empty")
	assert.Contains(t, string(body), "stripe_migrate_last_run_outcomes")
}

func TestObserveRunSurvivesGatewayErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPusher(srv.URL, "stripe_migrate", nil, zap.NewNop())
	assert.Error(t, p.Push(context.Background(), sampleReport()))
	assert.NotPanics(t, func() { p.ObserveRun(context.Background(), sampleReport()) })
}

func TestNewPusherWithoutEndpointIsDisabled(t *testing.T) {
	p := NewPusher("  ", "stripe_migrate", nil, nil)
	assert.Nil(t, p)
	assert.NotPanics(t, func() { p.ObserveRun(context.Background(), sampleReport()) })
}
