package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunnayak/stripe-migrate/internal/clock"
	"github.com/varunnayak/stripe-migrate/internal/orchestrator"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"gopkg.in/yaml.v3"
)

func liveReport() *orchestrator.Report {
	clk := clock.NewFakeClock(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC))
	started := clk.Now()
	clk.Advance(42 * time.Second)
	return &orchestrator.Report{
		RunID:      "1852381637652189184",
		StartedAt:  started,
		FinishedAt: clk.Now(),
		Phases: []orchestrator.PhaseReport{
			{Name: "products", Kinds: []orchestrator.KindReport{
				{Kind: platform.KindProduct, Tally: reconcile.Tally{Created: 1, Skipped: 1}},
				{Kind: platform.KindPrice, Tally: reconcile.Tally{Created: 2}},
			}},
			{Name: "coupons", Kinds: []orchestrator.KindReport{
				{Kind: platform.KindCoupon, Tally: reconcile.Tally{Created: 1, Skipped: 1}},
				{Kind: platform.KindPromotionCode, Tally: reconcile.Tally{Failed: 1}},
			}},
			{
				Name:    "subscriptions",
				Aborted: true,
				Reason:  "empty_price_map: no target price carries source_price_id, run the products step first",
				Kinds:   []orchestrator.KindReport{{Kind: platform.KindSubscription}},
			},
		},
	}
}

func TestWriteTextGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "text", liveReport()))
	g.Assert(t, "live_with_failures", buf.Bytes())

	clk := clock.NewFakeClock(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC))
	dry := &orchestrator.Report{
		RunID:     "1852381637652189185",
		DryRun:    true,
		StartedAt: clk.Now(),
		Phases: []orchestrator.PhaseReport{
			{Name: "products", Kinds: []orchestrator.KindReport{
				{Kind: platform.KindProduct, Tally: reconcile.Tally{Skipped: 1, DryRun: 1}},
				{Kind: platform.KindPrice, Tally: reconcile.Tally{DryRun: 2}},
			}},
		},
	}
	clk.Advance(3 * time.Second)
	dry.FinishedAt = clk.Now()

	buf.Reset()
	require.NoError(t, Write(&buf, "", dry))
	g.Assert(t, "dry_run_clean", buf.Bytes())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "json", liveReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1852381637652189184", decoded["run_id"])

	phases := decoded["phases"].([]any)
	require.Len(t, phases, 3)
	kinds := phases[1].(map[string]any)["kinds"].([]any)
	promo := kinds[1].(map[string]any)
	assert.Equal(t, "promotion_code", promo["kind"])
	assert.Equal(t, float64(1), promo["failed"])
	assert.Equal(t, true, phases[2].(map[string]any)["aborted"])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "yaml", liveReport()))

	var decoded struct {
		RunID  string `yaml:"run_id"`
		Phases []struct {
			Name  string `yaml:"name"`
			Kinds []struct {
				Kind    string `yaml:"kind"`
				Created int    `yaml:"created"`
			} `yaml:"kinds"`
		} `yaml:"phases"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1852381637652189184", decoded.RunID)
	require.Len(t, decoded.Phases, 3)
	assert.Equal(t, "price", decoded.Phases[0].Kinds[1].Kind)
	assert.Equal(t, 2, decoded.Phases[0].Kinds[1].Created)
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", liveReport())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
