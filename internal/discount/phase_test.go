package discount

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/platform/memory"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.uber.org/zap"
)

func newPhase(src, dst *memory.Account) *Phase {
	return New(Params{Accounts: platform.Accounts{Source: src, Target: dst}, Log: zap.NewNop()})
}

func TestRunSkipsInvalidCouponAndItsCodes(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(
		&platform.Coupon{ID: "C1", Valid: false, PercentOff: lo.ToPtr(10.0), Duration: "once"},
		&platform.PromotionCode{ID: "promo_1", Code: "TENOFF", CouponID: "C1", Active: true},
	)

	summary, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Skipped: 1}, summary.Tally(platform.KindCoupon))
	assert.Zero(t, summary.Tally(platform.KindPromotionCode).Total())
	assert.Zero(t, dst.Calls().Creates[platform.KindCoupon])
	assert.Zero(t, src.Calls().Lists[platform.KindPromotionCode])
}

func TestRunCreatesThenSkips(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(
		&platform.Coupon{ID: "C1", Valid: true, AmountOff: lo.ToPtr(int64(500)), Currency: "usd", Duration: "repeating", DurationInMonths: lo.ToPtr(int64(3))},
		&platform.PromotionCode{ID: "promo_1", Code: "SPRING", CouponID: "C1", Active: true, MaxRedemptions: lo.ToPtr(int64(100))},
		&platform.PromotionCode{ID: "promo_2", Code: "OLD", CouponID: "C1", Active: false},
	)
	phase := newPhase(src, dst)

	summary, err := phase.Run(context.Background(), reconcile.Run{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Created: 1}, summary.Tally(platform.KindCoupon))
	assert.Equal(t, reconcile.Tally{Created: 1}, summary.Tally(platform.KindPromotionCode))

	codes := dst.AllPromotionCodes()
	require.Len(t, codes, 1)
	assert.Equal(t, "C1", codes[0].CouponID)
	assert.Equal(t, "promo_1", codes[0].Metadata[correlation.TagPromotionCode])
	assert.Equal(t, int64(3), *dst.AllCoupons()[0].DurationInMonths)

	summary, err = phase.Run(context.Background(), reconcile.Run{ID: "r2"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Skipped: 1}, summary.Tally(platform.KindCoupon))
	assert.Equal(t, reconcile.Tally{Skipped: 1}, summary.Tally(platform.KindPromotionCode))
	assert.Len(t, dst.AllPromotionCodes(), 1)
}

func TestRunManualCodeInTargetBlocksCreation(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(
		&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(25.0), Duration: "forever"},
		&platform.PromotionCode{ID: "promo_1", Code: "VIP", CouponID: "C1", Active: true},
	)
	dst.Seed(
		&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(25.0), Duration: "forever"},
		&platform.PromotionCode{ID: "promo_manual", Code: "VIP", CouponID: "C1", Active: true},
	)

	summary, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Skipped: 1}, summary.Tally(platform.KindPromotionCode))
	assert.Zero(t, dst.Calls().Mutations())
}

func TestRunCodeDifferingOnlyInCaseBlocksCreation(t *testing.T) {
	seed := func() (*memory.Account, *memory.Account) {
		src, dst := memory.NewAccount("s"), memory.NewAccount("t")
		src.Seed(
			&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(25.0), Duration: "forever"},
			&platform.PromotionCode{ID: "promo_1", Code: "vip", CouponID: "C1", Active: true},
		)
		dst.Seed(
			&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(25.0), Duration: "forever"},
			&platform.PromotionCode{ID: "promo_manual", Code: "VIP", CouponID: "C1", Active: true},
		)
		return src, dst
	}

	src, dst := seed()
	dry, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "dry", DryRun: true})
	require.NoError(t, err)

	src, dst = seed()
	live, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "live"})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Tally{Skipped: 1}, dry.Tally(platform.KindPromotionCode))
	assert.Equal(t, reconcile.Tally{Skipped: 1}, live.Tally(platform.KindPromotionCode))
	assert.Zero(t, dst.Calls().Creates[platform.KindPromotionCode])
	assert.Len(t, dst.AllPromotionCodes(), 1)
}

func TestRunPromotionCodeFailureKeepsCoupon(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(
		&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(5.0), Duration: "once"},
		&platform.PromotionCode{ID: "promo_1", Code: "A", CouponID: "C1", Active: true},
		&platform.PromotionCode{ID: "promo_2", Code: "B", CouponID: "C1", Active: true},
	)
	dst.FailCreate(platform.KindPromotionCode, func(o platform.Object) error {
		if o.(*platform.PromotionCode).Code == "A" {
			return fmt.Errorf("rate limited")
		}
		return nil
	})

	summary, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Created: 1}, summary.Tally(platform.KindCoupon))
	assert.Equal(t, reconcile.Tally{Created: 1, Failed: 1}, summary.Tally(platform.KindPromotionCode))
	assert.Len(t, dst.AllCoupons(), 1)
}

func TestRunCouponConflictIsSkipped(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(5.0), Duration: "once"})
	dst.FailCreate(platform.KindCoupon, func(platform.Object) error {
		return platform.NewAPIError(platform.ErrConflict, platform.KindCoupon, "create", fmt.Errorf("resource_already_exists"))
	})

	summary, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, reconcile.Tally{Skipped: 1}, summary.Tally(platform.KindCoupon))
	assert.Zero(t, summary.Failed())
}

func TestRunDryRunDeduplicatesCodesWithinRun(t *testing.T) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	src.Seed(
		&platform.Coupon{ID: "C1", Valid: true, PercentOff: lo.ToPtr(5.0), Duration: "once"},
		&platform.Coupon{ID: "C2", Valid: true, PercentOff: lo.ToPtr(7.0), Duration: "once"},
		&platform.PromotionCode{ID: "promo_1", Code: "SAME", CouponID: "C1", Active: true},
		&platform.PromotionCode{ID: "promo_2", Code: "SAME", CouponID: "C2", Active: true},
	)

	dry, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "dry", DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, dst.Calls().Mutations())

	live, err := newPhase(src, dst).Run(context.Background(), reconcile.Run{ID: "live"})
	require.NoError(t, err)

	assert.Equal(t, reconcile.Tally{DryRun: 1, Skipped: 1}, dry.Tally(platform.KindPromotionCode))
	assert.Equal(t, reconcile.Tally{Created: 1, Skipped: 1}, live.Tally(platform.KindPromotionCode))
}

func TestBuildCoupon(t *testing.T) {
	redeemBy := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := BuildCoupon(&platform.Coupon{
		ID: "C1", Valid: true, PercentOff: lo.ToPtr(15.0), Currency: "usd",
		Duration: "forever", DurationInMonths: lo.ToPtr(int64(6)),
		RedeemBy: &redeemBy, AppliesToProducts: []string{"P1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "C1", got.ID)
	assert.Empty(t, got.Currency)
	assert.Nil(t, got.AmountOff)
	assert.Nil(t, got.DurationInMonths)
	assert.Equal(t, []string{"P1"}, got.AppliesToProducts)
	assert.Equal(t, redeemBy, *got.RedeemBy)
}

func TestBuildPromotionCode(t *testing.T) {
	got := BuildPromotionCode(&platform.PromotionCode{
		ID: "promo_1", Code: "WELCOME", CouponID: "C1", CustomerID: "cus_1",
		Restrictions: &platform.PromotionRestrictions{FirstTimeTransaction: true, MinimumAmountCurrency: "usd"},
	}, "C1")
	assert.Equal(t, "cus_1", got.CustomerID)
	assert.True(t, got.Active)
	require.NotNil(t, got.Restrictions)
	assert.Empty(t, got.Restrictions.MinimumAmountCurrency)

	got = BuildPromotionCode(&platform.PromotionCode{ID: "promo_2", Code: "X", Restrictions: &platform.PromotionRestrictions{}}, "C1")
	assert.Nil(t, got.Restrictions)
}
