// Package discount migrates coupons and their promotion codes.
package discount

import (
	"context"
	"fmt"
	"strings"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const reasonInvalidCoupon = "coupon_invalid"

type Phase struct {
	accounts platform.Accounts
	log      *zap.Logger
	recorder reconcile.Recorder
}

type Params struct {
	fx.In

	Accounts platform.Accounts
	Log      *zap.Logger
	Recorder reconcile.Recorder `optional:"true"`
}

func New(p Params) *Phase {
	return &Phase{
		accounts: p.Accounts,
		log:      p.Log.Named("discount.phase"),
		recorder: p.Recorder,
	}
}

func (p *Phase) Name() string { return config.StepCoupons }

func (p *Phase) Kinds() []platform.Kind {
	return []platform.Kind{platform.KindCoupon, platform.KindPromotionCode}
}

// PromotionCodeStrategy correlates promotion codes by their code string, which
// the platform keeps unique among active codes ignoring case. Codes created by
// hand in the target therefore block re-creation as well.
func PromotionCodeStrategy() correlation.Strategy[*platform.PromotionCode] {
	return correlation.NaturalKey("code", func(p *platform.PromotionCode) string { return p.Code }, strings.ToLower)
}

// Run migrates every valid source coupon, then the active promotion codes of
// each coupon present in the target. Invalid coupons and their codes are skipped.
func (p *Phase) Run(ctx context.Context, run reconcile.Run) (*reconcile.Summary, error) {
	summary := reconcile.NewSummary(p.Kinds()...)
	source, target := p.accounts.Source, p.accounts.Target

	couponIndex, err := correlation.Build(ctx, p.log, platform.KindCoupon,
		target.Coupons().List(ctx, platform.ListFilter{}),
		correlation.PortableID[*platform.Coupon]())
	if err != nil {
		return summary, err
	}
	codeIndex, err := correlation.Build(ctx, p.log, platform.KindPromotionCode,
		target.PromotionCodes().List(ctx, platform.ActiveOnly()),
		PromotionCodeStrategy())
	if err != nil {
		return summary, err
	}

	opts := run.Options(p.log, p.recorder)
	resolver := reconcile.NewResolver(couponIndex)
	coupons := reconcile.NewMigrator(p.couponSpec(), couponIndex, opts)
	codes := reconcile.NewMigrator(p.promotionCodeSpec(resolver), codeIndex, opts)

	for coupon, err := range source.Coupons().List(ctx, platform.ListFilter{}) {
		if err != nil {
			return summary, fmt.Errorf("list source coupons: %w", err)
		}
		out := coupons.Migrate(ctx, coupon)
		summary.Record(out)
		if !out.Exists {
			p.log.Info("coupon not present in target, not attempting its promotion codes",
				zap.String("coupon_id", coupon.ID),
				zap.String("status", string(out.Status)),
				zap.String("reason", out.Reason),
			)
			continue
		}

		filter := platform.ActiveOnly()
		filter.Parent = coupon.ID
		for code, err := range source.PromotionCodes().List(ctx, filter) {
			if err != nil {
				return summary, fmt.Errorf("list source promotion codes of %s: %w", coupon.ID, err)
			}
			summary.Record(codes.Migrate(ctx, code))
		}
	}
	return summary, nil
}

func (p *Phase) couponSpec() reconcile.Spec[*platform.Coupon] {
	target := p.accounts.Target
	return reconcile.Spec[*platform.Coupon]{
		Kind:     platform.KindCoupon,
		Strategy: correlation.PortableID[*platform.Coupon](),
		Eligible: func(c *platform.Coupon) (bool, string) {
			return c.Valid, reasonInvalidCoupon
		},
		Build:   BuildCoupon,
		Create:  target.Coupons().Create,
		Refetch: target.Coupons().Retrieve,
	}
}

func (p *Phase) promotionCodeSpec(resolver *reconcile.Resolver) reconcile.Spec[*platform.PromotionCode] {
	return reconcile.Spec[*platform.PromotionCode]{
		Kind:     platform.KindPromotionCode,
		Strategy: PromotionCodeStrategy(),
		Build: func(src *platform.PromotionCode) (*platform.PromotionCode, error) {
			couponID, err := resolver.Resolve(platform.KindCoupon, src.CouponID)
			if err != nil {
				return nil, err
			}
			if couponID == "" {
				couponID = src.CouponID
			}
			return BuildPromotionCode(src, couponID), nil
		},
		Create: p.accounts.Target.PromotionCodes().Create,
	}
}
