package discount

import (
	"slices"

	"github.com/samber/lo"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
)

// BuildCoupon copies a source coupon, keeping its identifier.
func BuildCoupon(src *platform.Coupon) (*platform.Coupon, error) {
	out := &platform.Coupon{
		ID:                src.ID,
		Name:              src.Name,
		Duration:          src.Duration,
		DurationInMonths:  src.DurationInMonths,
		MaxRedemptions:    src.MaxRedemptions,
		RedeemBy:          src.RedeemBy,
		AppliesToProducts: slices.Clone(src.AppliesToProducts),
		Valid:             true,
		Metadata:          src.Metadata.Clone(),
	}
	// amount_off needs its currency; percent_off must not carry one.
	if src.AmountOff != nil {
		out.AmountOff = lo.ToPtr(*src.AmountOff)
		out.Currency = src.Currency
	} else if src.PercentOff != nil {
		out.PercentOff = lo.ToPtr(*src.PercentOff)
	}
	if src.Duration != "repeating" {
		out.DurationInMonths = nil
	}
	return out, nil
}

// BuildPromotionCode copies a source code onto couponID and tags it with the
// source promotion code identifier.
func BuildPromotionCode(src *platform.PromotionCode, couponID string) *platform.PromotionCode {
	out := &platform.PromotionCode{
		Code:           src.Code,
		CouponID:       couponID,
		Active:         true,
		CustomerID:     src.CustomerID,
		ExpiresAt:      src.ExpiresAt,
		MaxRedemptions: src.MaxRedemptions,
		Metadata:       src.Metadata.With(correlation.TagPromotionCode, src.ID),
	}
	if r := src.Restrictions; r != nil && (r.FirstTimeTransaction || r.MinimumAmount != nil) {
		restrictions := *r
		if restrictions.MinimumAmount == nil {
			restrictions.MinimumAmountCurrency = ""
		}
		out.Restrictions = &restrictions
	}
	return out
}
