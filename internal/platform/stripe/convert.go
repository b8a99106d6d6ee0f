package stripe

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/varunnayak/stripe-migrate/internal/platform"
)

func fromProduct(p *stripe.Product) *platform.Product {
	out := &platform.Product{
		ID:          p.ID,
		Name:        p.Name,
		Active:      p.Active,
		Description: p.Description,
		Metadata:    platform.Metadata(p.Metadata),
	}
	if p.TaxCode != nil {
		out.TaxCode = p.TaxCode.ID
	}
	return out
}

func productParams(p *platform.Product) *stripe.ProductCreateParams {
	params := &stripe.ProductCreateParams{
		Name:   stripe.String(p.Name),
		Active: stripe.Bool(p.Active),
	}
	if p.ID != "" {
		params.ID = stripe.String(p.ID)
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	if p.TaxCode != "" {
		params.TaxCode = stripe.String(p.TaxCode)
	}
	params.Metadata = map[string]string(p.Metadata)
	return params
}

// amounts splits Stripe's integer and decimal representations. Whole amounts
// come back as integers; fractional ones only as decimals.
func amounts(whole int64, dec float64) (*int64, *decimal.Decimal) {
	d := decimal.NewFromFloat(dec)
	if dec != 0 && !d.Equal(decimal.NewFromInt(whole)) {
		return nil, &d
	}
	return lo.ToPtr(whole), nil
}

func fromPrice(p *stripe.Price) *platform.Price {
	out := &platform.Price{
		ID:            p.ID,
		Currency:      string(p.Currency),
		Active:        p.Active,
		Nickname:      p.Nickname,
		BillingScheme: string(p.BillingScheme),
		TiersMode:     string(p.TiersMode),
		TaxBehavior:   string(p.TaxBehavior),
		Metadata:      platform.Metadata(p.Metadata),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.BillingScheme != stripe.PriceBillingSchemeTiered && p.CustomUnitAmount == nil {
		out.UnitAmount, out.UnitAmountDecimal = amounts(p.UnitAmount, p.UnitAmountDecimal)
	}
	if p.Recurring != nil {
		out.Recurring = &platform.Recurring{
			Interval:      string(p.Recurring.Interval),
			IntervalCount: p.Recurring.IntervalCount,
			UsageType:     string(p.Recurring.UsageType),
			Meter:         p.Recurring.Meter,
		}
	}
	for _, t := range p.Tiers {
		tier := platform.Tier{UpTo: t.UpTo}
		tier.UnitAmount, tier.UnitAmountDecimal = amounts(t.UnitAmount, t.UnitAmountDecimal)
		if t.FlatAmount != 0 || t.FlatAmountDecimal != 0 {
			tier.FlatAmount, tier.FlatAmountDecimal = amounts(t.FlatAmount, t.FlatAmountDecimal)
		}
		out.Tiers = append(out.Tiers, tier)
	}
	if p.TransformQuantity != nil {
		out.TransformQuantity = &platform.TransformQuantity{
			DivideBy: p.TransformQuantity.DivideBy,
			Round:    string(p.TransformQuantity.Round),
		}
	}
	if cua := p.CustomUnitAmount; cua != nil {
		out.CustomUnitAmount = &platform.CustomUnitAmount{
			Minimum: nonZero(cua.Minimum),
			Maximum: nonZero(cua.Maximum),
			Preset:  nonZero(cua.Preset),
		}
	}
	return out
}

func priceParams(p *platform.Price) *stripe.PriceCreateParams {
	params := &stripe.PriceCreateParams{
		Currency:   stripe.String(p.Currency),
		Product:    stripe.String(p.ProductID),
		Active:     stripe.Bool(p.Active),
		UnitAmount: p.UnitAmount,
	}
	if p.UnitAmountDecimal != nil {
		params.UnitAmountDecimal = stripe.Float64(p.UnitAmountDecimal.InexactFloat64())
	}
	if p.Nickname != "" {
		params.Nickname = stripe.String(p.Nickname)
	}
	if p.BillingScheme != "" {
		params.BillingScheme = stripe.String(p.BillingScheme)
	}
	if p.TiersMode != "" {
		params.TiersMode = stripe.String(p.TiersMode)
	}
	if p.TaxBehavior != "" {
		params.TaxBehavior = stripe.String(p.TaxBehavior)
	}
	if p.IsRecurring() {
		params.Recurring = &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(p.Recurring.Interval),
		}
		if p.Recurring.IntervalCount > 0 {
			params.Recurring.IntervalCount = stripe.Int64(p.Recurring.IntervalCount)
		}
		if p.Recurring.UsageType != "" {
			params.Recurring.UsageType = stripe.String(p.Recurring.UsageType)
		}
		if p.Recurring.Meter != "" {
			params.Recurring.Meter = stripe.String(p.Recurring.Meter)
		}
	}
	for _, t := range p.Tiers {
		tier := &stripe.PriceCreateTierParams{
			UnitAmount: t.UnitAmount,
			FlatAmount: t.FlatAmount,
		}
		if t.UpTo == 0 {
			tier.UpToInf = stripe.Bool(true)
		} else {
			tier.UpTo = stripe.Int64(t.UpTo)
		}
		if t.UnitAmountDecimal != nil {
			tier.UnitAmountDecimal = stripe.Float64(t.UnitAmountDecimal.InexactFloat64())
		}
		if t.FlatAmountDecimal != nil {
			tier.FlatAmountDecimal = stripe.Float64(t.FlatAmountDecimal.InexactFloat64())
		}
		params.Tiers = append(params.Tiers, tier)
	}
	if tq := p.TransformQuantity; tq != nil {
		params.TransformQuantity = &stripe.PriceCreateTransformQuantityParams{
			DivideBy: stripe.Int64(tq.DivideBy),
			Round:    stripe.String(tq.Round),
		}
	}
	if cua := p.CustomUnitAmount; cua != nil {
		params.CustomUnitAmount = &stripe.PriceCreateCustomUnitAmountParams{
			Enabled: stripe.Bool(true),
			Minimum: cua.Minimum,
			Maximum: cua.Maximum,
			Preset:  cua.Preset,
		}
	}
	params.Metadata = map[string]string(p.Metadata)
	return params
}

func fromCoupon(c *stripe.Coupon) *platform.Coupon {
	out := &platform.Coupon{
		ID:               c.ID,
		Name:             c.Name,
		Duration:         string(c.Duration),
		DurationInMonths: nonZero(c.DurationInMonths),
		MaxRedemptions:   nonZero(c.MaxRedemptions),
		RedeemBy:         unixTime(c.RedeemBy),
		Valid:            c.Valid,
		Metadata:         platform.Metadata(c.Metadata),
	}
	if c.AmountOff > 0 {
		out.AmountOff = lo.ToPtr(c.AmountOff)
		out.Currency = string(c.Currency)
	}
	if c.PercentOff > 0 {
		out.PercentOff = lo.ToPtr(c.PercentOff)
	}
	if c.AppliesTo != nil {
		out.AppliesToProducts = c.AppliesTo.Products
	}
	return out
}

func couponParams(c *platform.Coupon) *stripe.CouponCreateParams {
	params := &stripe.CouponCreateParams{
		Duration:         stripe.String(c.Duration),
		AmountOff:        c.AmountOff,
		PercentOff:       c.PercentOff,
		DurationInMonths: c.DurationInMonths,
		MaxRedemptions:   c.MaxRedemptions,
	}
	if c.ID != "" {
		params.ID = stripe.String(c.ID)
	}
	if c.Name != "" {
		params.Name = stripe.String(c.Name)
	}
	if c.Currency != "" {
		params.Currency = stripe.String(c.Currency)
	}
	if c.RedeemBy != nil {
		params.RedeemBy = stripe.Int64(c.RedeemBy.Unix())
	}
	if len(c.AppliesToProducts) > 0 {
		params.AppliesTo = &stripe.CouponCreateAppliesToParams{
			Products: stripe.StringSlice(c.AppliesToProducts),
		}
	}
	params.Metadata = map[string]string(c.Metadata)
	return params
}

func fromPromotionCode(pc *stripe.PromotionCode) *platform.PromotionCode {
	out := &platform.PromotionCode{
		ID:             pc.ID,
		Code:           pc.Code,
		Active:         pc.Active,
		ExpiresAt:      unixTime(pc.ExpiresAt),
		MaxRedemptions: nonZero(pc.MaxRedemptions),
		Metadata:       platform.Metadata(pc.Metadata),
	}
	if pc.Promotion != nil && pc.Promotion.Coupon != nil {
		out.CouponID = pc.Promotion.Coupon.ID
	}
	if pc.Customer != nil {
		out.CustomerID = pc.Customer.ID
	}
	if r := pc.Restrictions; r != nil {
		out.Restrictions = &platform.PromotionRestrictions{
			FirstTimeTransaction:  r.FirstTimeTransaction,
			MinimumAmount:         nonZero(r.MinimumAmount),
			MinimumAmountCurrency: string(r.MinimumAmountCurrency),
		}
	}
	return out
}

func promotionCodeParams(pc *platform.PromotionCode) *stripe.PromotionCodeCreateParams {
	params := &stripe.PromotionCodeCreateParams{
		Code:   stripe.String(pc.Code),
		Active: stripe.Bool(pc.Active),
		Promotion: &stripe.PromotionCodeCreatePromotionParams{
			Type:   stripe.String("coupon"),
			Coupon: stripe.String(pc.CouponID),
		},
		MaxRedemptions: pc.MaxRedemptions,
	}
	if pc.CustomerID != "" {
		params.Customer = stripe.String(pc.CustomerID)
	}
	if pc.ExpiresAt != nil {
		params.ExpiresAt = stripe.Int64(pc.ExpiresAt.Unix())
	}
	if r := pc.Restrictions; r != nil {
		params.Restrictions = &stripe.PromotionCodeCreateRestrictionsParams{
			FirstTimeTransaction: stripe.Bool(r.FirstTimeTransaction),
			MinimumAmount:        r.MinimumAmount,
		}
		if r.MinimumAmountCurrency != "" {
			params.Restrictions.MinimumAmountCurrency = stripe.String(r.MinimumAmountCurrency)
		}
	}
	params.Metadata = map[string]string(pc.Metadata)
	return params
}

func fromSubscription(s *stripe.Subscription) *platform.Subscription {
	out := &platform.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		TrialEnd:          unixTime(s.TrialEnd),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          platform.Metadata(s.Metadata),
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = s.DefaultPaymentMethod.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			si := platform.SubscriptionItem{Quantity: item.Quantity}
			if item.Price != nil {
				si.PriceID = item.Price.ID
			}
			out.Items = append(out.Items, si)
			if out.CurrentPeriodEnd == nil {
				out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
			}
		}
	}
	return out
}

func subscriptionParams(s *platform.Subscription) *stripe.SubscriptionCreateParams {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(s.CustomerID),
	}
	for _, item := range s.Items {
		ip := &stripe.SubscriptionCreateItemParams{Price: stripe.String(item.PriceID)}
		if item.Quantity > 0 {
			ip.Quantity = stripe.Int64(item.Quantity)
		}
		params.Items = append(params.Items, ip)
	}
	if s.TrialEnd != nil {
		params.TrialEnd = stripe.Int64(s.TrialEnd.Unix())
	}
	if s.DefaultPaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(s.DefaultPaymentMethodID)
	}
	if s.OffSession {
		params.OffSession = stripe.Bool(true)
	}
	if s.CancelAtPeriodEnd {
		params.CancelAtPeriodEnd = stripe.Bool(true)
	}
	params.Metadata = map[string]string(s.Metadata)
	return params
}

func fromCustomer(c *stripe.Customer) *platform.Customer {
	out := &platform.Customer{ID: c.ID}
	if c.InvoiceSettings != nil && c.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = c.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func fromPaymentMethod(pm *stripe.PaymentMethod) *platform.PaymentMethod {
	out := &platform.PaymentMethod{ID: pm.ID, Type: string(pm.Type)}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	return out
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return lo.ToPtr(v)
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	return lo.ToPtr(time.Unix(sec, 0).UTC())
}
