package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
)

// ErrMeterRequired is returned for a metered price that references no meter.
// The platform rejects such prices on create.
var ErrMeterRequired = errors.New("meter_required")

// BuildProduct copies a source product. The identifier is kept: products are portable.
func BuildProduct(src *platform.Product) (*platform.Product, error) {
	return &platform.Product{
		ID:          src.ID,
		Name:        src.Name,
		Active:      src.Active,
		Description: src.Description,
		TaxCode:     src.TaxCode,
		Metadata:    src.Metadata.Clone(),
	}, nil
}

// BuildPrice copies the billing terms of src onto productID and tags the result
// with the source price identifier. A metered price keeps its meter identifier,
// which must name a meter that already exists in the target account.
func BuildPrice(src *platform.Price, productID string) (*platform.Price, error) {
	if src.IsRecurring() && src.Recurring.UsageType == platform.UsageTypeMetered && src.Recurring.Meter == "" {
		return nil, fmt.Errorf("%w: %w: price %s", reconcile.ErrPrecondition, ErrMeterRequired, src.ID)
	}
	out := &platform.Price{
		ProductID:         productID,
		Currency:          src.Currency,
		Active:            src.Active,
		Nickname:          src.Nickname,
		UnitAmount:        clonePtr(src.UnitAmount),
		UnitAmountDecimal: src.UnitAmountDecimal,
		BillingScheme:     src.BillingScheme,
		TiersMode:         src.TiersMode,
		TaxBehavior:       src.TaxBehavior,
		Metadata:          src.Metadata.With(correlation.TagPrice, src.ID),
	}
	if out.UnitAmount != nil {
		out.UnitAmountDecimal = nil
	}
	if src.IsRecurring() {
		r := *src.Recurring
		out.Recurring = &r
	}
	if len(src.Tiers) > 0 {
		out.Tiers = slices.Clone(src.Tiers)
		// The amount and the tier schedule are mutually exclusive on create.
		out.UnitAmount = nil
		out.UnitAmountDecimal = nil
	}
	if src.TransformQuantity != nil {
		tq := *src.TransformQuantity
		out.TransformQuantity = &tq
	}
	if src.CustomUnitAmount != nil {
		cua := *src.CustomUnitAmount
		out.CustomUnitAmount = &cua
		out.UnitAmount = nil
		out.UnitAmountDecimal = nil
	}
	return out, nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return lo.ToPtr(*p)
}
