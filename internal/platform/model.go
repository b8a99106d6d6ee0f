package platform

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names one entity collection on the billing platform.
type Kind string

const (
	KindProduct       Kind = "product"
	KindPrice         Kind = "price"
	KindCoupon        Kind = "coupon"
	KindPromotionCode Kind = "promotion_code"
	KindSubscription  Kind = "subscription"
	KindCustomer      Kind = "customer"
	KindPaymentMethod Kind = "payment_method"
)

// Portable reports whether identifiers of this kind are reused verbatim in the target account.
func (k Kind) Portable() bool {
	return k == KindProduct || k == KindCoupon
}

// Metadata is the free-form string map attached to platform entities.
type Metadata map[string]string

// Clone returns a copy that is safe to mutate. A nil receiver yields an empty map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// With returns a copy of m with key set to value.
func (m Metadata) With(key, value string) Metadata {
	out := m.Clone()
	out[key] = value
	return out
}

// Object is implemented by every entity that can be listed and correlated.
type Object interface {
	ObjectID() string
	ObjectMetadata() Metadata
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Active      bool     `json:"active"`
	Description string   `json:"description,omitempty"`
	TaxCode     string   `json:"tax_code,omitempty"`
	Metadata    Metadata `json:"metadata,omitempty"`
}

func (p *Product) ObjectID() string         { return p.ID }
func (p *Product) ObjectMetadata() Metadata { return p.Metadata }

// UsageTypeMetered marks a recurring price billed from reported usage.
const UsageTypeMetered = "metered"

// Recurring is the billing cadence of a price. Meter is the billing meter a
// metered price reads usage from; meters belong to one account.
type Recurring struct {
	Interval      string `json:"interval"`
	IntervalCount int64  `json:"interval_count,omitempty"`
	UsageType     string `json:"usage_type,omitempty"`
	Meter         string `json:"meter,omitempty"`
}

// Tier is one step of a tiered price. UpTo zero means the open-ended last tier.
type Tier struct {
	UpTo              int64            `json:"up_to,omitempty"`
	FlatAmount        *int64           `json:"flat_amount,omitempty"`
	FlatAmountDecimal *decimal.Decimal `json:"flat_amount_decimal,omitempty"`
	UnitAmount        *int64           `json:"unit_amount,omitempty"`
	UnitAmountDecimal *decimal.Decimal `json:"unit_amount_decimal,omitempty"`
}

type TransformQuantity struct {
	DivideBy int64  `json:"divide_by"`
	Round    string `json:"round"`
}

type CustomUnitAmount struct {
	Minimum *int64 `json:"minimum,omitempty"`
	Maximum *int64 `json:"maximum,omitempty"`
	Preset  *int64 `json:"preset,omitempty"`
}

type Price struct {
	ID                string             `json:"id"`
	ProductID         string             `json:"product"`
	Currency          string             `json:"currency"`
	Active            bool               `json:"active"`
	Nickname          string             `json:"nickname,omitempty"`
	UnitAmount        *int64             `json:"unit_amount,omitempty"`
	UnitAmountDecimal *decimal.Decimal   `json:"unit_amount_decimal,omitempty"`
	BillingScheme     string             `json:"billing_scheme,omitempty"`
	Recurring         *Recurring         `json:"recurring,omitempty"`
	Tiers             []Tier             `json:"tiers,omitempty"`
	TiersMode         string             `json:"tiers_mode,omitempty"`
	TaxBehavior       string             `json:"tax_behavior,omitempty"`
	TransformQuantity *TransformQuantity `json:"transform_quantity,omitempty"`
	CustomUnitAmount  *CustomUnitAmount  `json:"custom_unit_amount,omitempty"`
	Metadata          Metadata           `json:"metadata,omitempty"`
}

func (p *Price) ObjectID() string         { return p.ID }
func (p *Price) ObjectMetadata() Metadata { return p.Metadata }

// IsRecurring reports whether the price bills on an interval rather than once.
func (p *Price) IsRecurring() bool {
	return p.Recurring != nil && p.Recurring.Interval != ""
}

type Coupon struct {
	ID                string     `json:"id"`
	Name              string     `json:"name,omitempty"`
	AmountOff         *int64     `json:"amount_off,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	PercentOff        *float64   `json:"percent_off,omitempty"`
	Duration          string     `json:"duration"`
	DurationInMonths  *int64     `json:"duration_in_months,omitempty"`
	MaxRedemptions    *int64     `json:"max_redemptions,omitempty"`
	RedeemBy          *time.Time `json:"redeem_by,omitempty"`
	AppliesToProducts []string   `json:"applies_to_products,omitempty"`
	Valid             bool       `json:"valid"`
	Metadata          Metadata   `json:"metadata,omitempty"`
}

func (c *Coupon) ObjectID() string         { return c.ID }
func (c *Coupon) ObjectMetadata() Metadata { return c.Metadata }

type PromotionRestrictions struct {
	FirstTimeTransaction  bool   `json:"first_time_transaction,omitempty"`
	MinimumAmount         *int64 `json:"minimum_amount,omitempty"`
	MinimumAmountCurrency string `json:"minimum_amount_currency,omitempty"`
}

type PromotionCode struct {
	ID             string                 `json:"id"`
	Code           string                 `json:"code"`
	CouponID       string                 `json:"coupon"`
	Active         bool                   `json:"active"`
	CustomerID     string                 `json:"customer,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	MaxRedemptions *int64                 `json:"max_redemptions,omitempty"`
	Restrictions   *PromotionRestrictions `json:"restrictions,omitempty"`
	Metadata       Metadata               `json:"metadata,omitempty"`
}

func (p *PromotionCode) ObjectID() string         { return p.ID }
func (p *PromotionCode) ObjectMetadata() Metadata { return p.Metadata }

type SubscriptionItem struct {
	PriceID  string `json:"price"`
	Quantity int64  `json:"quantity,omitempty"`
}

type Subscription struct {
	ID                     string             `json:"id"`
	CustomerID             string             `json:"customer"`
	Status                 string             `json:"status"`
	Items                  []SubscriptionItem `json:"items"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	TrialEnd               *time.Time         `json:"trial_end,omitempty"`
	DefaultPaymentMethodID string             `json:"default_payment_method,omitempty"`
	OffSession             bool               `json:"off_session,omitempty"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end,omitempty"`
	Metadata               Metadata           `json:"metadata,omitempty"`
}

func (s *Subscription) ObjectID() string         { return s.ID }
func (s *Subscription) ObjectMetadata() Metadata { return s.Metadata }

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusUnpaid   = "unpaid"
	SubscriptionStatusPaused   = "paused"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "incomplete_expired"
	SubscriptionStatusAll      = "all"
)

type Customer struct {
	ID                     string `json:"id"`
	DefaultPaymentMethodID string `json:"default_payment_method,omitempty"`
}

type PaymentMethod struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer,omitempty"`
	Type       string `json:"type"`
}

const PaymentMethodTypeCard = "card"
