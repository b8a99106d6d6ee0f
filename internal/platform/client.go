package platform

import (
	"context"
	"iter"

	"github.com/samber/lo"
)

// ListFilter narrows a listing server-side. Zero values mean "no filter".
type ListFilter struct {
	Active *bool
	// Parent is the owning entity: the product for prices, the coupon for promotion codes.
	Parent   string
	Code     string
	Status   string
	Customer string
	Type     string
}

// ActiveOnly is the filter used for collections where only active entities count.
func ActiveOnly() ListFilter {
	return ListFilter{Active: lo.ToPtr(true)}
}

type CreateOptions struct {
	IdempotencyKey string
}

// Collection is paginated access to one entity type in one account.
// Pagination is transparent: List yields every matching entity across pages.
type Collection[T Object] interface {
	List(ctx context.Context, filter ListFilter) iter.Seq2[T, error]
	Retrieve(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T, opts CreateOptions) (T, error)
}

type SubscriptionCollection interface {
	Collection[*Subscription]
	SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*Subscription, error)
}

type CustomerCollection interface {
	Retrieve(ctx context.Context, id string) (*Customer, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*Customer, error)
}

type PaymentMethodCollection interface {
	List(ctx context.Context, filter ListFilter) iter.Seq2[*PaymentMethod, error]
	Attach(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error)
}

// Client is the remote billing platform, bound to a single account.
type Client interface {
	Products() Collection[*Product]
	Prices() Collection[*Price]
	Coupons() Collection[*Coupon]
	PromotionCodes() Collection[*PromotionCode]
	Subscriptions() SubscriptionCollection
	Customers() CustomerCollection
	PaymentMethods() PaymentMethodCollection
}

// Accounts pairs the account being migrated from with the account being migrated into.
type Accounts struct {
	Source Client
	Target Client
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
