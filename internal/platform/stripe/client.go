// Package stripe implements platform.Client on top of stripe-go.
package stripe

import (
	"context"
	"iter"
	"net/http"

	"github.com/stripe/stripe-go/v83"
	"github.com/varunnayak/stripe-migrate/internal/observability/logger"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"go.uber.org/zap"
)

// Config binds a client to one account.
type Config struct {
	APIKey            string
	PageSize          int64
	MaxNetworkRetries int64
	// BaseURL overrides the API host, e.g. for stripe-mock.
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to a single Stripe account.
type Client struct {
	sc       *stripe.Client
	pageSize int64
	log      *zap.Logger
}

var _ platform.Client = (*Client)(nil)

func NewClient(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     logger.NewLeveled(log),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	return &Client{
		sc:       stripe.NewClient(cfg.APIKey, stripe.WithBackends(stripe.NewBackendsWithConfig(backendCfg))),
		pageSize: pageSize,
		log:      log,
	}
}

// collection adapts one stripe-go service to platform.Collection.
type collection[T platform.Object, S any] struct {
	kind     platform.Kind
	list     func(ctx context.Context, filter platform.ListFilter) iter.Seq2[S, error]
	retrieve func(ctx context.Context, id string) (S, error)
	create   func(ctx context.Context, item T, key string) (S, error)
	from     func(S) T
}

func (c *collection[T, S]) List(ctx context.Context, filter platform.ListFilter) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for item, err := range c.list(ctx, filter) {
			if err != nil {
				var zero T
				yield(zero, classify(err, c.kind, "list"))
				return
			}
			if !yield(c.from(item), nil) {
				return
			}
		}
	}
}

func (c *collection[T, S]) Retrieve(ctx context.Context, id string) (T, error) {
	item, err := c.retrieve(ctx, id)
	if err != nil {
		var zero T
		return zero, classify(err, c.kind, "retrieve")
	}
	return c.from(item), nil
}

func (c *collection[T, S]) Create(ctx context.Context, item T, opts platform.CreateOptions) (T, error) {
	created, err := c.create(ctx, item, opts.IdempotencyKey)
	if err != nil {
		var zero T
		return zero, classify(err, c.kind, "create")
	}
	return c.from(created), nil
}

func (c *Client) Products() platform.Collection[*platform.Product] {
	return &collection[*platform.Product, *stripe.Product]{
		kind: platform.KindProduct,
		list: func(ctx context.Context, f platform.ListFilter) iter.Seq2[*stripe.Product, error] {
			params := &stripe.ProductListParams{Active: f.Active}
			params.Limit = stripe.Int64(c.pageSize)
			return iter.Seq2[*stripe.Product, error](c.sc.V1Products.List(ctx, params))
		},
		retrieve: func(ctx context.Context, id string) (*stripe.Product, error) {
			return c.sc.V1Products.Retrieve(ctx, id, &stripe.ProductRetrieveParams{})
		},
		create: func(ctx context.Context, p *platform.Product, key string) (*stripe.Product, error) {
			params := productParams(p)
			setIdempotencyKey(&params.Params, key)
			return c.sc.V1Products.Create(ctx, params)
		},
		from: fromProduct,
	}
}

func (c *Client) Prices() platform.Collection[*platform.Price] {
	return &collection[*platform.Price, *stripe.Price]{
		kind: platform.KindPrice,
		list: func(ctx context.Context, f platform.ListFilter) iter.Seq2[*stripe.Price, error] {
			params := &stripe.PriceListParams{Active: f.Active}
			if f.Parent != "" {
				params.Product = stripe.String(f.Parent)
			}
			params.Limit = stripe.Int64(c.pageSize)
			params.AddExpand("data.tiers")
			return iter.Seq2[*stripe.Price, error](c.sc.V1Prices.List(ctx, params))
		},
		retrieve: func(ctx context.Context, id string) (*stripe.Price, error) {
			params := &stripe.PriceRetrieveParams{}
			params.AddExpand("tiers")
			return c.sc.V1Prices.Retrieve(ctx, id, params)
		},
		create: func(ctx context.Context, p *platform.Price, key string) (*stripe.Price, error) {
			params := priceParams(p)
			setIdempotencyKey(&params.Params, key)
			return c.sc.V1Prices.Create(ctx, params)
		},
		from: fromPrice,
	}
}

func (c *Client) Coupons() platform.Collection[*platform.Coupon] {
	return &collection[*platform.Coupon, *stripe.Coupon]{
		kind: platform.KindCoupon,
		// Coupons cannot be filtered server-side; validity is checked by the caller.
		list: func(ctx context.Context, _ platform.ListFilter) iter.Seq2[*stripe.Coupon, error] {
			params := &stripe.CouponListParams{}
			params.Limit = stripe.Int64(c.pageSize)
			return iter.Seq2[*stripe.Coupon, error](c.sc.V1Coupons.List(ctx, params))
		},
		retrieve: func(ctx context.Context, id string) (*stripe.Coupon, error) {
			return c.sc.V1Coupons.Retrieve(ctx, id, &stripe.CouponRetrieveParams{})
		},
		create: func(ctx context.Context, cp *platform.Coupon, key string) (*stripe.Coupon, error) {
			params := couponParams(cp)
			setIdempotencyKey(&params.Params, key)
			return c.sc.V1Coupons.Create(ctx, params)
		},
		from: fromCoupon,
	}
}

func (c *Client) PromotionCodes() platform.Collection[*platform.PromotionCode] {
	return &collection[*platform.PromotionCode, *stripe.PromotionCode]{
		kind: platform.KindPromotionCode,
		list: func(ctx context.Context, f platform.ListFilter) iter.Seq2[*stripe.PromotionCode, error] {
			params := &stripe.PromotionCodeListParams{Active: f.Active}
			if f.Parent != "" {
				params.Coupon = stripe.String(f.Parent)
			}
			if f.Code != "" {
				params.Code = stripe.String(f.Code)
			}
			params.Limit = stripe.Int64(c.pageSize)
			return iter.Seq2[*stripe.PromotionCode, error](c.sc.V1PromotionCodes.List(ctx, params))
		},
		retrieve: func(ctx context.Context, id string) (*stripe.PromotionCode, error) {
			return c.sc.V1PromotionCodes.Retrieve(ctx, id, &stripe.PromotionCodeRetrieveParams{})
		},
		create: func(ctx context.Context, pc *platform.PromotionCode, key string) (*stripe.PromotionCode, error) {
			params := promotionCodeParams(pc)
			setIdempotencyKey(&params.Params, key)
			return c.sc.V1PromotionCodes.Create(ctx, params)
		},
		from: fromPromotionCode,
	}
}

type subscriptions struct {
	*collection[*platform.Subscription, *stripe.Subscription]
	c *Client
}

func (c *Client) Subscriptions() platform.SubscriptionCollection {
	return &subscriptions{
		c: c,
		collection: &collection[*platform.Subscription, *stripe.Subscription]{
			kind: platform.KindSubscription,
			list: func(ctx context.Context, f platform.ListFilter) iter.Seq2[*stripe.Subscription, error] {
				params := &stripe.SubscriptionListParams{}
				if f.Status != "" {
					params.Status = stripe.String(f.Status)
				}
				if f.Customer != "" {
					params.Customer = stripe.String(f.Customer)
				}
				params.Limit = stripe.Int64(c.pageSize)
				return iter.Seq2[*stripe.Subscription, error](c.sc.V1Subscriptions.List(ctx, params))
			},
			retrieve: func(ctx context.Context, id string) (*stripe.Subscription, error) {
				return c.sc.V1Subscriptions.Retrieve(ctx, id, &stripe.SubscriptionRetrieveParams{})
			},
			create: func(ctx context.Context, s *platform.Subscription, key string) (*stripe.Subscription, error) {
				params := subscriptionParams(s)
				setIdempotencyKey(&params.Params, key)
				return c.sc.V1Subscriptions.Create(ctx, params)
			},
			from: fromSubscription,
		},
	}
}

func (s *subscriptions) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*platform.Subscription, error) {
	updated, err := s.c.sc.V1Subscriptions.Update(ctx, id, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(cancel),
	})
	if err != nil {
		return nil, classify(err, platform.KindSubscription, "update")
	}
	return fromSubscription(updated), nil
}

type customers struct{ c *Client }

func (c *Client) Customers() platform.CustomerCollection { return customers{c: c} }

func (cs customers) Retrieve(ctx context.Context, id string) (*platform.Customer, error) {
	params := &stripe.CustomerRetrieveParams{}
	params.AddExpand("invoice_settings.default_payment_method")
	cus, err := cs.c.sc.V1Customers.Retrieve(ctx, id, params)
	if err != nil {
		return nil, classify(err, platform.KindCustomer, "retrieve")
	}
	return fromCustomer(cus), nil
}

func (cs customers) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*platform.Customer, error) {
	cus, err := cs.c.sc.V1Customers.Update(ctx, customerID, &stripe.CustomerUpdateParams{
		InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	})
	if err != nil {
		return nil, classify(err, platform.KindCustomer, "update")
	}
	return fromCustomer(cus), nil
}

type paymentMethods struct{ c *Client }

func (c *Client) PaymentMethods() platform.PaymentMethodCollection { return paymentMethods{c: c} }

func (pm paymentMethods) List(ctx context.Context, f platform.ListFilter) iter.Seq2[*platform.PaymentMethod, error] {
	return func(yield func(*platform.PaymentMethod, error) bool) {
		params := &stripe.PaymentMethodListParams{}
		if f.Customer != "" {
			params.Customer = stripe.String(f.Customer)
		}
		if f.Type != "" {
			params.Type = stripe.String(f.Type)
		}
		params.Limit = stripe.Int64(pm.c.pageSize)
		for item, err := range pm.c.sc.V1PaymentMethods.List(ctx, params) {
			if err != nil {
				yield(nil, classify(err, platform.KindPaymentMethod, "list"))
				return
			}
			if !yield(fromPaymentMethod(item), nil) {
				return
			}
		}
	}
}

func (pm paymentMethods) Attach(ctx context.Context, paymentMethodID, customerID string) (*platform.PaymentMethod, error) {
	attached, err := pm.c.sc.V1PaymentMethods.Attach(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return nil, classify(err, platform.KindPaymentMethod, "attach")
	}
	return fromPaymentMethod(attached), nil
}

func setIdempotencyKey(p *stripe.Params, key string) {
	if key != "" {
		p.SetIdempotencyKey(key)
	}
}
