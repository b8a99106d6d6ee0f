// Package memory is an in-process implementation of the billing platform used as
// the remote account in tests. Listings preserve insertion order.
package memory

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/varunnayak/stripe-migrate/internal/platform"
)

// Calls counts remote operations by kind.
type Calls struct {
	Lists     map[platform.Kind]int
	Retrieves map[platform.Kind]int
	Creates   map[platform.Kind]int
	Updates   map[platform.Kind]int
	Attaches  int
}

// Mutations is the number of calls that changed account state.
func (c Calls) Mutations() int {
	n := c.Attaches
	for _, v := range c.Creates {
		n += v
	}
	for _, v := range c.Updates {
		n += v
	}
	return n
}

// Account is one fake platform account.
type Account struct {
	// AllowForeignPaymentMethods lets Attach accept payment method IDs this account
	// has never seen, as if they were shared with another account.
	AllowForeignPaymentMethods bool

	mu    sync.Mutex
	name  string
	seq   int
	calls Calls

	failList   map[platform.Kind]error
	failCreate map[platform.Kind]func(platform.Object) error

	products       *store[*platform.Product]
	prices         *store[*platform.Price]
	coupons        *store[*platform.Coupon]
	promotionCodes *store[*platform.PromotionCode]
	subscriptions  *store[*platform.Subscription]

	customers      map[string]*platform.Customer
	paymentMethods []*platform.PaymentMethod
}

var _ platform.Client = (*Account)(nil)

// NewAccount returns an empty account. The name prefixes generated identifiers.
func NewAccount(name string) *Account {
	a := &Account{
		name:       name,
		failList:   map[platform.Kind]error{},
		failCreate: map[platform.Kind]func(platform.Object) error{},
		customers:  map[string]*platform.Customer{},
		calls: Calls{
			Lists:     map[platform.Kind]int{},
			Retrieves: map[platform.Kind]int{},
			Creates:   map[platform.Kind]int{},
			Updates:   map[platform.Kind]int{},
		},
	}
	a.products = newStore(a, platform.KindProduct, "prod", matchProduct, cloneProduct)
	a.prices = newStore(a, platform.KindPrice, "price", matchPrice, clonePrice)
	a.coupons = newStore(a, platform.KindCoupon, "coupon", matchCoupon, cloneCoupon)
	a.promotionCodes = newStore(a, platform.KindPromotionCode, "promo", matchPromotionCode, clonePromotionCode)
	a.subscriptions = newStore(a, platform.KindSubscription, "sub", matchSubscription, cloneSubscription)

	a.prices.validate = a.validatePrice
	a.promotionCodes.validate = a.validatePromotionCode
	a.subscriptions.validate = a.validateSubscription
	a.subscriptions.stamp = stampSubscription
	return a
}

func (a *Account) Products() platform.Collection[*platform.Product] { return a.products }
func (a *Account) Prices() platform.Collection[*platform.Price]     { return a.prices }
func (a *Account) Coupons() platform.Collection[*platform.Coupon]   { return a.coupons }

func (a *Account) PromotionCodes() platform.Collection[*platform.PromotionCode] {
	return a.promotionCodes
}

func (a *Account) Subscriptions() platform.SubscriptionCollection {
	return subscriptionStore{a.subscriptions}
}

func (a *Account) Customers() platform.CustomerCollection { return customerStore{a} }

func (a *Account) PaymentMethods() platform.PaymentMethodCollection { return paymentMethodStore{a} }

// FailList makes every listing of kind fail with err.
func (a *Account) FailList(kind platform.Kind, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failList[kind] = err
}

// FailCreate installs a hook consulted before every create of kind. A non-nil
// return is surfaced as an API error of class platform.ErrAPI unless it already
// is an *platform.APIError.
func (a *Account) FailCreate(kind platform.Kind, fn func(platform.Object) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failCreate[kind] = fn
}

// Calls returns a snapshot of the call counters.
func (a *Account) Calls() Calls {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := Calls{
		Lists:     copyCounts(a.calls.Lists),
		Retrieves: copyCounts(a.calls.Retrieves),
		Creates:   copyCounts(a.calls.Creates),
		Updates:   copyCounts(a.calls.Updates),
		Attaches:  a.calls.Attaches,
	}
	return out
}

// ResetCalls zeroes the call counters.
func (a *Account) ResetCalls() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.calls.Lists)
	clear(a.calls.Retrieves)
	clear(a.calls.Creates)
	clear(a.calls.Updates)
	a.calls.Attaches = 0
}

// Seed inserts entities directly, keeping their identifiers and bypassing
// validation and call counters.
func (a *Account) Seed(objects ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, obj := range objects {
		switch v := obj.(type) {
		case *platform.Product:
			a.products.items = append(a.products.items, cloneProduct(v))
		case *platform.Price:
			a.prices.items = append(a.prices.items, clonePrice(v))
		case *platform.Coupon:
			a.coupons.items = append(a.coupons.items, cloneCoupon(v))
		case *platform.PromotionCode:
			a.promotionCodes.items = append(a.promotionCodes.items, clonePromotionCode(v))
		case *platform.Subscription:
			a.subscriptions.items = append(a.subscriptions.items, cloneSubscription(v))
		case *platform.Customer:
			c := *v
			a.customers[c.ID] = &c
		case *platform.PaymentMethod:
			pm := *v
			a.paymentMethods = append(a.paymentMethods, &pm)
		default:
			panic(fmt.Sprintf("memory: cannot seed %T", obj))
		}
	}
}

// AllProducts returns a snapshot of every product, in insertion order.
func (a *Account) AllProducts() []*platform.Product { return a.products.snapshot() }

func (a *Account) AllPrices() []*platform.Price { return a.prices.snapshot() }

func (a *Account) AllCoupons() []*platform.Coupon { return a.coupons.snapshot() }

func (a *Account) AllPromotionCodes() []*platform.PromotionCode { return a.promotionCodes.snapshot() }

func (a *Account) AllSubscriptions() []*platform.Subscription { return a.subscriptions.snapshot() }

// Customer returns a copy of the stored customer, or nil.
func (a *Account) Customer(id string) *platform.Customer {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.customers[id]
	if !ok {
		return nil
	}
	out := *c
	return &out
}

func (a *Account) nextID(prefix string) string {
	a.seq++
	return fmt.Sprintf("%s_%s%d", prefix, a.name, a.seq)
}

func (a *Account) validatePrice(p *platform.Price) error {
	if !a.products.has(p.ProductID) {
		return platform.NewAPIError(platform.ErrInvalidRequest, platform.KindPrice, "create",
			fmt.Errorf("no such product: %s", p.ProductID))
	}
	return nil
}

func (a *Account) validatePromotionCode(p *platform.PromotionCode) error {
	if !a.coupons.has(p.CouponID) {
		return platform.NewAPIError(platform.ErrInvalidRequest, platform.KindPromotionCode, "create",
			fmt.Errorf("no such coupon: %s", p.CouponID))
	}
	for _, existing := range a.promotionCodes.items {
		if existing.Active && strings.EqualFold(existing.Code, p.Code) {
			return platform.NewAPIError(platform.ErrConflict, platform.KindPromotionCode, "create",
				fmt.Errorf("promotion code %s already exists", p.Code))
		}
	}
	return nil
}

func (a *Account) validateSubscription(s *platform.Subscription) error {
	if _, ok := a.customers[s.CustomerID]; !ok {
		return platform.NewAPIError(platform.ErrInvalidRequest, platform.KindSubscription, "create",
			fmt.Errorf("no such customer: %s", s.CustomerID))
	}
	for _, item := range s.Items {
		if !a.prices.has(item.PriceID) {
			return platform.NewAPIError(platform.ErrInvalidRequest, platform.KindSubscription, "create",
				fmt.Errorf("no such price: %s", item.PriceID))
		}
	}
	return nil
}

func stampSubscription(s *platform.Subscription) {
	if s.Status != "" {
		return
	}
	s.Status = platform.SubscriptionStatusActive
	if s.TrialEnd != nil {
		s.Status = platform.SubscriptionStatusTrialing
	}
}

type subscriptionStore struct {
	*store[*platform.Subscription]
}

func (s subscriptionStore) SetCancelAtPeriodEnd(ctx context.Context, id string, cancel bool) (*platform.Subscription, error) {
	a := s.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Updates[platform.KindSubscription]++
	for _, item := range s.items {
		if item.ID == id {
			item.CancelAtPeriodEnd = cancel
			return cloneSubscription(item), nil
		}
	}
	return nil, notFound(platform.KindSubscription, "update", id)
}

type customerStore struct {
	acct *Account
}

func (c customerStore) Retrieve(ctx context.Context, id string) (*platform.Customer, error) {
	a := c.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Retrieves[platform.KindCustomer]++
	cust, ok := a.customers[id]
	if !ok {
		return nil, notFound(platform.KindCustomer, "retrieve", id)
	}
	out := *cust
	return &out, nil
}

func (c customerStore) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*platform.Customer, error) {
	a := c.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Updates[platform.KindCustomer]++
	cust, ok := a.customers[customerID]
	if !ok {
		return nil, notFound(platform.KindCustomer, "update", customerID)
	}
	cust.DefaultPaymentMethodID = paymentMethodID
	out := *cust
	return &out, nil
}

type paymentMethodStore struct {
	acct *Account
}

func (p paymentMethodStore) List(ctx context.Context, filter platform.ListFilter) iter.Seq2[*platform.PaymentMethod, error] {
	return func(yield func(*platform.PaymentMethod, error) bool) {
		a := p.acct
		a.mu.Lock()
		a.calls.Lists[platform.KindPaymentMethod]++
		if err := a.failList[platform.KindPaymentMethod]; err != nil {
			a.mu.Unlock()
			yield(nil, err)
			return
		}
		var items []*platform.PaymentMethod
		for _, pm := range a.paymentMethods {
			if filter.Customer != "" && pm.CustomerID != filter.Customer {
				continue
			}
			if filter.Type != "" && pm.Type != filter.Type {
				continue
			}
			out := *pm
			items = append(items, &out)
		}
		a.mu.Unlock()
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (p paymentMethodStore) Attach(ctx context.Context, paymentMethodID, customerID string) (*platform.PaymentMethod, error) {
	a := p.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Attaches++
	if _, ok := a.customers[customerID]; !ok {
		return nil, notFound(platform.KindCustomer, "attach", customerID)
	}
	for _, pm := range a.paymentMethods {
		if pm.ID == paymentMethodID {
			pm.CustomerID = customerID
			out := *pm
			return &out, nil
		}
	}
	if !a.AllowForeignPaymentMethods {
		return nil, notFound(platform.KindPaymentMethod, "attach", paymentMethodID)
	}
	pm := &platform.PaymentMethod{ID: paymentMethodID, CustomerID: customerID, Type: platform.PaymentMethodTypeCard}
	a.paymentMethods = append(a.paymentMethods, pm)
	out := *pm
	return &out, nil
}

func notFound(kind platform.Kind, op, id string) error {
	return platform.NewAPIError(platform.ErrNotFound, kind, op, fmt.Errorf("no such %s: %s", kind, id))
}

func copyCounts(in map[platform.Kind]int) map[platform.Kind]int {
	out := make(map[platform.Kind]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
