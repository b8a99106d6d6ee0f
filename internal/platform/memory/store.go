package memory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/varunnayak/stripe-migrate/internal/platform"
)

type store[T platform.Object] struct {
	acct     *Account
	kind     platform.Kind
	prefix   string
	items    []T
	match    func(T, platform.ListFilter) bool
	clone    func(T) T
	validate func(T) error
	// stamp fills in server-assigned fields of a freshly created entity.
	stamp    func(T)
	replays  map[string]T
}

func newStore[T platform.Object](acct *Account, kind platform.Kind, prefix string, match func(T, platform.ListFilter) bool, clone func(T) T) *store[T] {
	return &store[T]{
		acct:    acct,
		kind:    kind,
		prefix:  prefix,
		match:   match,
		clone:   clone,
		replays: map[string]T{},
	}
}

func (s *store[T]) List(ctx context.Context, filter platform.ListFilter) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		a := s.acct
		a.mu.Lock()
		a.calls.Lists[s.kind]++
		if err := a.failList[s.kind]; err != nil {
			a.mu.Unlock()
			var zero T
			yield(zero, err)
			return
		}
		items := make([]T, 0, len(s.items))
		for _, item := range s.items {
			if s.match(item, filter) {
				items = append(items, s.clone(item))
			}
		}
		a.mu.Unlock()

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (s *store[T]) Retrieve(ctx context.Context, id string) (T, error) {
	a := s.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Retrieves[s.kind]++
	for _, item := range s.items {
		if item.ObjectID() == id {
			return s.clone(item), nil
		}
	}
	var zero T
	return zero, notFound(s.kind, "retrieve", id)
}

func (s *store[T]) Create(ctx context.Context, item T, opts platform.CreateOptions) (T, error) {
	a := s.acct
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls.Creates[s.kind]++

	var zero T
	if opts.IdempotencyKey != "" {
		if prior, ok := s.replays[opts.IdempotencyKey]; ok {
			return s.clone(prior), nil
		}
	}
	if fn := a.failCreate[s.kind]; fn != nil {
		if err := fn(item); err != nil {
			var apiErr *platform.APIError
			if errors.As(err, &apiErr) {
				return zero, err
			}
			return zero, platform.NewAPIError(platform.ErrAPI, s.kind, "create", err)
		}
	}

	created := s.clone(item)
	if id := created.ObjectID(); id != "" && s.has(id) {
		return zero, platform.NewAPIError(platform.ErrConflict, s.kind, "create",
			fmt.Errorf("%s %s already exists", s.kind, id))
	}
	if s.validate != nil {
		if err := s.validate(created); err != nil {
			return zero, err
		}
	}
	if created.ObjectID() == "" {
		assignID(created, a.nextID(s.prefix))
	}
	if s.stamp != nil {
		s.stamp(created)
	}
	s.items = append(s.items, created)
	if opts.IdempotencyKey != "" {
		s.replays[opts.IdempotencyKey] = created
	}
	return s.clone(created), nil
}

func (s *store[T]) has(id string) bool {
	return slices.ContainsFunc(s.items, func(item T) bool { return item.ObjectID() == id })
}

func (s *store[T]) snapshot() []T {
	s.acct.mu.Lock()
	defer s.acct.mu.Unlock()
	out := make([]T, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, s.clone(item))
	}
	return out
}

func assignID(obj platform.Object, id string) {
	switch v := obj.(type) {
	case *platform.Product:
		v.ID = id
	case *platform.Price:
		v.ID = id
	case *platform.Coupon:
		v.ID = id
	case *platform.PromotionCode:
		v.ID = id
	case *platform.Subscription:
		v.ID = id
	}
}

func activeMatches(active *bool, value bool) bool {
	return active == nil || *active == value
}

func matchProduct(p *platform.Product, f platform.ListFilter) bool {
	return activeMatches(f.Active, p.Active)
}

func matchPrice(p *platform.Price, f platform.ListFilter) bool {
	return activeMatches(f.Active, p.Active) && (f.Parent == "" || f.Parent == p.ProductID)
}

func matchCoupon(c *platform.Coupon, f platform.ListFilter) bool {
	return true
}

func matchPromotionCode(p *platform.PromotionCode, f platform.ListFilter) bool {
	return activeMatches(f.Active, p.Active) &&
		(f.Parent == "" || f.Parent == p.CouponID) &&
		(f.Code == "" || f.Code == p.Code) &&
		(f.Customer == "" || f.Customer == p.CustomerID)
}

func matchSubscription(s *platform.Subscription, f platform.ListFilter) bool {
	if f.Customer != "" && f.Customer != s.CustomerID {
		return false
	}
	switch f.Status {
	case "", platform.SubscriptionStatusAll:
		return true
	default:
		return f.Status == s.Status
	}
}

func cloneProduct(p *platform.Product) *platform.Product {
	c := *p
	c.Metadata = p.Metadata.Clone()
	return &c
}

func clonePrice(p *platform.Price) *platform.Price {
	c := *p
	c.Metadata = p.Metadata.Clone()
	c.Tiers = slices.Clone(p.Tiers)
	return &c
}

func cloneCoupon(p *platform.Coupon) *platform.Coupon {
	c := *p
	c.Metadata = p.Metadata.Clone()
	c.AppliesToProducts = slices.Clone(p.AppliesToProducts)
	return &c
}

func clonePromotionCode(p *platform.PromotionCode) *platform.PromotionCode {
	c := *p
	c.Metadata = p.Metadata.Clone()
	return &c
}

func cloneSubscription(s *platform.Subscription) *platform.Subscription {
	c := *s
	c.Metadata = s.Metadata.Clone()
	c.Items = slices.Clone(s.Items)
	return &c
}
