// Package subscription recreates active source subscriptions in the target
// account against already migrated prices.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/paymentmethod"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrEmptyPriceMap = errors.New("empty_price_map")
	ErrNoItems       = errors.New("subscription_without_items")
)

// PaymentMethods finds the card a target subscription is charged with.
type PaymentMethods interface {
	Ensure(ctx context.Context, customerID string) (string, error)
	Preview(ctx context.Context, customerID string) (string, error)
}

type Phase struct {
	accounts     platform.Accounts
	payments     PaymentMethods
	cancelSource bool
	log          *zap.Logger
	recorder     reconcile.Recorder
}

type Params struct {
	fx.In

	Accounts platform.Accounts
	Config   config.Config
	Payments *paymentmethod.Resolver
	Log      *zap.Logger
	Recorder reconcile.Recorder `optional:"true"`
}

func New(p Params) *Phase {
	return NewPhase(p.Accounts, p.Payments, p.Config.Subscription.CancelSourceAtPeriodEnd, p.Log, p.Recorder)
}

func NewPhase(accounts platform.Accounts, payments PaymentMethods, cancelSource bool, log *zap.Logger, recorder reconcile.Recorder) *Phase {
	return &Phase{
		accounts:     accounts,
		payments:     payments,
		cancelSource: cancelSource,
		log:          log.Named("subscription.phase"),
		recorder:     recorder,
	}
}

func (p *Phase) Name() string { return config.StepSubscriptions }

func (p *Phase) Kinds() []platform.Kind {
	return []platform.Kind{platform.KindSubscription}
}

// Run rebuilds the price mapping from the target's tagged prices, then migrates
// every active source subscription. An empty price mapping aborts the phase:
// it means the catalog was never migrated.
func (p *Phase) Run(ctx context.Context, run reconcile.Run) (*reconcile.Summary, error) {
	summary := reconcile.NewSummary(p.Kinds()...)
	source, target := p.accounts.Source, p.accounts.Target

	priceIndex, err := correlation.Build(ctx, p.log, platform.KindPrice,
		target.Prices().List(ctx, platform.ActiveOnly()),
		correlation.Tag[*platform.Price](correlation.TagPrice))
	if err != nil {
		return summary, err
	}
	if priceIndex.Len() == 0 {
		return summary, fmt.Errorf("%w: no target price carries %s, run the products step first", ErrEmptyPriceMap, correlation.TagPrice)
	}

	subIndex, err := correlation.Build(ctx, p.log, platform.KindSubscription,
		live(target.Subscriptions().List(ctx, platform.ListFilter{Status: platform.SubscriptionStatusAll})),
		correlation.Tag[*platform.Subscription](correlation.TagSubscription))
	if err != nil {
		return summary, err
	}

	resolver := reconcile.NewResolver(priceIndex)
	subs := reconcile.NewMigrator(p.spec(resolver), subIndex, run.Options(p.log, p.recorder))

	for sub, err := range source.Subscriptions().List(ctx, platform.ListFilter{Status: platform.SubscriptionStatusActive}) {
		if err != nil {
			return summary, fmt.Errorf("list source subscriptions: %w", err)
		}
		summary.Record(subs.Migrate(ctx, sub))
	}
	return summary, nil
}

func (p *Phase) spec(resolver *reconcile.Resolver) reconcile.Spec[*platform.Subscription] {
	return reconcile.Spec[*platform.Subscription]{
		Kind:     platform.KindSubscription,
		Strategy: correlation.Tag[*platform.Subscription](correlation.TagSubscription),
		Build: func(src *platform.Subscription) (*platform.Subscription, error) {
			return Build(src, resolver)
		},
		Prepare: func(ctx context.Context, src, desired *platform.Subscription) (*platform.Subscription, error) {
			pm, err := p.payments.Ensure(ctx, src.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", reconcile.ErrPrecondition, err)
			}
			desired.DefaultPaymentMethodID = pm
			return desired, nil
		},
		Create: p.accounts.Target.Subscriptions().Create,
		Probe: func(ctx context.Context, src *platform.Subscription) {
			if _, err := p.payments.Preview(ctx, src.CustomerID); err != nil {
				p.log.Warn("live run would fail to find a payment method",
					zap.String("source_id", src.ID),
					zap.String("customer_id", src.CustomerID),
					zap.Error(err),
				)
			}
		},
		AfterCreate: p.flagSource,
	}
}

// flagSource stops the source subscription from renewing once the target copy
// has taken over billing.
func (p *Phase) flagSource(ctx context.Context, src, created *platform.Subscription) {
	if !p.cancelSource {
		return
	}
	if _, err := p.accounts.Source.Subscriptions().SetCancelAtPeriodEnd(ctx, src.ID, true); err != nil {
		p.log.Error("target subscription created but source subscription still renews, cancel it manually",
			zap.String("source_id", src.ID),
			zap.String("target_id", created.ID),
			zap.Error(err),
		)
		return
	}
	p.log.Info("source subscription set to cancel at period end",
		zap.String("source_id", src.ID),
		zap.String("target_id", created.ID),
	)
}

// Build maps every item of src onto its target price. It fails if any price is
// unmapped; items are never partially substituted.
func Build(src *platform.Subscription, resolver *reconcile.Resolver) (*platform.Subscription, error) {
	if len(src.Items) == 0 {
		return nil, fmt.Errorf("%w: %w: %s", reconcile.ErrPrecondition, ErrNoItems, src.ID)
	}
	sourcePrices := make([]string, len(src.Items))
	for i, item := range src.Items {
		sourcePrices[i] = item.PriceID
	}
	targetPrices, err := resolver.ResolveAll(platform.KindPrice, sourcePrices)
	if err != nil {
		return nil, err
	}

	items := make([]platform.SubscriptionItem, len(src.Items))
	for i, item := range src.Items {
		items[i] = platform.SubscriptionItem{PriceID: targetPrices[i], Quantity: item.Quantity}
	}
	return &platform.Subscription{
		CustomerID: src.CustomerID,
		Items:      items,
		// The customer already paid for the current source period.
		TrialEnd:   src.CurrentPeriodEnd,
		OffSession: true,
		Metadata:   src.Metadata.With(correlation.TagSubscription, src.ID),
	}, nil
}

// live drops subscriptions that ended for good. A migrated copy that is past due,
// unpaid or paused still counts, so a rerun does not bill the customer twice.
func live(items iter.Seq2[*platform.Subscription, error]) iter.Seq2[*platform.Subscription, error] {
	return func(yield func(*platform.Subscription, error) bool) {
		for sub, err := range items {
			if err != nil {
				yield(nil, err)
				return
			}
			if sub.Status == platform.SubscriptionStatusCanceled || sub.Status == platform.SubscriptionStatusExpired {
				continue
			}
			if !yield(sub, nil) {
				return
			}
		}
	}
}
