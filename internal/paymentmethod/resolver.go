// Package paymentmethod makes sure a target customer has a card that an
// off-session subscription can be charged against.
package paymentmethod

import (
	"context"
	"errors"
	"fmt"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrNoPaymentMethod = errors.New("no_payment_method")

type Policy struct {
	SetDefault     bool
	SourceFallback bool
}

type Resolver struct {
	accounts platform.Accounts
	policy   Policy
	log      *zap.Logger
}

type Params struct {
	fx.In

	Accounts platform.Accounts
	Config   config.Config
	Log      *zap.Logger
}

func New(p Params) *Resolver {
	return NewResolver(p.Accounts, Policy{
		SetDefault:     p.Config.PaymentMethod.SetDefault,
		SourceFallback: p.Config.PaymentMethod.SourceFallback,
	}, p.Log)
}

func NewResolver(accounts platform.Accounts, policy Policy, log *zap.Logger) *Resolver {
	return &Resolver{
		accounts: accounts,
		policy:   policy,
		log:      log.Named("paymentmethod.resolver"),
	}
}

type origin int

const (
	originNone origin = iota
	originDefault
	originAttached
	originSource
)

// Ensure returns the payment method the target customer should be charged with.
// It checks the customer's default, then any attached card, then (when allowed)
// the source customer's card. ErrNoPaymentMethod is returned when nothing is usable.
func (r *Resolver) Ensure(ctx context.Context, customerID string) (string, error) {
	log := r.log.With(zap.String("customer_id", customerID))
	id, from, err := r.lookup(ctx, customerID)
	if err != nil {
		return "", err
	}

	switch from {
	case originDefault:
		log.Debug("using default payment method", zap.String("payment_method_id", id))
		return id, nil
	case originAttached:
		log.Info("customer has no default payment method, using attached card", zap.String("payment_method_id", id))
		if r.policy.SetDefault {
			r.setDefault(ctx, log, customerID, id)
		}
		return id, nil
	case originSource:
		attached, err := r.accounts.Target.PaymentMethods().Attach(ctx, id, customerID)
		if err != nil {
			log.Error("attaching source card to target customer failed",
				zap.String("payment_method_id", id),
				zap.Error(err),
			)
			return "", fmt.Errorf("%w: attach %s: %w", ErrNoPaymentMethod, id, err)
		}
		log.Info("attached source card to target customer", zap.String("payment_method_id", attached.ID))
		r.setDefault(ctx, log, customerID, attached.ID)
		return attached.ID, nil
	default:
		log.Warn("no usable payment method for customer", zap.Bool("source_fallback", r.policy.SourceFallback))
		return "", fmt.Errorf("%w: customer %s", ErrNoPaymentMethod, customerID)
	}
}

// Preview reports the payment method Ensure would use, without attaching or
// updating anything.
func (r *Resolver) Preview(ctx context.Context, customerID string) (string, error) {
	id, from, err := r.lookup(ctx, customerID)
	if err != nil {
		return "", err
	}
	if from == originNone {
		return "", fmt.Errorf("%w: customer %s", ErrNoPaymentMethod, customerID)
	}
	return id, nil
}

func (r *Resolver) lookup(ctx context.Context, customerID string) (string, origin, error) {
	target := r.accounts.Target
	customer, err := target.Customers().Retrieve(ctx, customerID)
	if err != nil {
		return "", originNone, fmt.Errorf("retrieve target customer: %w", err)
	}
	if customer.DefaultPaymentMethodID != "" {
		return customer.DefaultPaymentMethodID, originDefault, nil
	}

	card, err := firstCard(ctx, target, customerID)
	if err != nil {
		return "", originNone, fmt.Errorf("list target payment methods: %w", err)
	}
	if card != nil {
		return card.ID, originAttached, nil
	}
	if !r.policy.SourceFallback {
		return "", originNone, nil
	}

	card, err = firstCard(ctx, r.accounts.Source, customerID)
	if err != nil {
		return "", originNone, fmt.Errorf("list source payment methods: %w", err)
	}
	if card != nil {
		return card.ID, originSource, nil
	}
	return "", originNone, nil
}

func (r *Resolver) setDefault(ctx context.Context, log *zap.Logger, customerID, paymentMethodID string) {
	if _, err := r.accounts.Target.Customers().SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		log.Warn("setting default payment method failed",
			zap.String("payment_method_id", paymentMethodID),
			zap.Error(err),
		)
	}
}

func firstCard(ctx context.Context, client platform.Client, customerID string) (*platform.PaymentMethod, error) {
	filter := platform.ListFilter{Customer: customerID, Type: platform.PaymentMethodTypeCard}
	for pm, err := range client.PaymentMethods().List(ctx, filter) {
		if err != nil {
			return nil, err
		}
		return pm, nil
	}
	return nil, nil
}
