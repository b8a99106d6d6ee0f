package paymentmethod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/platform/memory"
	"go.uber.org/zap"
)

func newAccounts() (*memory.Account, *memory.Account, platform.Accounts) {
	src, dst := memory.NewAccount("s"), memory.NewAccount("t")
	return src, dst, platform.Accounts{Source: src, Target: dst}
}

func TestEnsureUsesDefault(t *testing.T) {
	_, dst, accounts := newAccounts()
	dst.Seed(&platform.Customer{ID: "cus_1", DefaultPaymentMethodID: "pm_default"})

	id, err := NewResolver(accounts, Policy{SetDefault: true}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_default", id)
	assert.Zero(t, dst.Calls().Lists[platform.KindPaymentMethod])
}

func TestEnsureFallsBackToAttachedCard(t *testing.T) {
	_, dst, accounts := newAccounts()
	dst.Seed(
		&platform.Customer{ID: "cus_1"},
		&platform.PaymentMethod{ID: "pm_other", CustomerID: "cus_2", Type: platform.PaymentMethodTypeCard},
		&platform.PaymentMethod{ID: "pm_sepa", CustomerID: "cus_1", Type: "sepa_debit"},
		&platform.PaymentMethod{ID: "pm_1", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard},
		&platform.PaymentMethod{ID: "pm_2", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard},
	)

	id, err := NewResolver(accounts, Policy{SetDefault: true}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", id)
	assert.Equal(t, "pm_1", dst.Customer("cus_1").DefaultPaymentMethodID)
}

func TestEnsureWithoutSetDefaultLeavesCustomer(t *testing.T) {
	_, dst, accounts := newAccounts()
	dst.Seed(
		&platform.Customer{ID: "cus_1"},
		&platform.PaymentMethod{ID: "pm_1", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard},
	)

	id, err := NewResolver(accounts, Policy{}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", id)
	assert.Empty(t, dst.Customer("cus_1").DefaultPaymentMethodID)
	assert.Zero(t, dst.Calls().Mutations())
}

func TestEnsureSourceFallback(t *testing.T) {
	src, dst, accounts := newAccounts()
	src.Seed(&platform.PaymentMethod{ID: "pm_src", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard})
	dst.Seed(&platform.Customer{ID: "cus_1"})
	dst.AllowForeignPaymentMethods = true

	id, err := NewResolver(accounts, Policy{SourceFallback: true}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_src", id)
	assert.Equal(t, 1, dst.Calls().Attaches)
	assert.Equal(t, "pm_src", dst.Customer("cus_1").DefaultPaymentMethodID)
}

func TestEnsureSourceFallbackAttachFailure(t *testing.T) {
	src, dst, accounts := newAccounts()
	src.Seed(&platform.PaymentMethod{ID: "pm_src", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard})
	dst.Seed(&platform.Customer{ID: "cus_1"})

	_, err := NewResolver(accounts, Policy{SourceFallback: true}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	assert.ErrorIs(t, err, ErrNoPaymentMethod)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.Empty(t, dst.Customer("cus_1").DefaultPaymentMethodID)
}

func TestEnsureNothingFound(t *testing.T) {
	src, dst, accounts := newAccounts()
	dst.Seed(&platform.Customer{ID: "cus_1"})
	src.Seed(&platform.PaymentMethod{ID: "pm_src", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard})

	_, err := NewResolver(accounts, Policy{SetDefault: true}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	assert.ErrorIs(t, err, ErrNoPaymentMethod)
	assert.Zero(t, src.Calls().Lists[platform.KindPaymentMethod])
}

func TestEnsureListFailureIsNotMistakenForMissingCard(t *testing.T) {
	_, dst, accounts := newAccounts()
	dst.Seed(&platform.Customer{ID: "cus_1"})
	dst.FailList(platform.KindPaymentMethod, errors.New("timeout"))

	_, err := NewResolver(accounts, Policy{}, zap.NewNop()).Ensure(context.Background(), "cus_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoPaymentMethod)
}

func TestEnsureUnknownCustomer(t *testing.T) {
	_, _, accounts := newAccounts()
	_, err := NewResolver(accounts, Policy{}, zap.NewNop()).Ensure(context.Background(), "cus_404")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestPreviewDoesNotMutate(t *testing.T) {
	src, dst, accounts := newAccounts()
	src.Seed(&platform.PaymentMethod{ID: "pm_src", CustomerID: "cus_1", Type: platform.PaymentMethodTypeCard})
	dst.Seed(&platform.Customer{ID: "cus_1"}, &platform.Customer{ID: "cus_2"})

	r := NewResolver(accounts, Policy{SetDefault: true, SourceFallback: true}, zap.NewNop())
	id, err := r.Preview(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_src", id)

	_, err = r.Preview(context.Background(), "cus_2")
	assert.ErrorIs(t, err, ErrNoPaymentMethod)
	assert.Zero(t, dst.Calls().Mutations())
}
