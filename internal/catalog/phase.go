// Package catalog migrates products and their prices.
package catalog

import (
	"context"
	"fmt"

	"github.com/varunnayak/stripe-migrate/internal/config"
	"github.com/varunnayak/stripe-migrate/internal/correlation"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"github.com/varunnayak/stripe-migrate/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Phase struct {
	accounts platform.Accounts
	log      *zap.Logger
	recorder reconcile.Recorder
}

type Params struct {
	fx.In

	Accounts platform.Accounts
	Log      *zap.Logger
	Recorder reconcile.Recorder `optional:"true"`
}

func New(p Params) *Phase {
	return &Phase{
		accounts: p.Accounts,
		log:      p.Log.Named("catalog.phase"),
		recorder: p.Recorder,
	}
}

func (p *Phase) Name() string { return config.StepProducts }

func (p *Phase) Kinds() []platform.Kind {
	return []platform.Kind{platform.KindProduct, platform.KindPrice}
}

// Run migrates every active source product, then the active prices of each
// product that is present in the target. A listing failure aborts the phase.
func (p *Phase) Run(ctx context.Context, run reconcile.Run) (*reconcile.Summary, error) {
	summary := reconcile.NewSummary(p.Kinds()...)
	source, target := p.accounts.Source, p.accounts.Target

	productIndex, err := correlation.Build(ctx, p.log, platform.KindProduct,
		target.Products().List(ctx, platform.ListFilter{}),
		correlation.PortableID[*platform.Product]())
	if err != nil {
		return summary, err
	}
	priceIndex, err := correlation.Build(ctx, p.log, platform.KindPrice,
		target.Prices().List(ctx, platform.ActiveOnly()),
		correlation.Tag[*platform.Price](correlation.TagPrice))
	if err != nil {
		return summary, err
	}

	opts := run.Options(p.log, p.recorder)
	resolver := reconcile.NewResolver(productIndex)
	products := reconcile.NewMigrator(p.productSpec(), productIndex, opts)
	prices := reconcile.NewMigrator(p.priceSpec(resolver), priceIndex, opts)

	for product, err := range source.Products().List(ctx, platform.ActiveOnly()) {
		if err != nil {
			return summary, fmt.Errorf("list source products: %w", err)
		}
		out := products.Migrate(ctx, product)
		summary.Record(out)
		if !out.Exists {
			p.log.Warn("product not present in target, not attempting its prices",
				zap.String("product_id", product.ID),
				zap.String("status", string(out.Status)),
			)
			continue
		}

		filter := platform.ActiveOnly()
		filter.Parent = product.ID
		for price, err := range source.Prices().List(ctx, filter) {
			if err != nil {
				return summary, fmt.Errorf("list source prices of %s: %w", product.ID, err)
			}
			summary.Record(prices.Migrate(ctx, price))
		}
	}
	return summary, nil
}

func (p *Phase) productSpec() reconcile.Spec[*platform.Product] {
	target := p.accounts.Target
	return reconcile.Spec[*platform.Product]{
		Kind:     platform.KindProduct,
		Strategy: correlation.PortableID[*platform.Product](),
		Build:    BuildProduct,
		Create:   target.Products().Create,
		Refetch:  target.Products().Retrieve,
		Probe: func(ctx context.Context, src *platform.Product) {
			_, err := target.Products().Retrieve(ctx, src.ID)
			switch {
			case err == nil:
				p.log.Info("product missing from listing but retrievable by id", zap.String("product_id", src.ID))
			case platform.IsNotFound(err):
				p.log.Debug("confirmed product absent from target", zap.String("product_id", src.ID))
			default:
				p.log.Warn("product probe failed", zap.String("product_id", src.ID), zap.Error(err))
			}
		},
	}
}

func (p *Phase) priceSpec(resolver *reconcile.Resolver) reconcile.Spec[*platform.Price] {
	return reconcile.Spec[*platform.Price]{
		Kind:     platform.KindPrice,
		Strategy: correlation.Tag[*platform.Price](correlation.TagPrice),
		Build: func(src *platform.Price) (*platform.Price, error) {
			productID, err := resolver.Resolve(platform.KindProduct, src.ProductID)
			if err != nil {
				return nil, err
			}
			if productID == "" {
				productID = src.ProductID
			}
			return BuildPrice(src, productID)
		},
		Create: p.accounts.Target.Prices().Create,
	}
}
