package paymentmethod

import "go.uber.org/fx"

var Module = fx.Module("paymentmethod.resolver",
	fx.Provide(New),
)
