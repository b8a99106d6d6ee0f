package discount

import "go.uber.org/fx"

var Module = fx.Module("discount.phase",
	fx.Provide(New),
)
