package catalog

import "go.uber.org/fx"

var Module = fx.Module("catalog.phase",
	fx.Provide(New),
)
