package era

import "go.uber.org/fx"

var Module = fx.Module("era.catalog",
	fx.Provide(func() *Catalog {
		return NewCatalog(defaultConfigs())
	}),
)
