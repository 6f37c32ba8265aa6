package entitlement

import (
	"github.com/ironwake/broadside/internal/entitlement/repository"
	"github.com/ironwake/broadside/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
