package referral

import (
	"github.com/ironwake/broadside/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(service.New),
)
