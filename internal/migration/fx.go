// Package migration keeps the engine usable out of the box for local and
// self-hosted environments: the schema is created automatically on startup.
package migration

import (
	entitlementdomain "github.com/ironwake/broadside/internal/entitlement/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB) error {
		return conn.AutoMigrate(&entitlementdomain.EntitlementRow{})
	}),
)
