package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ironwake/broadside/internal/access"
	"github.com/ironwake/broadside/internal/clock"
	"github.com/ironwake/broadside/internal/config"
	"github.com/ironwake/broadside/internal/entitlement"
	"github.com/ironwake/broadside/internal/era"
	"github.com/ironwake/broadside/internal/migration"
	obsmetrics "github.com/ironwake/broadside/internal/observability/metrics"
	"github.com/ironwake/broadside/internal/providers/email"
	"github.com/ironwake/broadside/internal/purchase"
	"github.com/ironwake/broadside/internal/referral"
	"github.com/ironwake/broadside/internal/server"
	"github.com/ironwake/broadside/internal/voucher"
	"github.com/ironwake/broadside/pkg/db"
	"github.com/ironwake/broadside/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		db.Module,
		clock.Module,
		obsmetrics.Module,
		fx.Provide(newSnowflakeNode),

		era.Module,
		entitlement.Module,
		voucher.Module,
		access.Module,
		referral.Module,
		purchase.Module,
		email.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func newSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
