package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/viharalabs/templedesk/internal/clock"
	"github.com/viharalabs/templedesk/internal/config"
	"github.com/viharalabs/templedesk/internal/migration"
	"github.com/viharalabs/templedesk/internal/scheduler"
	"github.com/viharalabs/templedesk/internal/server"
	"github.com/viharalabs/templedesk/pkg/db"
	"github.com/viharalabs/templedesk/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Settlement pipeline and HTTP surface
		server.Module,
		scheduler.Module,
		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
