package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tracklight/internal/clock"
	"github.com/smallbiznis/tracklight/internal/config"
	"github.com/smallbiznis/tracklight/internal/migration"
	"github.com/smallbiznis/tracklight/internal/observability"
	"github.com/smallbiznis/tracklight/internal/scheduler"
	"github.com/smallbiznis/tracklight/internal/server"
	"github.com/smallbiznis/tracklight/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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
