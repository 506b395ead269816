package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/cache"
	"github.com/smallbiznis/costwise/internal/clock"
	"github.com/smallbiznis/costwise/internal/config"
	"github.com/smallbiznis/costwise/internal/dimension"
	"github.com/smallbiznis/costwise/internal/fact"
	"github.com/smallbiznis/costwise/internal/ingest"
	"github.com/smallbiznis/costwise/internal/migration"
	"github.com/smallbiznis/costwise/internal/observability"
	"github.com/smallbiznis/costwise/internal/poller"
	"github.com/smallbiznis/costwise/internal/server"
	"github.com/smallbiznis/costwise/internal/upload"
	"github.com/smallbiznis/costwise/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		cache.Module,
		migration.Module,

		// Ingestion domains
		upload.Module,
		dimension.Module,
		fact.Module,
		ingest.Module,
		poller.Module,
		server.Module,
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
