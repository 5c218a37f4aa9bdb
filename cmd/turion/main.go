package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/bolla-network/turion/internal/config"
	"github.com/bolla-network/turion/internal/migration"
	"github.com/bolla-network/turion/internal/observability"
	"github.com/bolla-network/turion/internal/server"
	"github.com/bolla-network/turion/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
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
