package apikey

import (
	"github.com/bolla-network/turion/internal/apikey/repository"
	"github.com/bolla-network/turion/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
