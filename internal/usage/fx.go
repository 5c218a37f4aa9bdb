package usage

import (
	"go.uber.org/fx"

	"github.com/bolla-network/turion/internal/usage/repository"
	"github.com/bolla-network/turion/internal/usage/service"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
