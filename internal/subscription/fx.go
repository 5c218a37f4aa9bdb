package subscription

import (
	"github.com/bolla-network/turion/internal/subscription/repository"
	"github.com/bolla-network/turion/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
