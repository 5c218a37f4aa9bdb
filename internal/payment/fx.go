package payment

import (
	"github.com/bolla-network/turion/internal/payment/stripe"
	"github.com/bolla-network/turion/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(stripe.Provide),
	fx.Provide(webhook.New),
)
