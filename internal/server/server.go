package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bolla-network/turion/internal/apikey"
	apikeydomain "github.com/bolla-network/turion/internal/apikey/domain"
	"github.com/bolla-network/turion/internal/config"
	obsmiddleware "github.com/bolla-network/turion/internal/observability/logger"
	"github.com/bolla-network/turion/internal/payment"
	paymentdomain "github.com/bolla-network/turion/internal/payment/domain"
	"github.com/bolla-network/turion/internal/profile"
	"github.com/bolla-network/turion/internal/ratelimit"
	"github.com/bolla-network/turion/internal/subscription"
	subscriptiondomain "github.com/bolla-network/turion/internal/subscription/domain"
	"github.com/bolla-network/turion/internal/usage"
	usagedomain "github.com/bolla-network/turion/internal/usage/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	apikey.Module,
	profile.Module,
	subscription.Module,
	payment.Module,
	usage.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	apiKeySvc       apikeydomain.Service
	subscriptionSvc subscriptiondomain.Service
	paymentSvc      paymentdomain.Service
	usageSvc        usagedomain.Service
	requestLimiter  RequestGate
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	APIKeySvc       apikeydomain.Service
	SubscriptionSvc subscriptiondomain.Service
	PaymentSvc      paymentdomain.Service
	UsageSvc        usagedomain.Service
	RequestLimiter  *ratelimit.RequestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	srv := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		apiKeySvc:       p.APIKeySvc,
		subscriptionSvc: p.SubscriptionSvc,
		paymentSvc:      p.PaymentSvc,
		usageSvc:        p.UsageSvc,
	}
	if p.RequestLimiter != nil {
		srv.requestLimiter = p.RequestLimiter
	}
	return srv
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func registerRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterPublicRoutes()
}

// RegisterAPIRoutes mounts the dashboard surface (session auth) and the
// data-plane surface (API key auth).
func (s *Server) RegisterAPIRoutes() {
	v1 := s.engine.Group("/v1")

	session := v1.Group("", s.AuthRequired())
	{
		session.GET("/keys", s.ListAPIKeys)
		session.POST("/keys", s.CreateAPIKey)
		session.DELETE("/keys/:key_id", s.RevokeAPIKey)

		session.POST("/billing/checkout", s.CreateCheckoutSession)
		session.POST("/billing/portal", s.CreatePortalSession)
		session.GET("/billing/subscription", s.GetSubscription)

		session.GET("/usage", s.GetUsageSummary)
	}

	ingest := v1.Group("", s.APIKeyRequired())
	{
		ingest.POST("/usage", s.RecordUsage)
	}
}

// RegisterPublicRoutes mounts unauthenticated endpoints. The webhook route
// authenticates by signature instead of session.
func (s *Server) RegisterPublicRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/plans", s.ListPlans)
	v1.POST("/webhooks/stripe", s.HandlePaymentWebhook)
}
