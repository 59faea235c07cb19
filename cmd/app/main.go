package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/cmd/fx/account_fx"
	"sajupia/cmd/fx/billing_fx"
	"sajupia/cmd/fx/config_fx"
	"sajupia/cmd/fx/controllers_fx"
	"sajupia/cmd/fx/db_fx"
	"sajupia/cmd/fx/mail_fx"
	"sajupia/cmd/fx/memcache_fx"
	"sajupia/cmd/fx/metrics_fx"
	"sajupia/cmd/fx/payment_service_fx"
	"sajupia/cmd/fx/prompt_fx"
	"sajupia/internal/api/controllers"
	"sajupia/internal/config"
	"sajupia/internal/services"
	"sajupia/pkg/middleware"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

func main() {
	app := fx.New(
		config_fx.Module,
		metrics_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		account_fx.Module,
		payment_service_fx.Module,
		prompt_fx.Module,
		mail_fx.Module,
		billing_fx.Module,
		billing_fx.Scheduler,
		controllers_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log logrus.FieldLogger) {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.WithField("addr", srv.Addr).Info("starting HTTP server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.WithError(err).Fatal("failed to start server")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

type RouterParams struct {
	fx.In

	Config       config.Config
	Log          logrus.FieldLogger
	Metrics      *observability.Metrics
	Verifier     utils.SessionVerifier
	Accounts     services.AccountServiceInterface
	Account      *controllers.AccountController
	Subscription *controllers.SubscriptionController
	Payment      *controllers.PaymentController
	Test         *controllers.TestController
	Cron         *controllers.CronController
	Health       *controllers.HealthController
}

func ProvideRouter(p RouterParams) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.RequestLoggerMiddleware(p.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     p.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.TraceIDHeader},
		ExposeHeaders:    []string{middleware.TraceIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", p.Health.Health)
	r.GET("/metrics", gin.WrapH(p.Metrics.Handler()))

	RegisterRoutes(r, p)

	return r
}

func RegisterRoutes(r *gin.Engine, p RouterParams) {
	api := r.Group("/api")

	api.POST("/auth/webhook",
		middleware.WebhookSignatureMiddleware(p.Config.ClerkWebhookSecret),
		p.Account.Webhook)

	api.POST("/cron/daily-billing",
		middleware.CronSecretMiddleware(p.Config.CronSecret),
		p.Cron.DailyBilling)

	authed := api.Group("",
		middleware.SessionAuthMiddleware(p.Verifier),
		middleware.ResolveUserMiddleware(p.Accounts))

	subscriptionGroup := authed.Group("/subscription")
	subscriptionGroup.GET("/status", p.Subscription.GetStatus)
	subscriptionGroup.POST("/create", p.Subscription.Create)
	subscriptionGroup.POST("/cancel", p.Subscription.Cancel)
	subscriptionGroup.POST("/reactivate", p.Subscription.Reactivate)

	paymentGroup := authed.Group("/payments")
	paymentGroup.POST("/confirm", p.Payment.ConfirmPayment)

	testGroup := authed.Group("/test")
	testGroup.POST("/create", p.Test.Create)
	testGroup.POST("/init", p.Test.Init)
	testGroup.POST("/stream/:id", p.Test.Stream)
	testGroup.GET("/list", p.Test.List)
	testGroup.GET("/:id", p.Test.Get)
	testGroup.DELETE("/:id", p.Test.Delete)
}
