package billing_fx

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/internal/config"
	"sajupia/internal/repositories"
	"sajupia/internal/services"
	mem "sajupia/pkg/memcache"
	"sajupia/pkg/observability"
)

var Module = fx.Provide(provideBillingService)

// Scheduler runs the daily billing pass in-process when enabled.
var Scheduler = fx.Invoke(startScheduler)

func provideBillingService(
	subRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	gateway services.PaymentGateway,
	notifier services.BillingNotifier,
	leases mem.LeaseStore,
	plan services.PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) services.BillingService {
	return services.NewBillingService(subRepo, paymentRepo, gateway, notifier, leases, plan, log, metrics)
}

func startScheduler(lc fx.Lifecycle, cfg config.Config, billing services.BillingService, log logrus.FieldLogger) error {
	if !cfg.BillingCronEnabled {
		log.Info("in-process billing scheduler disabled")
		return nil
	}

	c := cron.New(cron.WithLocation(cfg.Location()))
	_, err := c.AddFunc(cfg.BillingCronSchedule, func() {
		summary, err := billing.ProcessDailyBilling(context.Background())
		if err != nil {
			log.WithError(err).Error("scheduled billing failed")
			return
		}
		log.WithField("summary", summary).Info("scheduled billing finished")
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			log.WithField("schedule", cfg.BillingCronSchedule).Info("billing scheduler started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}
