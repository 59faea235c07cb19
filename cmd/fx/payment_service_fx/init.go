package payment_service_fx

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"sajupia/internal/config"
	"sajupia/internal/repositories"
	"sajupia/internal/services"
	"sajupia/pkg/observability"
)

var Module = fx.Provide(
	provideTossGateway,
	providePaymentRepo,
	providePaymentService,
	provideSubscriptionService,
)

func provideTossGateway(cfg config.Config) (services.PaymentGateway, error) {
	return services.NewTossGateway(services.TossConfig{
		SecretKey: cfg.TossSecretKey,
		BaseURL:   cfg.TossBaseURL,
	})
}

func providePaymentRepo(db *gorm.DB) repositories.PaymentRepository {
	return repositories.NewPaymentRepository(db)
}

func providePaymentService(
	subRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	gateway services.PaymentGateway,
	plan services.PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) services.PaymentService {
	return services.NewPaymentService(subRepo, paymentRepo, gateway, plan, log, metrics)
}

func provideSubscriptionService(
	subRepo repositories.SubscriptionRepository,
	userRepo repositories.UserRepository,
	paymentRepo repositories.PaymentRepository,
	gateway services.PaymentGateway,
	plan services.PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) services.SubscriptionService {
	return services.NewSubscriptionService(subRepo, userRepo, paymentRepo, gateway, plan, log, metrics)
}
