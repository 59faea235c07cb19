package account_fx

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"sajupia/internal/config"
	"sajupia/internal/repositories"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

var Module = fx.Provide(
	provideUserRepo,
	provideSubscriptionRepo,
	provideUserDirectory,
	provideSessionVerifier,
	provideAccountService,
)

func provideUserRepo(db *gorm.DB) repositories.UserRepository {
	return repositories.NewUserRepository(db)
}

func provideSubscriptionRepo(db *gorm.DB) repositories.SubscriptionRepository {
	return repositories.NewSubscriptionRepository(db)
}

func provideUserDirectory(cfg config.Config) services.UserDirectory {
	return services.NewClerkClient(cfg.ClerkAPIURL, cfg.ClerkSecretKey)
}

func provideSessionVerifier(cfg config.Config) (utils.SessionVerifier, error) {
	return utils.NewSessionVerifier(cfg.ClerkIssuer, cfg.ClerkJWKSURL)
}

func provideAccountService(
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
	directory services.UserDirectory,
	gateway services.PaymentGateway,
	plan services.PlanConfig,
	log logrus.FieldLogger,
) services.AccountServiceInterface {
	return services.NewAccountService(userRepo, subRepo, directory, gateway, plan, log)
}
