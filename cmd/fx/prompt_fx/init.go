package prompt_fx

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"sajupia/internal/config"
	"sajupia/internal/repositories"
	"sajupia/internal/services"
	mem "sajupia/pkg/memcache"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

var Module = fx.Provide(
	ProvideAIProviders,
	ProvideTestRepo,
	ProvideTestService,
	ProvideStreamService,
)

// AIProviders are the completion backends in fallback order. Fallback is nil
// when no OpenAI key is configured.
type AIProviders struct {
	Primary  utils.TextGenerator
	Fallback utils.TextGenerator
}

func ProvideAIProviders(lc fx.Lifecycle, cfg config.Config, log logrus.FieldLogger) (AIProviders, error) {
	if cfg.GeminiAPIKey == "" {
		return AIProviders{}, errors.New("GEMINI_API_KEY is required")
	}

	gemini, err := utils.NewGeminiClient(context.Background(), cfg.GeminiAPIKey)
	if err != nil {
		return AIProviders{}, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return gemini.Close()
		},
	})

	providers := AIProviders{Primary: gemini}
	if cfg.OpenAIAPIKey != "" {
		providers.Fallback = utils.NewOpenAIClient(cfg.OpenAIAPIKey)
	} else {
		log.Warn("OPENAI_API_KEY not set, streaming runs without fallback")
	}
	return providers, nil
}

func ProvideTestRepo(db *gorm.DB) repositories.TestRepository {
	return repositories.NewTestRepository(db)
}

func ProvideTestService(
	subRepo repositories.SubscriptionRepository,
	testRepo repositories.TestRepository,
	providers AIProviders,
	ai services.AIConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) services.TestService {
	return services.NewTestService(subRepo, testRepo, providers.Primary, ai, log, metrics)
}

func ProvideStreamService(
	testRepo repositories.TestRepository,
	providers AIProviders,
	leases mem.LeaseStore,
	ai services.AIConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) services.StreamService {
	return services.NewStreamService(testRepo, providers.Primary, providers.Fallback, leases, ai, log, metrics)
}
