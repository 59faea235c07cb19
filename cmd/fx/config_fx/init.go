package config_fx

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/internal/config"
	"sajupia/internal/services"
	"sajupia/pkg/utils"
)

var Module = fx.Provide(
	config.Load,
	provideLogger,
	provideFieldLogger,
	providePlanConfig,
	provideAIConfig,
)

func provideLogger(cfg config.Config) *logrus.Logger {
	return utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

func provideFieldLogger(log *logrus.Logger) logrus.FieldLogger {
	return log
}

func providePlanConfig(cfg config.Config) services.PlanConfig {
	return services.PlanConfig{
		ProPrice:        cfg.ProPrice,
		ProMonthlyTests: cfg.ProMonthlyTests,
		FreeSignupTests: cfg.FreeSignupTests,
		Location:        cfg.Location(),
		Clock:           time.Now,
	}
}

func provideAIConfig(cfg config.Config) services.AIConfig {
	return services.AIConfig{
		ProModel:      cfg.GeminiModelPro,
		FreeModel:     cfg.GeminiModelFree,
		FallbackModel: cfg.OpenAIModel,
		Timeout:       cfg.AITimeout,
	}
}
