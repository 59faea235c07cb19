package mail_fx

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/internal/config"
	"sajupia/internal/services"
)

var Module = fx.Provide(provideMailService)

func provideMailService(cfg config.Config, log logrus.FieldLogger) services.BillingNotifier {
	return services.NewMailService(services.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   "Saju피아",
		UseSSL:     cfg.SMTPPort == 465,
		AppName:    "Saju피아",
		AppBaseURL: cfg.AppBaseURL,
	}, log)
}
