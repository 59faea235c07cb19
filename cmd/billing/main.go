// Command billing runs one daily billing pass and exits. It is meant for an
// external scheduler that cannot call the HTTP endpoint.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"sajupia/cmd/fx/account_fx"
	"sajupia/cmd/fx/billing_fx"
	"sajupia/cmd/fx/config_fx"
	"sajupia/cmd/fx/db_fx"
	"sajupia/cmd/fx/mail_fx"
	"sajupia/cmd/fx/memcache_fx"
	"sajupia/cmd/fx/metrics_fx"
	"sajupia/cmd/fx/payment_service_fx"
	"sajupia/internal/services"
)

func main() {
	var (
		billing services.BillingService
		log     logrus.FieldLogger
	)

	app := fx.New(
		config_fx.Module,
		metrics_fx.Module,
		db_fx.Module,
		memcache_fx.Module,
		account_fx.Module,
		payment_service_fx.Module,
		mail_fx.Module,
		billing_fx.Module,
		fx.Populate(&billing, &log),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("failed to start")
	}

	summary, runErr := billing.ProcessDailyBilling(context.Background())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("shutdown failed")
	}

	if runErr != nil {
		log.WithError(runErr).Fatal("daily billing failed")
	}
	log.WithFields(logrus.Fields{
		"date":      summary.Date,
		"processed": summary.Processed,
		"success":   summary.Success,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	}).Info("daily billing finished")
}
