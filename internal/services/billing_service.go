package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/repositories"
	mem "sajupia/pkg/memcache"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

const (
	billingLeasePrefix = "billing:"
	billingLeaseTTL    = 30 * time.Minute
)

type billingOutcome string

const (
	outcomeRenewed billingOutcome = "renewed"
	outcomeExpired billingOutcome = "expired"
	outcomeFailed  billingOutcome = "failed"
)

type BillingService interface {
	// ProcessDailyBilling settles every pro subscription due today. Running it
	// again on the same date finds nothing left to do.
	ProcessDailyBilling(ctx context.Context) (*response_models.BillingSummary, error)
}

type billingService struct {
	subRepo  repositories.SubscriptionRepository
	payments *paymentRecorder
	gateway  PaymentGateway
	notifier BillingNotifier
	leases   mem.LeaseStore
	plan     PlanConfig
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

func NewBillingService(
	subRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	gateway PaymentGateway,
	notifier BillingNotifier,
	leases mem.LeaseStore,
	plan PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) BillingService {
	return &billingService{
		subRepo:  subRepo,
		payments: newPaymentRecorder(paymentRepo, log, metrics),
		gateway:  gateway,
		notifier: notifier,
		leases:   leases,
		plan:     plan.withDefaults(),
		log:      log.WithField("component", "billing"),
		metrics:  metrics,
	}
}

func (s *billingService) ProcessDailyBilling(ctx context.Context) (*response_models.BillingSummary, error) {
	started := time.Now()
	today := s.plan.today()
	summary := &response_models.BillingSummary{Date: today.Format(time.DateOnly)}
	log := s.log.WithField("billing_date", summary.Date)

	leaseKey := billingLeasePrefix + summary.Date
	token, ok, err := s.leases.Acquire(ctx, leaseKey, billingLeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire billing lease: %w", err)
	}
	if !ok {
		log.Info("billing run already in progress, skipping")
		summary.Skipped = true
		return summary, nil
	}
	defer func() {
		if err := s.leases.Release(context.WithoutCancel(ctx), leaseKey, token); err != nil {
			log.WithError(err).Warn("failed to release billing lease")
		}
	}()

	due, err := s.subRepo.ListDueForBilling(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	for i := range due {
		sub := &due[i]
		summary.Processed++

		outcome := s.processOne(ctx, sub, today)
		s.metrics.BillingOutcomesTotal.WithLabelValues(string(outcome)).Inc()
		switch outcome {
		case outcomeRenewed:
			summary.Success++
		case outcomeFailed:
			summary.Failed++
		}
	}

	s.metrics.BillingRunDuration.Observe(time.Since(started).Seconds())
	log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"success":   summary.Success,
		"failed":    summary.Failed,
	}).Info("daily billing finished")
	return summary, nil
}

func (s *billingService) processOne(ctx context.Context, sub *db_models.Subscription, today time.Time) billingOutcome {
	email, customerKey := "", sub.UserID.String()
	if sub.User != nil {
		email = sub.User.Email
		customerKey = sub.User.ClerkUserID
	}
	log := s.log.WithFields(logrus.Fields{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
	})

	if sub.CancelAtPeriodEnd {
		s.deleteBillingKey(ctx, sub, log)
		if err := s.subRepo.Downgrade(ctx, sub.ID); err != nil {
			log.WithError(err).Error("failed to downgrade cancelled subscription")
			return outcomeFailed
		}
		log.Info("cancelled subscription expired")
		s.notify(log, func() error { return s.notifier.SendSubscriptionExpired(email) }, email)
		return outcomeExpired
	}

	if !sub.HasBillingKey() {
		// one-off checkout month with nothing to charge
		if err := s.subRepo.Downgrade(ctx, sub.ID); err != nil {
			log.WithError(err).Error("failed to downgrade subscription without billing key")
		} else {
			log.Warn("pro subscription without billing key downgraded")
		}
		s.notify(log, func() error { return s.notifier.SendSubscriptionExpired(email) }, email)
		return outcomeFailed
	}

	payment, err := s.gateway.ChargeBillingKey(ctx, ChargeRequest{
		BillingKey:    *sub.BillingKey,
		CustomerKey:   customerKey,
		CustomerEmail: email,
		Amount:        s.plan.ProPrice,
	})
	if err != nil {
		s.metrics.PaymentsTotal.WithLabelValues("renewal", "failed").Inc()
		log.WithError(err).Warn("renewal charge declined")
		s.deleteBillingKey(ctx, sub, log)
		if err := s.subRepo.Downgrade(ctx, sub.ID); err != nil {
			log.WithError(err).Error("failed to downgrade after declined renewal")
		}
		reason := tossMessage(err)
		s.notify(log, func() error { return s.notifier.SendRenewalFailed(email, reason) }, email)
		return outcomeFailed
	}
	s.metrics.PaymentsTotal.WithLabelValues("renewal", "success").Inc()

	renewed, err := s.subRepo.Renew(ctx, sub.ID, today, utils.AddMonths(today, 1), s.plan.ProMonthlyTests)
	s.payments.record(ctx, &sub.UserID, payment, s.plan.ProPrice)
	if err != nil || !renewed {
		log.WithError(err).WithFields(logrus.Fields{
			"payment_key":             payment.PaymentKey,
			"order_id":                payment.OrderID,
			"reconciliation_required": true,
		}).Error("renewal charged but subscription not advanced")
		return outcomeFailed
	}
	return outcomeRenewed
}

// deleteBillingKey precedes every local clear of billing_key. A failure
// leaves an orphan key at the processor and is only logged.
func (s *billingService) deleteBillingKey(ctx context.Context, sub *db_models.Subscription, log logrus.FieldLogger) {
	if !sub.HasBillingKey() {
		return
	}
	if err := s.gateway.DeleteBillingKey(ctx, *sub.BillingKey); err != nil {
		s.metrics.Compensation("delete_billing_key")
		log.WithError(err).WithField("compensation", "delete_billing_key").Error("failed to delete billing key")
	}
}

func (s *billingService) notify(log logrus.FieldLogger, send func() error, email string) {
	if email == "" || s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		s.metrics.Compensation("billing_email")
		log.WithError(err).Warn("billing email not sent")
	}
}
