package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/repositories"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

type SubscriptionService interface {
	GetStatus(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error)
	ActivatePro(ctx context.Context, userID uuid.UUID, billingKey string) (*response_models.SubscriptionStatusResponse, error)
	Cancel(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error)
	Reactivate(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error)
}

type subscriptionService struct {
	subRepo  repositories.SubscriptionRepository
	userRepo repositories.UserRepository
	payments *paymentRecorder
	gateway  PaymentGateway
	plan     PlanConfig
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

func NewSubscriptionService(
	subRepo repositories.SubscriptionRepository,
	userRepo repositories.UserRepository,
	paymentRepo repositories.PaymentRepository,
	gateway PaymentGateway,
	plan PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) SubscriptionService {
	return &subscriptionService{
		subRepo:  subRepo,
		userRepo: userRepo,
		payments: newPaymentRecorder(paymentRepo, log, metrics),
		gateway:  gateway,
		plan:     plan.withDefaults(),
		log:      log.WithField("component", "subscription"),
		metrics:  metrics,
	}
}

func (s *subscriptionService) GetStatus(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error) {
	sub, err := s.subRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, utils.ErrSubscriptionNotFound
	}
	return response_models.NewSubscriptionStatus(sub), nil
}

// ActivatePro charges the first month on billingKey and upgrades the row.
// The row stays locked from the plan check through the write, so concurrent
// activations for one user charge at most once.
func (s *subscriptionService) ActivatePro(ctx context.Context, userID uuid.UUID, billingKey string) (*response_models.SubscriptionStatusResponse, error) {
	if billingKey == "" {
		return nil, utils.ErrInvalidRequest.WithMessage("billing_key is required")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, utils.ErrSubscriptionNotFound
	}

	var charged *TossPayment
	sub, err := s.subRepo.UpdateLocked(ctx, userID, func(sub *db_models.Subscription) (map[string]interface{}, error) {
		if sub == nil {
			return nil, utils.ErrSubscriptionNotFound
		}
		if sub.IsPro() {
			return nil, utils.ErrAlreadyPro
		}

		payment, err := s.gateway.ChargeBillingKey(ctx, ChargeRequest{
			BillingKey:    billingKey,
			CustomerKey:   user.ClerkUserID,
			CustomerEmail: user.Email,
			Amount:        s.plan.ProPrice,
		})
		if err != nil {
			s.metrics.PaymentsTotal.WithLabelValues("activate", "failed").Inc()
			s.log.WithError(err).WithField("user_id", userID).Warn("first charge declined")
			return nil, utils.ErrPaymentFailed.WithMessage(tossMessage(err))
		}
		s.metrics.PaymentsTotal.WithLabelValues("activate", "success").Inc()
		charged = payment

		now := s.plan.now()
		periodEnd := utils.AddMonths(now, 1)
		return map[string]interface{}{
			"plan":                 db_models.PlanPro,
			"status":               db_models.SubStatusActive,
			"billing_key":          billingKey,
			"remaining_tests":      s.plan.ProMonthlyTests,
			"next_billing_date":    s.plan.nextBillingDate(),
			"current_period_start": now,
			"current_period_end":   periodEnd,
			"cancel_at_period_end": false,
		}, nil
	})
	if err != nil {
		if charged != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"user_id":                 userID,
				"payment_key":             charged.PaymentKey,
				"order_id":                charged.OrderID,
				"reconciliation_required": true,
			}).Error("charged but subscription upgrade failed")
			return nil, utils.ErrInternal
		}
		return nil, err
	}

	s.payments.record(ctx, &userID, charged, s.plan.ProPrice)
	return response_models.NewSubscriptionStatus(sub), nil
}

func (s *subscriptionService) Cancel(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error) {
	sub, err := s.subRepo.UpdateLocked(ctx, userID, func(sub *db_models.Subscription) (map[string]interface{}, error) {
		if sub == nil {
			return nil, utils.ErrSubscriptionNotFound
		}
		if !sub.IsPro() {
			return nil, utils.ErrNotPro
		}
		if sub.CancelAtPeriodEnd {
			return nil, utils.ErrAlreadyCancelled
		}
		return map[string]interface{}{"cancel_at_period_end": true}, nil
	})
	if err != nil {
		return nil, err
	}
	return response_models.NewSubscriptionStatus(sub), nil
}

// Reactivate clears a pending cancellation while the paid period is still
// running, that is while next_billing_date is after today.
func (s *subscriptionService) Reactivate(ctx context.Context, userID uuid.UUID) (*response_models.SubscriptionStatusResponse, error) {
	today := s.plan.today()
	sub, err := s.subRepo.UpdateLocked(ctx, userID, func(sub *db_models.Subscription) (map[string]interface{}, error) {
		if sub == nil {
			return nil, utils.ErrSubscriptionNotFound
		}
		if !sub.CancelAtPeriodEnd {
			return nil, utils.ErrNotCancelled
		}
		if sub.NextBillingDate == nil || !sub.NextBillingDate.After(today) {
			return nil, utils.ErrPeriodExpired
		}
		return map[string]interface{}{"cancel_at_period_end": false}, nil
	})
	if err != nil {
		return nil, err
	}
	return response_models.NewSubscriptionStatus(sub), nil
}
