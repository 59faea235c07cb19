package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/request_models"
	"sajupia/internal/models/response_models"
	"sajupia/internal/repositories"
	"sajupia/pkg/observability"
	"sajupia/pkg/utils"
)

type PaymentService interface {
	// ConfirmPayment settles a hosted-checkout payment and grants one pro month.
	ConfirmPayment(ctx context.Context, userID uuid.UUID, req request_models.ConfirmPaymentRequest) (*response_models.PaymentConfirmationResponse, error)
}

type paymentService struct {
	subRepo  repositories.SubscriptionRepository
	payments *paymentRecorder
	gateway  PaymentGateway
	plan     PlanConfig
	log      logrus.FieldLogger
	metrics  *observability.Metrics
}

func NewPaymentService(
	subRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	gateway PaymentGateway,
	plan PlanConfig,
	log logrus.FieldLogger,
	metrics *observability.Metrics,
) PaymentService {
	return &paymentService{
		subRepo:  subRepo,
		payments: newPaymentRecorder(paymentRepo, log, metrics),
		gateway:  gateway,
		plan:     plan.withDefaults(),
		log:      log.WithField("component", "payment"),
		metrics:  metrics,
	}
}

func (p *paymentService) ConfirmPayment(ctx context.Context, userID uuid.UUID, req request_models.ConfirmPaymentRequest) (*response_models.PaymentConfirmationResponse, error) {
	if req.Amount != p.plan.ProPrice {
		return nil, utils.ErrAmountMismatch
	}

	payment, err := p.gateway.ConfirmPayment(ctx, req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		p.metrics.PaymentsTotal.WithLabelValues("confirm", "failed").Inc()
		p.log.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"order_id": req.OrderID,
		}).Warn("checkout confirmation rejected")
		return nil, utils.ErrTossAPI.WithMessage(tossMessage(err))
	}
	p.metrics.PaymentsTotal.WithLabelValues("confirm", "success").Inc()

	p.payments.record(ctx, &userID, payment, req.Amount)

	now := p.plan.now()
	next := p.plan.nextBillingDate()
	periodEnd := utils.AddMonths(now, 1)
	sub := &db_models.Subscription{
		UserID:             userID,
		Plan:               db_models.PlanPro,
		Status:             db_models.SubStatusActive,
		RemainingTests:     p.plan.ProMonthlyTests,
		NextBillingDate:    &next,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &periodEnd,
		CancelAtPeriodEnd:  false,
	}
	if err := p.subRepo.UpsertPro(ctx, sub); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"user_id":                 userID,
			"payment_key":             payment.PaymentKey,
			"order_id":                payment.OrderID,
			"reconciliation_required": true,
		}).Error("payment confirmed but subscription upsert failed")
		return nil, utils.ErrInternal
	}

	return &response_models.PaymentConfirmationResponse{
		Success:    true,
		PaymentKey: payment.PaymentKey,
		OrderID:    payment.OrderID,
		Status:     payment.Status,
	}, nil
}

// paymentRecorder appends Payment rows. Failures are logged and counted,
// never returned: the charge already happened.
type paymentRecorder struct {
	repo    repositories.PaymentRepository
	log     logrus.FieldLogger
	metrics *observability.Metrics
}

func newPaymentRecorder(repo repositories.PaymentRepository, log logrus.FieldLogger, metrics *observability.Metrics) *paymentRecorder {
	return &paymentRecorder{repo: repo, log: log, metrics: metrics}
}

func (r *paymentRecorder) record(ctx context.Context, userID *uuid.UUID, payment *TossPayment, amount int64) {
	if payment == nil {
		return
	}
	if payment.TotalAmount != 0 {
		amount = payment.TotalAmount
	}
	row := &db_models.Payment{
		UserID:     userID,
		PaymentKey: payment.PaymentKey,
		OrderID:    payment.OrderID,
		Amount:     amount,
		Status:     payment.Status,
		Method:     payment.Method,
		ApprovedAt: payment.ApprovedTime(),
	}
	if len(payment.Raw) > 0 {
		row.Receipt = datatypes.JSON(payment.Raw)
	}

	if err := r.repo.Insert(ctx, row); err != nil {
		r.metrics.Compensation("payment_record")
		r.log.WithError(err).WithFields(logrus.Fields{
			"payment_key":  payment.PaymentKey,
			"order_id":     payment.OrderID,
			"compensation": "payment_record",
		}).Error("failed to record payment")
	}
}
