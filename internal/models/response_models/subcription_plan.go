package response_models

import (
	"github.com/google/uuid"
	"sajupia/internal/models/db_models"
	"sajupia/pkg/utils"
)

type SubscriptionStatusResponse struct {
	UserID            uuid.UUID `json:"user_id"`
	Plan              string    `json:"plan"`
	Status            string    `json:"status"`
	RemainingTests    int       `json:"remaining_tests"`
	HasBillingKey     bool      `json:"has_billing_key"`
	NextBillingDate   string    `json:"next_billing_date,omitempty"`
	CurrentPeriodEnd  string    `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
}

func NewSubscriptionStatus(sub *db_models.Subscription) *SubscriptionStatusResponse {
	return &SubscriptionStatusResponse{
		UserID:            sub.UserID,
		Plan:              string(sub.Plan),
		Status:            string(sub.Status),
		RemainingTests:    sub.RemainingTests,
		HasBillingKey:     sub.HasBillingKey(),
		NextBillingDate:   utils.FormatDate(sub.NextBillingDate),
		CurrentPeriodEnd:  utils.FormatRFC3339KST(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

type PaymentConfirmationResponse struct {
	Success    bool   `json:"success"`
	PaymentKey string `json:"paymentKey"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
}

type BillingSummary struct {
	Date      string `json:"date"`
	Processed int    `json:"processed"`
	Success   int    `json:"success"`
	Failed    int    `json:"failed"`
	Skipped   bool   `json:"skipped,omitempty"`
}
