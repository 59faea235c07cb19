package db_models

import (
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

type SubscriptionStatus string

const (
	SubStatusActive SubscriptionStatus = "active"
)

// Subscription is the per-user ledger row. NextBillingDate and the period
// bounds are nil for free users.
type Subscription struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	Plan           Plan               `gorm:"type:varchar(16);not null;default:free"`
	Status         SubscriptionStatus `gorm:"type:varchar(16);not null;default:active"`
	RemainingTests int                `gorm:"not null;default:0"`

	BillingKey         *string
	NextBillingDate    *time.Time `gorm:"type:date;index"`
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool `gorm:"not null;default:false"`

	User *User `gorm:"foreignKey:UserID"`
}

func (s *Subscription) IsPro() bool {
	return s.Plan == PlanPro
}

func (s *Subscription) HasBillingKey() bool {
	return s.BillingKey != nil && *s.BillingKey != ""
}
