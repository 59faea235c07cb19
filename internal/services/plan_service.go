package services

import (
	"time"

	"sajupia/internal/models/db_models"
	"sajupia/pkg/utils"
)

const (
	DefaultProPrice        int64 = 3900
	DefaultProMonthlyTests       = 10
	DefaultFreeSignupTests       = 3
)

// PlanConfig holds pricing, allowances and the billing calendar.
type PlanConfig struct {
	ProPrice        int64
	ProMonthlyTests int
	FreeSignupTests int
	Location        *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		ProPrice:        DefaultProPrice,
		ProMonthlyTests: DefaultProMonthlyTests,
		FreeSignupTests: DefaultFreeSignupTests,
		Location:        utils.KSTLocation(),
	}
}

func (p PlanConfig) withDefaults() PlanConfig {
	if p.ProPrice == 0 {
		p.ProPrice = DefaultProPrice
	}
	if p.ProMonthlyTests == 0 {
		p.ProMonthlyTests = DefaultProMonthlyTests
	}
	if p.FreeSignupTests == 0 {
		p.FreeSignupTests = DefaultFreeSignupTests
	}
	if p.Location == nil {
		p.Location = utils.KSTLocation()
	}
	if p.Clock == nil {
		p.Clock = time.Now
	}
	return p
}

func (p PlanConfig) now() time.Time {
	return p.Clock()
}

// today is the current billing calendar date.
func (p PlanConfig) today() time.Time {
	return utils.CalendarDate(p.now(), p.Location)
}

func (p PlanConfig) nextBillingDate() time.Time {
	return utils.AddMonths(p.today(), 1)
}

// newFreeSubscription is the row every new user starts with.
func (p PlanConfig) newFreeSubscription() *db_models.Subscription {
	return &db_models.Subscription{
		Plan:           db_models.PlanFree,
		Status:         db_models.SubStatusActive,
		RemainingTests: p.FreeSignupTests,
	}
}
