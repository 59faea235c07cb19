// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"sajupia/internal/models/db_models"
)

// NewDB opens a private in-memory SQLite database with the service schema.
// A single connection keeps every statement on the same database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&db_models.User{}, &db_models.Subscription{}, &db_models.Payment{}, &db_models.Test{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser inserts a user with sub as its subscription row.
func SeedUser(t testing.TB, db *gorm.DB, sub db_models.Subscription) (*db_models.User, *db_models.Subscription) {
	t.Helper()

	user := &db_models.User{
		ClerkUserID: "user_" + uuid.NewString()[:8],
		Email:       "saju@example.com",
	}
	if err := db.Omit("Subscription").Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	sub.UserID = user.ID
	if sub.Plan == "" {
		sub.Plan = db_models.PlanFree
	}
	if sub.Status == "" {
		sub.Status = db_models.SubStatusActive
	}
	if err := db.Omit("User").Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return user, &sub
}

// ProSubscription is an active pro row billed on next.
func ProSubscription(billingKey string, tests int, next time.Time) db_models.Subscription {
	start := next.AddDate(0, -1, 0)
	end := next
	sub := db_models.Subscription{
		Plan:               db_models.PlanPro,
		Status:             db_models.SubStatusActive,
		RemainingTests:     tests,
		NextBillingDate:    &next,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
	if billingKey != "" {
		sub.BillingKey = &billingKey
	}
	return sub
}

func Reload(t testing.TB, db *gorm.DB, id uuid.UUID) *db_models.Subscription {
	t.Helper()
	var sub db_models.Subscription
	if err := db.First(&sub, "id = ?", id).Error; err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	return &sub
}
