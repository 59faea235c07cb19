package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"sajupia/internal/models/db_models"
)

// SubscriptionMutation inspects a locked row and returns the columns to
// update. Returning an error aborts the transaction; returning no updates
// commits without writing.
type SubscriptionMutation func(sub *db_models.Subscription) (map[string]interface{}, error)

type SubscriptionRepository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*db_models.Subscription, error)
	// UpdateLocked runs fn against the user's row under SELECT ... FOR UPDATE.
	// A missing row is passed to fn as nil.
	UpdateLocked(ctx context.Context, userID uuid.UUID, fn SubscriptionMutation) (*db_models.Subscription, error)
	// ReserveTest atomically takes one unit when remaining_tests > 0.
	ReserveTest(ctx context.Context, userID uuid.UUID) (bool, error)
	// RefundTest returns one unit only while the row is still on plan, so a
	// downgrade that zeroed the balance in the meantime is not undone.
	RefundTest(ctx context.Context, userID uuid.UUID, plan db_models.Plan) error
	// UpsertPro creates or overwrites the user's row as an active pro plan.
	UpsertPro(ctx context.Context, sub *db_models.Subscription) error
	ListDueForBilling(ctx context.Context, date time.Time) ([]db_models.Subscription, error)
	// Renew refills tests and advances next_billing_date only while the row
	// is still due on date, so a repeated run cannot renew twice.
	Renew(ctx context.Context, id uuid.UUID, date, next time.Time, tests int) (bool, error)
	Downgrade(ctx context.Context, id uuid.UUID) error
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{
		db: db,
	}
}

func (s *subscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*db_models.Subscription, error) {
	var sub db_models.Subscription
	err := s.db.WithContext(ctx).First(&sub, "user_id = ?", userID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (s *subscriptionRepository) UpdateLocked(ctx context.Context, userID uuid.UUID, fn SubscriptionMutation) (*db_models.Subscription, error) {
	var result *db_models.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub db_models.Subscription
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&sub, "user_id = ?", userID).Error

		var current *db_models.Subscription
		switch {
		case err == nil:
			current = &sub
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		updates, err := fn(current)
		if err != nil {
			return err
		}
		if current == nil || len(updates) == 0 {
			result = current
			return nil
		}

		if err := tx.Model(current).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(current, "id = ?", current.ID).Error; err != nil {
			return err
		}
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *subscriptionRepository) ReserveTest(ctx context.Context, userID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("user_id = ? AND remaining_tests > 0", userID).
		Updates(map[string]interface{}{
			"remaining_tests": gorm.Expr("remaining_tests - 1"),
			"updated_at":      time.Now().Unix(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *subscriptionRepository) RefundTest(ctx context.Context, userID uuid.UUID, plan db_models.Plan) error {
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("user_id = ? AND plan = ?", userID, plan).
		Updates(map[string]interface{}{
			"remaining_tests": gorm.Expr("remaining_tests + 1"),
			"updated_at":      time.Now().Unix(),
		}).Error
}

func (s *subscriptionRepository) UpsertPro(ctx context.Context, sub *db_models.Subscription) error {
	return s.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan",
				"status",
				"remaining_tests",
				"next_billing_date",
				"current_period_start",
				"current_period_end",
				"cancel_at_period_end",
				"updated_at",
			}),
		}).
		Create(sub).Error
}

func (s *subscriptionRepository) ListDueForBilling(ctx context.Context, date time.Time) ([]db_models.Subscription, error) {
	var subs []db_models.Subscription
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("plan = ? AND next_billing_date = ?", db_models.PlanPro, date).
		Order("created_at ASC").
		Find(&subs).Error
	return subs, err
}

func (s *subscriptionRepository) Renew(ctx context.Context, id uuid.UUID, date, next time.Time, tests int) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ? AND plan = ? AND next_billing_date = ?", id, db_models.PlanPro, date).
		Updates(map[string]interface{}{
			"remaining_tests":   tests,
			"next_billing_date": next,
			"updated_at":        time.Now().Unix(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *subscriptionRepository) Downgrade(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&db_models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"plan":                 db_models.PlanFree,
			"billing_key":          nil,
			"next_billing_date":    nil,
			"current_period_start": nil,
			"current_period_end":   nil,
			"remaining_tests":      0,
			"cancel_at_period_end": false,
			"updated_at":           time.Now().Unix(),
		}).Error
}
