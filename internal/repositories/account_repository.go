package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
)

type UserRepository interface {
	FindByClerkID(ctx context.Context, clerkUserID string) (*db_models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*db_models.User, error)
	// CreateWithSubscription inserts the user and its initial subscription
	// atomically. A duplicate clerk id surfaces as gorm.ErrDuplicatedKey.
	CreateWithSubscription(ctx context.Context, user *db_models.User, sub *db_models.Subscription) error
	// DeleteCascade removes the user's tests, subscription and user row.
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (u *userRepository) FindByClerkID(ctx context.Context, clerkUserID string) (*db_models.User, error) {
	var user db_models.User
	err := u.db.WithContext(ctx).First(&user, "clerk_user_id = ?", clerkUserID).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (u *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*db_models.User, error) {
	var user db_models.User
	err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

func (u *userRepository) CreateWithSubscription(ctx context.Context, user *db_models.User, sub *db_models.Subscription) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Subscription").Create(user).Error; err != nil {
			return &CreateStepError{Step: StepUser, Err: err}
		}
		sub.UserID = user.ID
		if err := tx.Omit("User").Create(sub).Error; err != nil {
			return &CreateStepError{Step: StepSubscription, Err: err}
		}
		return nil
	})
}

func (u *userRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&db_models.Test{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&db_models.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&db_models.Payment{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&db_models.User{}).Error
	})
}

type CreateStep string

const (
	StepUser         CreateStep = "user"
	StepSubscription CreateStep = "subscription"
)

// CreateStepError records which insert of a multi-row create failed.
type CreateStepError struct {
	Step CreateStep
	Err  error
}

func (e *CreateStepError) Error() string {
	return "create " + string(e.Step) + ": " + e.Err.Error()
}

func (e *CreateStepError) Unwrap() error { return e.Err }
