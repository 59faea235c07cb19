package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
	"sajupia/internal/models/request_models"
	"sajupia/internal/repositories"
	"sajupia/pkg/utils"
)

const (
	EventUserCreated = "user.created"
	EventUserDeleted = "user.deleted"
)

type AccountServiceInterface interface {
	// GetOrCreateUser resolves a session subject to a local user, creating the
	// user and a free subscription on first sight.
	GetOrCreateUser(ctx context.Context, clerkUserID, emailHint string) (*db_models.User, error)
	HandleWebhookEvent(ctx context.Context, event request_models.ClerkWebhookEvent) error
}

type AccountService struct {
	userRepo  repositories.UserRepository
	subRepo   repositories.SubscriptionRepository
	directory UserDirectory
	gateway   PaymentGateway
	plan      PlanConfig
	log       logrus.FieldLogger
}

func NewAccountService(
	userRepo repositories.UserRepository,
	subRepo repositories.SubscriptionRepository,
	directory UserDirectory,
	gateway PaymentGateway,
	plan PlanConfig,
	log logrus.FieldLogger,
) AccountServiceInterface {
	return &AccountService{
		userRepo:  userRepo,
		subRepo:   subRepo,
		directory: directory,
		gateway:   gateway,
		plan:      plan.withDefaults(),
		log:       log.WithField("component", "account"),
	}
}

func (a *AccountService) GetOrCreateUser(ctx context.Context, clerkUserID, emailHint string) (*db_models.User, error) {
	user, err := a.userRepo.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	email := emailHint
	if email == "" && a.directory != nil {
		email, err = a.directory.PrimaryEmail(ctx, clerkUserID)
		if err != nil {
			a.log.WithError(err).WithField("clerk_user_id", clerkUserID).Error("failed to fetch user profile")
			return nil, utils.ErrUserCreateFailed
		}
	}
	if email == "" {
		return nil, utils.ErrEmailMissing
	}

	return a.createUser(ctx, clerkUserID, email)
}

// createUser inserts the user with its free subscription. Losing a race to a
// concurrent create returns the winner's row.
func (a *AccountService) createUser(ctx context.Context, clerkUserID, email string) (*db_models.User, error) {
	user := &db_models.User{ClerkUserID: clerkUserID, Email: email}
	err := a.userRepo.CreateWithSubscription(ctx, user, a.plan.newFreeSubscription())
	if err == nil {
		a.log.WithField("user_id", user.ID).Info("user created")
		return user, nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, findErr := a.userRepo.FindByClerkID(ctx, clerkUserID)
		if findErr == nil && existing != nil {
			return existing, nil
		}
	}

	a.log.WithError(err).WithField("clerk_user_id", clerkUserID).Error("failed to create user")
	var stepErr *repositories.CreateStepError
	if errors.As(err, &stepErr) && stepErr.Step == repositories.StepSubscription {
		return nil, utils.ErrSubCreateFailed
	}
	return nil, utils.ErrUserCreateFailed
}

func (a *AccountService) HandleWebhookEvent(ctx context.Context, event request_models.ClerkWebhookEvent) error {
	switch event.Type {
	case EventUserCreated:
		var data request_models.ClerkUserData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
			return utils.ErrInvalidRequest.WithMessage("invalid user payload")
		}
		email := data.PrimaryEmail()
		if email == "" {
			return utils.ErrEmailMissing
		}
		existing, err := a.userRepo.FindByClerkID(ctx, data.ID)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if existing != nil {
			return nil
		}
		_, err = a.createUser(ctx, data.ID, email)
		return err

	case EventUserDeleted:
		var data request_models.ClerkDeletedData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ID == "" {
			return utils.ErrInvalidRequest.WithMessage("invalid user payload")
		}
		return a.deleteUser(ctx, data.ID)

	default:
		a.log.WithField("event_type", event.Type).Debug("ignoring webhook event")
		return nil
	}
}

// deleteUser removes the processor billing key first, then all local rows.
func (a *AccountService) deleteUser(ctx context.Context, clerkUserID string) error {
	user, err := a.userRepo.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil
	}
	log := a.log.WithField("user_id", user.ID)

	sub, err := a.subRepo.FindByUserID(ctx, user.ID)
	if err != nil {
		log.WithError(err).Warn("failed to load subscription before delete")
	}
	if sub != nil && sub.HasBillingKey() && a.gateway != nil {
		if err := a.gateway.DeleteBillingKey(ctx, *sub.BillingKey); err != nil {
			log.WithError(err).WithField("compensation", "delete_billing_key").Error("failed to delete billing key")
		}
	}

	if err := a.userRepo.DeleteCascade(ctx, user.ID); err != nil {
		log.WithError(err).Error("failed to delete user")
		return utils.ErrUserDeleteFailed
	}
	log.Info("user deleted")
	return nil
}
