package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
	"sajupia/internal/testutil"
)

func TestCreateWithSubscription(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &db_models.User{ClerkUserID: "user_abc", Email: "a@example.com"}
	sub := &db_models.Subscription{Plan: db_models.PlanFree, Status: db_models.SubStatusActive, RemainingTests: 3}
	require.NoError(t, repo.CreateWithSubscription(ctx, user, sub))

	found, err := repo.FindByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	subs := NewSubscriptionRepository(db)
	gotSub, err := subs.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, gotSub)
	assert.Equal(t, 3, gotSub.RemainingTests)

	missing, err := repo.FindByClerkID(ctx, "user_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateWithSubscriptionDuplicateClerkID(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first := &db_models.User{ClerkUserID: "user_dup", Email: "a@example.com"}
	require.NoError(t, repo.CreateWithSubscription(ctx, first, &db_models.Subscription{Plan: db_models.PlanFree, Status: db_models.SubStatusActive}))

	second := &db_models.User{ClerkUserID: "user_dup", Email: "b@example.com"}
	err := repo.CreateWithSubscription(ctx, second, &db_models.Subscription{Plan: db_models.PlanFree, Status: db_models.SubStatusActive})
	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var stepErr *CreateStepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepUser, stepErr.Step)

	var users int64
	require.NoError(t, db.Model(&db_models.User{}).Count(&users).Error)
	assert.Equal(t, int64(1), users)
}

func TestDeleteCascadeKeepsPaymentsDetached(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()
	user, _ := testutil.SeedUser(t, db, db_models.Subscription{RemainingTests: 1})

	require.NoError(t, NewTestRepository(db).Insert(ctx, &db_models.Test{
		UserID: user.ID, Name: "홍길동", BirthDate: "1990-01-01", Gender: db_models.GenderMale,
	}))
	userID := user.ID
	require.NoError(t, NewPaymentRepository(db).Insert(ctx, &db_models.Payment{
		UserID: &userID, PaymentKey: "pk_1", OrderID: "order_1", Amount: 3900, Status: "DONE",
	}))

	require.NoError(t, repo.DeleteCascade(ctx, user.ID))

	gone, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var tests, subs int64
	db.Model(&db_models.Test{}).Count(&tests)
	db.Model(&db_models.Subscription{}).Count(&subs)
	assert.Zero(t, tests)
	assert.Zero(t, subs)

	var payment db_models.Payment
	require.NoError(t, db.First(&payment, "payment_key = ?", "pk_1").Error)
	assert.Nil(t, payment.UserID)
}
