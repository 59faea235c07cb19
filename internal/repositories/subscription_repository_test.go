package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sajupia/internal/models/db_models"
	"sajupia/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReserveTestStopsAtZero(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	user, sub := testutil.SeedUser(t, db, db_models.Subscription{RemainingTests: 2})
	ctx := context.Background()

	ok, err := repo.ReserveTest(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ReserveTest(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ReserveTest(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, testutil.Reload(t, db, sub.ID).RemainingTests)

	require.NoError(t, repo.RefundTest(ctx, user.ID, db_models.PlanFree))
	assert.Equal(t, 1, testutil.Reload(t, db, sub.ID).RemainingTests)

	require.NoError(t, repo.RefundTest(ctx, user.ID, db_models.PlanPro))
	assert.Equal(t, 1, testutil.Reload(t, db, sub.ID).RemainingTests)
}

func TestReserveTestConcurrentCallersNeverOverspend(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	user, sub := testutil.SeedUser(t, db, db_models.Subscription{RemainingTests: 3})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.ReserveTest(context.Background(), user.ID)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, wins)
	assert.Equal(t, 0, testutil.Reload(t, db, sub.ID).RemainingTests)
}

func TestUpdateLockedAppliesMutation(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	user, _ := testutil.SeedUser(t, db, testutil.ProSubscription("bk_1", 5, day(2025, 3, 1)))
	ctx := context.Background()

	got, err := repo.UpdateLocked(ctx, user.ID, func(sub *db_models.Subscription) (map[string]interface{}, error) {
		require.NotNil(t, sub)
		assert.False(t, sub.CancelAtPeriodEnd)
		return map[string]interface{}{"cancel_at_period_end": true}, nil
	})
	require.NoError(t, err)
	assert.True(t, got.CancelAtPeriodEnd)

	sentinel := errors.New("refused")
	_, err = repo.UpdateLocked(ctx, user.ID, func(sub *db_models.Subscription) (map[string]interface{}, error) {
		return map[string]interface{}{"cancel_at_period_end": false}, sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	reloaded, err := repo.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CancelAtPeriodEnd, "a failed mutation writes nothing")
}

func TestUpdateLockedPassesNilForMissingRow(t *testing.T) {
	repo := NewSubscriptionRepository(testutil.NewDB(t))

	called := false
	got, err := repo.UpdateLocked(context.Background(), uuid.New(), func(sub *db_models.Subscription) (map[string]interface{}, error) {
		called = true
		assert.Nil(t, sub)
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Nil(t, got)
}

func TestUpsertProOverwritesFreeRow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	user, free := testutil.SeedUser(t, db, db_models.Subscription{RemainingTests: 1})

	next := day(2025, 2, 28)
	start := time.Date(2025, 1, 31, 3, 0, 0, 0, time.UTC)
	pro := &db_models.Subscription{
		UserID:             user.ID,
		Plan:               db_models.PlanPro,
		Status:             db_models.SubStatusActive,
		RemainingTests:     10,
		NextBillingDate:    &next,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &next,
	}
	require.NoError(t, repo.UpsertPro(context.Background(), pro))

	var count int64
	require.NoError(t, db.Model(&db_models.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got := testutil.Reload(t, db, free.ID)
	assert.Equal(t, db_models.PlanPro, got.Plan)
	assert.Equal(t, 10, got.RemainingTests)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, next.Equal(*got.NextBillingDate))
}

func TestListDueAndRenewAreIdempotentPerDate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	today := day(2025, 3, 15)

	due, dueSub := testutil.SeedUser(t, db, testutil.ProSubscription("bk_due", 0, today))
	testutil.SeedUser(t, db, testutil.ProSubscription("bk_later", 4, day(2025, 3, 16)))
	testutil.SeedUser(t, db, db_models.Subscription{RemainingTests: 3})

	subs, err := repo.ListDueForBilling(ctx, today)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, dueSub.ID, subs[0].ID)
	require.NotNil(t, subs[0].User)
	assert.Equal(t, due.Email, subs[0].User.Email)

	next := day(2025, 4, 15)
	renewed, err := repo.Renew(ctx, dueSub.ID, today, next, 10)
	require.NoError(t, err)
	assert.True(t, renewed)

	renewed, err = repo.Renew(ctx, dueSub.ID, today, next, 10)
	require.NoError(t, err)
	assert.False(t, renewed, "second renewal for the same date is a no-op")

	subs, err = repo.ListDueForBilling(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, subs)

	got := testutil.Reload(t, db, dueSub.ID)
	assert.Equal(t, 10, got.RemainingTests)
	assert.True(t, next.Equal(*got.NextBillingDate))
}

func TestDowngradeClearsProState(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSubscriptionRepository(db)
	_, sub := testutil.SeedUser(t, db, testutil.ProSubscription("bk_1", 7, day(2025, 3, 15)))

	require.NoError(t, repo.Downgrade(context.Background(), sub.ID))

	got := testutil.Reload(t, db, sub.ID)
	assert.Equal(t, db_models.PlanFree, got.Plan)
	assert.Nil(t, got.BillingKey)
	assert.Nil(t, got.NextBillingDate)
	assert.Nil(t, got.CurrentPeriodEnd)
	assert.Equal(t, 0, got.RemainingTests)
	assert.False(t, got.CancelAtPeriodEnd)
}
