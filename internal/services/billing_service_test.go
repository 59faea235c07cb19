package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"sajupia/internal/models/db_models"
	"sajupia/internal/repositories"
	"sajupia/internal/testutil"
	mem "sajupia/pkg/memcache"
)

type billingFixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	notifier *fakeNotifier
	leases   *mem.MemoryLeases
	svc      BillingService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &billingFixture{
		db:       db,
		gateway:  &fakeGateway{},
		notifier: &fakeNotifier{},
		leases:   mem.NewMemoryLeases(),
	}
	log, _ := newTestLogger()
	f.svc = NewBillingService(
		repositories.NewSubscriptionRepository(db),
		repositories.NewPaymentRepository(db),
		f.gateway,
		f.notifier,
		f.leases,
		fixedPlan(),
		log,
		newTestMetrics(),
	)
	return f
}

func TestDailyBillingRenewsDueSubscription(t *testing.T) {
	f := newBillingFixture(t)
	_, sub := testutil.SeedUser(t, f.db, testutil.ProSubscription("bk_due", 2, planToday))

	summary, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", summary.Date)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Success)
	assert.Zero(t, summary.Failed)

	got := testutil.Reload(t, f.db, sub.ID)
	assert.Equal(t, db_models.PlanPro, got.Plan)
	assert.Equal(t, 10, got.RemainingTests)
	assert.True(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC).Equal(*got.NextBillingDate))

	var payments int64
	f.db.Model(&db_models.Payment{}).Count(&payments)
	assert.Equal(t, int64(1), payments)
}

func TestDailyBillingTwiceChargesOnce(t *testing.T) {
	f := newBillingFixture(t)
	testutil.SeedUser(t, f.db, testutil.ProSubscription("bk_a", 0, planToday))
	testutil.SeedUser(t, f.db, testutil.ProSubscription("bk_b", 3, planToday))

	first, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Success)

	second, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Processed)
	assert.Equal(t, 2, f.gateway.chargeCount())
}

func TestDailyBillingExpiresCancelledWithoutCharging(t *testing.T) {
	f := newBillingFixture(t)
	pro := testutil.ProSubscription("bk_cancelled", 4, planToday)
	pro.CancelAtPeriodEnd = true
	user, sub := testutil.SeedUser(t, f.db, pro)

	summary, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.Success)
	assert.Zero(t, summary.Failed)

	assert.Zero(t, f.gateway.chargeCount())
	assert.Equal(t, []string{"bk_cancelled"}, f.gateway.deleted)

	got := testutil.Reload(t, f.db, sub.ID)
	assert.Equal(t, db_models.PlanFree, got.Plan)
	assert.Nil(t, got.BillingKey)
	assert.False(t, got.CancelAtPeriodEnd)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sentMail{kind: "expired", to: user.Email}, f.notifier.sent[0])
}

func TestDailyBillingDeclinedChargeDowngrades(t *testing.T) {
	f := newBillingFixture(t)
	f.gateway.chargeErr = &TossError{StatusCode: 400, Code: "NOT_ENOUGH_BALANCE", Message: "잔액이 부족합니다"}
	_, sub := testutil.SeedUser(t, f.db, testutil.ProSubscription("bk_broke", 1, planToday))

	summary, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	assert.Equal(t, []string{"bk_broke"}, f.gateway.deleted)
	got := testutil.Reload(t, f.db, sub.ID)
	assert.Equal(t, db_models.PlanFree, got.Plan)
	assert.Nil(t, got.BillingKey)
	assert.Equal(t, 0, got.RemainingTests)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "renewal_failed", f.notifier.sent[0].kind)
	assert.Equal(t, "잔액이 부족합니다", f.notifier.sent[0].reason)
}

func TestDailyBillingWithoutBillingKeyDowngrades(t *testing.T) {
	f := newBillingFixture(t)
	_, sub := testutil.SeedUser(t, f.db, testutil.ProSubscription("", 5, planToday))

	summary, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, f.gateway.chargeCount())
	assert.Empty(t, f.gateway.deleted)
	assert.Equal(t, db_models.PlanFree, testutil.Reload(t, f.db, sub.ID).Plan)
}

func TestDailyBillingSkipsWhileAnotherRunHoldsTheLease(t *testing.T) {
	f := newBillingFixture(t)
	testutil.SeedUser(t, f.db, testutil.ProSubscription("bk_due", 2, planToday))

	_, ok, err := f.leases.Acquire(context.Background(), "billing:2025-03-15", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	summary, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Zero(t, f.gateway.chargeCount())
}

func TestDailyBillingKeyDeleteFailureStillDowngrades(t *testing.T) {
	f := newBillingFixture(t)
	f.gateway.deleteErr = &TossError{StatusCode: 500, Message: "busy"}
	pro := testutil.ProSubscription("bk_cancelled", 4, planToday)
	pro.CancelAtPeriodEnd = true
	_, sub := testutil.SeedUser(t, f.db, pro)

	_, err := f.svc.ProcessDailyBilling(context.Background())
	require.NoError(t, err)
	assert.Equal(t, db_models.PlanFree, testutil.Reload(t, f.db, sub.ID).Plan)
}
