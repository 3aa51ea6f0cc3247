package cashier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/storage/memory"
)

func fastspringSubWithPeriod(t *testing.T, store *memory.Storage, state cashier.State, today time.Time) *cashier.Subscription {
	t.Helper()
	ctx := context.Background()

	sub := &cashier.Subscription{
		OwnerID:      "owner-1",
		Name:         cashier.DefaultName,
		FastspringID: "fsSubID",
		Plan:         "starter",
		State:        state,
	}
	require.NoError(t, store.UpsertSubscription(ctx, sub))

	_, err := store.FirstOrCreatePeriod(ctx, &cashier.SubscriptionPeriod{
		SubscriptionID: sub.ID,
		Type:           cashier.PeriodFastspring,
		StartDate:      today.AddDate(0, 0, -10),
		EndDate:        today.AddDate(0, 0, 20),
	})
	require.NoError(t, err)
	return sub
}

func TestSwapRequiresFastspringSubscription(t *testing.T) {
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, day(2026, 8, 29))
	sub := localSub(t, store, cashier.IntervalMonth, 1)

	err := manager.Swap(context.Background(), sub, "pro", false, 1, nil)
	assert.ErrorIs(t, err, cashier.ErrInvalidConfiguration)
	assert.Zero(t, gateway.totalCalls())
}

func TestSwapScheduledForPeriodEnd(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateActive, today)

	require.NoError(t, manager.Swap(context.Background(), sub, "pro", false, 1, nil))

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, "starter", stored.Plan, "plan does not change until the period ends")
	assert.Equal(t, "pro", stored.SwapTo)
	require.NotNil(t, stored.SwapAt)
	assert.Equal(t, today.AddDate(0, 0, 20), *stored.SwapAt)
	assert.Equal(t, 1, gateway.callCount("SwapSubscription"))
}

func TestSwapProratedOnTrialDropsPeriod(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateTrial, today)

	require.NoError(t, manager.Swap(context.Background(), sub, "pro", true, 1, nil))

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, "pro", stored.Plan)
	assert.Empty(t, stored.SwapTo)
	assert.Nil(t, stored.SwapAt)

	// The trial period no longer matches the new plan and must be gone.
	_, err = store.PeriodCovering(context.Background(), sub.ID, cashier.PeriodFastspring, today)
	assert.ErrorIs(t, err, cashier.ErrNotFound)
}

func TestSwapRejectedByGatewayLeavesStateUntouched(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{subscriptionResult: "error"}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateActive, today)

	err := manager.Swap(context.Background(), sub, "pro", false, 1, nil)
	assert.ErrorIs(t, err, cashier.ErrGatewayFailure)

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, "starter", stored.Plan)
	assert.Empty(t, stored.SwapTo)
	assert.Nil(t, stored.SwapAt)
}

func TestCancelSchedulesDeactivation(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateActive, today)

	require.NoError(t, manager.Cancel(context.Background(), sub))

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.StateCanceled, stored.State)
	assert.True(t, stored.OnGracePeriod())
	require.NotNil(t, stored.SwapAt)
	assert.Equal(t, today.AddDate(0, 0, 20), *stored.SwapAt)
	assert.Equal(t, 1, gateway.callCount("CancelSubscription"))
}

func TestCancelNowDeactivatesImmediately(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateActive, today)

	require.NoError(t, manager.CancelNow(context.Background(), sub))

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.StateDeactivated, stored.State)
	assert.False(t, stored.Valid())
	assert.Equal(t, 1, gateway.callCount("CancelSubscription/immediate"))
}

func TestResumeOutsideGracePeriodFailsBeforeGateway(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateActive, today)

	err := manager.Resume(context.Background(), sub)
	assert.ErrorIs(t, err, cashier.ErrIllegalStateTransition)
	assert.Zero(t, gateway.totalCalls())
}

func TestResumeClearsScheduledDeactivation(t *testing.T) {
	today := day(2026, 8, 29)
	gateway := &fakeGateway{}
	manager, store := newManager(t, gateway, today)
	sub := fastspringSubWithPeriod(t, store, cashier.StateCanceled, today)
	deactivateAt := today.AddDate(0, 0, 20)
	sub.SwapAt = &deactivateAt
	require.NoError(t, store.UpsertSubscription(context.Background(), sub))

	require.NoError(t, manager.Resume(context.Background(), sub))

	stored, err := store.SubscriptionByFastspringID(context.Background(), "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.StateActive, stored.State)
	assert.Empty(t, stored.SwapTo)
	assert.Nil(t, stored.SwapAt)
	assert.Equal(t, 1, gateway.callCount("UncancelSubscription"))
}
