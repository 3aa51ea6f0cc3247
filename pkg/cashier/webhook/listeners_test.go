package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/storage/memory"
)

// listener handlers never call FastSpring; a nil embedded gateway panics on use.
type noCallGateway struct {
	cashier.Gateway
}

func setupListeners(t *testing.T) (*Listeners, *memory.Storage, *cashier.Account) {
	t.Helper()
	store := memory.New()
	manager, err := cashier.NewManager(cashier.Config{
		Storage: store,
		Gateway: noCallGateway{},
	})
	require.NoError(t, err)

	account := &cashier.Account{
		Name:         "Bilal Gultekin",
		Email:        "bilal@example.com",
		FastspringID: "fsAccountID",
	}
	require.NoError(t, store.UpsertAccount(context.Background(), account))

	return NewListeners(manager, nil), store, account
}

func eventFromJSON(t *testing.T, raw string) Event {
	t.Helper()
	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func unixNoon(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Unix()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSubscriptionActivatedCreatesSubscriptionAndPeriods(t *testing.T) {
	listeners, store, account := setupListeners(t)
	ctx := context.Background()

	event := eventFromJSON(t, fmt.Sprintf(`{
		"id": "ev-1",
		"type": "subscription.activated",
		"data": {
			"id": "fsSubID",
			"state": "active",
			"currency": "USD",
			"quantity": 2,
			"intervalUnit": "month",
			"intervalLength": 1,
			"account": {"id": "fsAccountID"},
			"product": {"product": "starter-plan"},
			"tags": {"name": "main"},
			"instructions": [
				{"periodStartDateInSeconds": %d, "periodEndDateInSeconds": %d},
				{"periodStartDateInSeconds": null, "periodEndDateInSeconds": null}
			]
		}
	}`, unixNoon(2026, 8, 15), unixNoon(2026, 9, 14)))

	require.NoError(t, listeners.SubscriptionActivated(ctx, event))

	sub, err := store.SubscriptionByFastspringID(ctx, "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, account.ID, sub.OwnerID)
	assert.Equal(t, "main", sub.Name)
	assert.Equal(t, "starter-plan", sub.Plan)
	assert.Equal(t, cashier.StateActive, sub.State)
	assert.Equal(t, "USD", sub.Currency)
	assert.Equal(t, 2, sub.Quantity)
	assert.Equal(t, cashier.IntervalMonth, sub.IntervalUnit)
	assert.Equal(t, 1, sub.IntervalLength)

	period, err := store.PeriodCovering(ctx, sub.ID, cashier.PeriodFastspring, date(2026, 8, 20))
	require.NoError(t, err)
	assert.Equal(t, date(2026, 8, 15), period.StartDate)
	assert.Equal(t, date(2026, 9, 14), period.EndDate)

	// The null-boundary instruction was skipped, not stored.
	last, err := store.LastPeriod(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, period.ID, last.ID)

	// Redelivery converges on the same subscription.
	require.NoError(t, listeners.SubscriptionActivated(ctx, event))
	again, err := store.SubscriptionByFastspringID(ctx, "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
}

func TestSubscriptionActivatedDefaultsName(t *testing.T) {
	listeners, store, _ := setupListeners(t)
	ctx := context.Background()

	event := eventFromJSON(t, `{
		"id": "ev-1",
		"type": "subscription.activated",
		"data": {
			"id": "fsSubID",
			"state": "active",
			"account": {"id": "fsAccountID"},
			"product": {"product": "starter-plan"}
		}
	}`)

	require.NoError(t, listeners.SubscriptionActivated(ctx, event))

	sub, err := store.SubscriptionByFastspringID(ctx, "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.DefaultName, sub.Name)
}

func TestSubscriptionActivatedUnknownAccount(t *testing.T) {
	listeners, _, _ := setupListeners(t)

	event := eventFromJSON(t, `{
		"id": "ev-1",
		"type": "subscription.activated",
		"data": {"id": "fsSubID", "account": {"id": "stranger"}}
	}`)

	err := listeners.SubscriptionActivated(context.Background(), event)
	assert.ErrorIs(t, err, cashier.ErrNotFound)
}

func TestSubscriptionChargeCompleted(t *testing.T) {
	listeners, store, account := setupListeners(t)
	ctx := context.Background()

	sub := &cashier.Subscription{
		OwnerID:        account.ID,
		Name:           cashier.DefaultName,
		FastspringID:   "fsSubID",
		Plan:           "starter-plan",
		State:          cashier.StateOverdue,
		IntervalUnit:   cashier.IntervalMonth,
		IntervalLength: 1,
	}
	require.NoError(t, store.UpsertSubscription(ctx, sub))

	event := eventFromJSON(t, fmt.Sprintf(`{
		"id": "ev-1",
		"type": "subscription.charge.completed",
		"data": {
			"account": {"id": "fsAccountID"},
			"subscription": {
				"id": "fsSubID",
				"sequence": 3,
				"display": "Starter Plan",
				"product": "starter-plan",
				"nextInSeconds": %d
			},
			"order": {
				"id": "order-3",
				"invoiceUrl": "https://example.onfastspring.com/invoice/order-3",
				"total": 10.5,
				"tax": 0.5,
				"subtotal": 10,
				"discount": 0,
				"currency": "USD",
				"completed": true,
				"payment": {"type": "card"}
			}
		}
	}`, unixNoon(2026, 10, 1)))

	require.NoError(t, listeners.SubscriptionChargeCompleted(ctx, event))

	invoices, err := store.InvoicesByOwner(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	invoice := invoices[0]
	assert.Equal(t, "order-3", invoice.FastspringID)
	assert.Equal(t, cashier.InvoiceSubscription, invoice.Type)
	assert.Equal(t, 3, invoice.SubscriptionSequence)
	assert.Equal(t, 10.5, invoice.Total)
	assert.Equal(t, "card", invoice.PaymentType)
	assert.True(t, invoice.Completed)

	// Period ends the day before the next charge, starts one interval back.
	require.NotNil(t, invoice.PeriodEndDate)
	require.NotNil(t, invoice.PeriodStartDate)
	assert.Equal(t, date(2026, 9, 30), *invoice.PeriodEndDate)
	assert.Equal(t, date(2026, 8, 31), *invoice.PeriodStartDate)

	updated, err := store.SubscriptionByFastspringID(ctx, "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.StateActive, updated.State, "a completed charge clears overdue")

	// Redelivery does not duplicate the invoice.
	require.NoError(t, listeners.SubscriptionChargeCompleted(ctx, event))
	invoices, err = store.InvoicesByOwner(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestSubscriptionStateChanged(t *testing.T) {
	listeners, store, account := setupListeners(t)
	ctx := context.Background()

	sub := &cashier.Subscription{
		OwnerID:      account.ID,
		Name:         cashier.DefaultName,
		FastspringID: "fsSubID",
		Plan:         "starter-plan",
		State:        cashier.StateActive,
	}
	require.NoError(t, store.UpsertSubscription(ctx, sub))

	event := eventFromJSON(t, `{
		"id": "ev-1",
		"type": "subscription.deactivated",
		"data": {
			"id": "fsSubID",
			"state": "deactivated",
			"currency": "USD",
			"quantity": 1,
			"account": {"id": "fsAccountID"},
			"product": {"product": "starter-plan"}
		}
	}`)

	require.NoError(t, listeners.SubscriptionStateChanged(ctx, event))

	updated, err := store.SubscriptionByFastspringID(ctx, "fsSubID")
	require.NoError(t, err)
	assert.Equal(t, cashier.StateDeactivated, updated.State)
	assert.False(t, updated.Valid())
}

func TestSubscriptionStateChangedUnknownSubscription(t *testing.T) {
	listeners, _, _ := setupListeners(t)

	event := eventFromJSON(t, `{
		"id": "ev-1",
		"type": "subscription.canceled",
		"data": {"id": "stranger", "state": "canceled", "account": {"id": "fsAccountID"}}
	}`)

	err := listeners.SubscriptionStateChanged(context.Background(), event)
	assert.ErrorIs(t, err, cashier.ErrNotFound)
}

func TestOrderCompleted(t *testing.T) {
	listeners, store, account := setupListeners(t)
	ctx := context.Background()

	event := eventFromJSON(t, fmt.Sprintf(`{
		"id": "ev-1",
		"type": "order.completed",
		"data": {
			"id": "order-1",
			"invoiceUrl": "https://example.onfastspring.com/invoice/order-1",
			"total": 10.5,
			"tax": 0.5,
			"subtotal": 10,
			"discount": 0,
			"currency": "USD",
			"completed": true,
			"payment": {"type": "paypal"},
			"account": {"id": "fsAccountID"},
			"items": [
				{
					"subscription": {
						"sequence": 1,
						"display": "Starter Plan",
						"product": "starter-plan",
						"beginInSeconds": %d,
						"nextInSeconds": %d
					}
				}
			]
		}
	}`, unixNoon(2026, 8, 15), unixNoon(2026, 9, 15)))

	require.NoError(t, listeners.OrderCompleted(ctx, event))

	invoices, err := store.InvoicesByOwner(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	invoice := invoices[0]
	assert.Equal(t, "order-1", invoice.FastspringID)
	assert.Equal(t, "starter-plan", invoice.SubscriptionProduct)
	assert.Equal(t, "paypal", invoice.PaymentType)
	require.NotNil(t, invoice.PeriodStartDate)
	require.NotNil(t, invoice.PeriodEndDate)
	assert.Equal(t, date(2026, 8, 15), *invoice.PeriodStartDate)
	assert.Equal(t, date(2026, 9, 15), *invoice.PeriodEndDate)
}

func TestOrderCompletedWithoutItems(t *testing.T) {
	listeners, _, _ := setupListeners(t)

	event := eventFromJSON(t, `{
		"id": "ev-1",
		"type": "order.completed",
		"data": {"id": "order-1", "account": {"id": "fsAccountID"}, "items": []}
	}`)

	assert.Error(t, listeners.OrderCompleted(context.Background(), event))
}
