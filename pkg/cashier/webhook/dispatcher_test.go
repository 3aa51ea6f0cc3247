package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

func TestDispatchInvokesHandlersInOrder(t *testing.T) {
	registry := NewRegistry()
	var order []string
	registry.Register("any", func(context.Context, Event) error {
		order = append(order, "global")
		return nil
	})
	registry.Register("subscription any", func(context.Context, Event) error {
		order = append(order, "category")
		return nil
	})
	registry.RegisterActivity("subscription.activated", func(context.Context, Event) error {
		order = append(order, "activity")
		return nil
	})

	dispatcher := NewDispatcher(registry, nil, nil)
	report := dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-1", Type: "subscription.activated"},
	})

	assert.Equal(t, []string{"global", "category", "activity"}, order)
	assert.Equal(t, []string{"ev-1"}, report.Acknowledged)
	assert.Empty(t, report.Failed)
}

func TestDispatchGlobalHandlerIsOptional(t *testing.T) {
	registry := NewRegistry()
	registry.Register("order any", nopHandler)
	registry.RegisterActivity("order.completed", nopHandler)

	dispatcher := NewDispatcher(registry, nil, nil)
	report := dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-1", Type: "order.completed"},
	})
	assert.Equal(t, []string{"ev-1"}, report.Acknowledged)
}

func TestDispatchUnknownEvents(t *testing.T) {
	registry := NewRegistry()
	registry.Register("subscription any", nopHandler)
	registry.RegisterActivity("subscription.activated", nopHandler)

	dispatcher := NewDispatcher(registry, nil, nil)

	// Missing activity handler.
	report := dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-1", Type: "subscription.deactivated"},
	})
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, cashier.ErrUnknownEvent)

	// Missing category handler, even with an activity handler bound.
	registry.RegisterActivity("order.completed", nopHandler)
	report = dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-2", Type: "order.completed"},
	})
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, cashier.ErrUnknownEvent)
}

func TestDispatchIsolatesFailuresPerEvent(t *testing.T) {
	registry := NewRegistry()
	registry.Register("subscription any", nopHandler)
	handlerErr := errors.New("storage offline")
	registry.RegisterActivity("subscription.activated", func(_ context.Context, event Event) error {
		if event.ID == "ev-2" {
			return handlerErr
		}
		return nil
	})

	dispatcher := NewDispatcher(registry, nil, nil)
	report := dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-1", Type: "subscription.activated"},
		{ID: "ev-2", Type: "subscription.activated"},
		{ID: "ev-3", Type: "subscription.activated"},
	})

	assert.Equal(t, []string{"ev-1", "ev-3"}, report.Acknowledged, "failures do not block later events")
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "ev-2", report.Failed[0].EventID)
	assert.ErrorIs(t, report.Failed[0].Err, handlerErr)
}

func TestDispatchFailedGlobalHandlerSkipsEvent(t *testing.T) {
	registry := NewRegistry()
	globalErr := errors.New("audit sink down")
	registry.Register("any", func(context.Context, Event) error { return globalErr })
	var activityCalled bool
	registry.Register("subscription any", nopHandler)
	registry.RegisterActivity("subscription.activated", func(context.Context, Event) error {
		activityCalled = true
		return nil
	})

	dispatcher := NewDispatcher(registry, nil, nil)
	report := dispatcher.Dispatch(context.Background(), []Event{
		{ID: "ev-1", Type: "subscription.activated"},
	})

	assert.Empty(t, report.Acknowledged)
	assert.False(t, activityCalled, "activity handler must not run after a failed global handler")
}
