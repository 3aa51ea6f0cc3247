package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/storage/memory"
)

// noCallGateway panics on use: subscription gating must never hit FastSpring.
type noCallGateway struct {
	cashier.Gateway
}

func setupManager(t *testing.T) (*cashier.Manager, *memory.Storage) {
	t.Helper()
	store := memory.New()
	manager, err := cashier.NewManager(cashier.Config{
		Storage: store,
		Gateway: noCallGateway{},
	})
	require.NoError(t, err)
	return manager, store
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequireSubscriptionAllowsValidStates(t *testing.T) {
	manager, store := setupManager(t)
	ctx := context.Background()

	states := []cashier.State{
		cashier.StateTrial,
		cashier.StateActive,
		cashier.StateOverdue,
		cashier.StateCanceled,
	}
	for _, state := range states {
		sub := &cashier.Subscription{
			OwnerID: "owner-" + string(state),
			Name:    cashier.DefaultName,
			State:   state,
		}
		require.NoError(t, store.UpsertSubscription(ctx, sub))
	}

	middleware := RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromHeader("X-Owner-ID"),
	})
	handler := middleware(okHandler())

	for _, state := range states {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Owner-ID", "owner-"+string(state))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "state %s should pass", state)
	}
}

func TestRequireSubscriptionBlocksDeactivated(t *testing.T) {
	manager, store := setupManager(t)

	sub := &cashier.Subscription{
		OwnerID: "owner-1",
		Name:    cashier.DefaultName,
		State:   cashier.StateDeactivated,
	}
	require.NoError(t, store.UpsertSubscription(context.Background(), sub))

	handler := RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromHeader("X-Owner-ID"),
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Owner-ID", "owner-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestRequireSubscriptionBlocksMissingSubscription(t *testing.T) {
	manager, _ := setupManager(t)

	handler := RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromQuery("owner"),
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/?owner=nobody", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestRequireSubscriptionUnauthorized(t *testing.T) {
	manager, _ := setupManager(t)

	handler := RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromHeader("X-Owner-ID"),
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSubscriptionCustomHandlers(t *testing.T) {
	manager, _ := setupManager(t)

	handler := RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromHeader("X-Owner-ID"),
		OnUnsubscribed: func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/pricing", http.StatusFound)
		},
	})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Owner-ID", "owner-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/pricing", rec.Header().Get("Location"))
}
