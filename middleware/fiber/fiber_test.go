package fiber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/storage/memory"
)

type noCallGateway struct {
	cashier.Gateway
}

func TestRequireSubscription(t *testing.T) {
	store := memory.New()
	manager, err := cashier.NewManager(cashier.Config{
		Storage: store,
		Gateway: noCallGateway{},
	})
	require.NoError(t, err)

	require.NoError(t, store.UpsertSubscription(context.Background(), &cashier.Subscription{
		OwnerID: "owner-1",
		Name:    cashier.DefaultName,
		State:   cashier.StateActive,
	}))

	app := fiber.New()
	app.Get("/protected", RequireSubscription(Config{
		Manager:    manager,
		GetOwnerID: FromHeader("X-Owner-ID"),
	}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Owner-ID", "owner-1")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Owner-ID", "nobody")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}
