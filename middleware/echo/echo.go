// Package echo provides Echo middleware for subscription gating and a mount
// helper for the FastSpring webhook endpoint.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/pkg/cashier/webhook"
)

// OwnerIDExtractor extracts the subscription owner id from an Echo context.
// Return empty string if the caller is not authenticated.
type OwnerIDExtractor func(c echo.Context) string

// Config holds middleware configuration.
type Config struct {
	// Manager is the cashier manager instance
	Manager *cashier.Manager

	// GetOwnerID extracts the owner id from context (required)
	GetOwnerID OwnerIDExtractor

	// SubscriptionName selects which subscription slot to check.
	// Default: cashier.DefaultName
	SubscriptionName string

	// OnUnauthorized is called when the caller is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error

	// OnUnsubscribed is called when the owner has no valid subscription
	// If nil, returns 402 Payment Required
	OnUnsubscribed func(c echo.Context) error

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c echo.Context, err error) error
}

// Webhook mounts the FastSpring webhook server as an Echo handler:
//
//	e.POST("/fastspring/webhook", echo.Webhook(server))
func Webhook(server *webhook.Server) echo.HandlerFunc {
	return echo.WrapHandler(server)
}

// RequireSubscription creates an Echo middleware that only lets requests
// through when the owner holds a valid subscription.
func RequireSubscription(cfg Config) echo.MiddlewareFunc {
	if cfg.Manager == nil {
		panic("cashier/echo: Config.Manager is required")
	}
	if cfg.GetOwnerID == nil {
		panic("cashier/echo: Config.GetOwnerID is required")
	}
	if cfg.SubscriptionName == "" {
		cfg.SubscriptionName = cashier.DefaultName
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID := cfg.GetOwnerID(c)
			if ownerID == "" {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			sub, err := cfg.Manager.Subscription(c.Request().Context(), ownerID, cfg.SubscriptionName)
			if err != nil && !errors.Is(err, cashier.ErrNotFound) {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
			}

			if sub == nil || !sub.Valid() {
				if cfg.OnUnsubscribed != nil {
					return cfg.OnUnsubscribed(c)
				}
				return c.JSON(http.StatusPaymentRequired, map[string]string{"error": "Payment Required"})
			}

			return next(c)
		}
	}
}

// FromContext returns an OwnerIDExtractor that gets the owner id from Echo
// context values, as set by auth middleware via c.Set.
func FromContext(key string) OwnerIDExtractor {
	return func(c echo.Context) string {
		if str, ok := c.Get(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an OwnerIDExtractor that gets the owner id from a header.
func FromHeader(headerName string) OwnerIDExtractor {
	return func(c echo.Context) string {
		return c.Request().Header.Get(headerName)
	}
}
