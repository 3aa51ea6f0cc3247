// Package gin provides Gin middleware for subscription gating and a mount
// helper for the FastSpring webhook endpoint.
package gin

import (
	"errors"
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/pkg/cashier/webhook"
)

// OwnerIDExtractor extracts the subscription owner id from a Gin context.
// Return empty string if the caller is not authenticated.
type OwnerIDExtractor func(c *gongin.Context) string

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
	OnUnauthorized func(c *gongin.Context)

	// OnUnsubscribed is called when the owner has no valid subscription
	// If nil, returns 402 Payment Required
	OnUnsubscribed func(c *gongin.Context)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c *gongin.Context, err error)
}

// Webhook mounts the FastSpring webhook server as a Gin handler:
//
//	router.POST("/fastspring/webhook", gin.Webhook(server))
func Webhook(server *webhook.Server) gongin.HandlerFunc {
	return gongin.WrapH(server)
}

// RequireSubscription creates a Gin middleware that only lets requests
// through when the owner holds a valid subscription.
func RequireSubscription(cfg Config) gongin.HandlerFunc {
	if cfg.Manager == nil {
		panic("cashier/gin: Config.Manager is required")
	}
	if cfg.GetOwnerID == nil {
		panic("cashier/gin: Config.GetOwnerID is required")
	}
	if cfg.SubscriptionName == "" {
		cfg.SubscriptionName = cashier.DefaultName
	}

	return func(c *gongin.Context) {
		ownerID := cfg.GetOwnerID(c)
		if ownerID == "" {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"error": "Unauthorized"})
			}
			c.Abort()
			return
		}

		sub, err := cfg.Manager.Subscription(c.Request.Context(), ownerID, cfg.SubscriptionName)
		if err != nil && !errors.Is(err, cashier.ErrNotFound) {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"error": "Internal Server Error"})
			}
			c.Abort()
			return
		}

		if sub == nil || !sub.Valid() {
			if cfg.OnUnsubscribed != nil {
				cfg.OnUnsubscribed(c)
			} else {
				c.JSON(http.StatusPaymentRequired, gongin.H{"error": "Payment Required"})
			}
			c.Abort()
			return
		}

		c.Next()
	}
}

// FromContext returns an OwnerIDExtractor that gets the owner id from Gin
// context values, as set by auth middleware via c.Set.
func FromContext(key string) OwnerIDExtractor {
	return func(c *gongin.Context) string {
		if val, exists := c.Get(key); exists {
			if str, ok := val.(string); ok {
				return str
			}
		}
		return ""
	}
}

// FromHeader returns an OwnerIDExtractor that gets the owner id from a header.
func FromHeader(headerName string) OwnerIDExtractor {
	return func(c *gongin.Context) string {
		return c.GetHeader(headerName)
	}
}
