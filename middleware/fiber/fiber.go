// Package fiber provides Fiber middleware for subscription gating and a
// mount helper for the FastSpring webhook endpoint.
package fiber

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/bgultekin/gocashier/pkg/cashier"
	"github.com/bgultekin/gocashier/pkg/cashier/webhook"
)

// OwnerIDExtractor extracts the subscription owner id from a Fiber context.
// Return empty string if the caller is not authenticated.
type OwnerIDExtractor func(c *fiber.Ctx) string

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
	OnUnauthorized func(c *fiber.Ctx) error

	// OnUnsubscribed is called when the owner has no valid subscription
	// If nil, returns 402 Payment Required
	OnUnsubscribed func(c *fiber.Ctx) error

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(c *fiber.Ctx, err error) error
}

// Webhook mounts the FastSpring webhook server as a Fiber handler:
//
//	app.Post("/fastspring/webhook", fiber.Webhook(server))
func Webhook(server *webhook.Server) fiber.Handler {
	return adaptor.HTTPHandler(server)
}

// RequireSubscription creates a Fiber middleware that only lets requests
// through when the owner holds a valid subscription.
func RequireSubscription(cfg Config) fiber.Handler {
	if cfg.Manager == nil {
		panic("cashier/fiber: Config.Manager is required")
	}
	if cfg.GetOwnerID == nil {
		panic("cashier/fiber: Config.GetOwnerID is required")
	}
	if cfg.SubscriptionName == "" {
		cfg.SubscriptionName = cashier.DefaultName
	}

	return func(c *fiber.Ctx) error {
		ownerID := cfg.GetOwnerID(c)
		if ownerID == "" {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}

		sub, err := cfg.Manager.Subscription(c.UserContext(), ownerID, cfg.SubscriptionName)
		if err != nil && !errors.Is(err, cashier.ErrNotFound) {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		}

		if sub == nil || !sub.Valid() {
			if cfg.OnUnsubscribed != nil {
				return cfg.OnUnsubscribed(c)
			}
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "Payment Required"})
		}

		return c.Next()
	}
}

// FromLocals returns an OwnerIDExtractor that gets the owner id from Fiber
// locals, as set by auth middleware via c.Locals.
func FromLocals(key string) OwnerIDExtractor {
	return func(c *fiber.Ctx) string {
		if str, ok := c.Locals(key).(string); ok {
			return str
		}
		return ""
	}
}

// FromHeader returns an OwnerIDExtractor that gets the owner id from a header.
func FromHeader(headerName string) OwnerIDExtractor {
	return func(c *fiber.Ctx) string {
		return c.Get(headerName)
	}
}
