package api

import (
	"fmt"
	"net/http"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Config holds configuration for the billing status handler.
type Config struct {
	// Manager is the cashier manager instance (required).
	Manager *cashier.Manager

	// GetOwnerID extracts the billable owner id from the request (required).
	// Same pattern as the middleware packages.
	GetOwnerID func(*http.Request) string

	// SubscriptionName is the subscription slot to report on. Defaults to
	// cashier.DefaultName.
	SubscriptionName string

	// IncludePeriod controls whether GetSubscription resolves the current
	// billing period. Resolving may create the period (and, for FastSpring
	// subscriptions, call the gateway) when it does not exist yet.
	IncludePeriod bool

	// OnError handles errors. If nil, a JSON error body with the given
	// status is written.
	OnError func(http.ResponseWriter, *http.Request, error, int)

	// Logger is optional; defaults to a no-op.
	Logger cashier.Logger
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Manager == nil {
		return fmt.Errorf("manager is required")
	}
	if c.GetOwnerID == nil {
		return fmt.Errorf("GetOwnerID is required")
	}
	return nil
}
