// Package http provides HTTP middleware that gates handlers behind a valid
// subscription.
package http

import (
	"errors"
	"net/http"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// OwnerIDExtractor extracts the subscription owner id from an HTTP request.
// Return empty string if the caller is not authenticated.
type OwnerIDExtractor func(r *http.Request) string

// Config holds middleware configuration.
type Config struct {
	// Manager is the cashier manager instance
	Manager *cashier.Manager

	// GetOwnerID extracts the owner id from the request (required)
	GetOwnerID OwnerIDExtractor

	// SubscriptionName selects which subscription slot to check.
	// Default: cashier.DefaultName
	SubscriptionName string

	// OnUnauthorized is called when the caller is not authenticated
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnUnsubscribed is called when the owner has no valid subscription
	// If nil, returns 402 Payment Required
	OnUnsubscribed func(w http.ResponseWriter, r *http.Request)

	// OnError is called when an internal error occurs
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// RequireSubscription creates an HTTP middleware that only lets requests
// through when the owner holds a valid subscription. Deactivated is the only
// state that blocks: trial, active, overdue and canceled subscriptions keep
// serving.
func RequireSubscription(config Config) func(http.Handler) http.Handler {
	if config.Manager == nil {
		panic("cashier/http: Config.Manager is required")
	}
	if config.GetOwnerID == nil {
		panic("cashier/http: Config.GetOwnerID is required")
	}
	if config.SubscriptionName == "" {
		config.SubscriptionName = cashier.DefaultName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := config.GetOwnerID(r)
			if ownerID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			sub, err := config.Manager.Subscription(r.Context(), ownerID, config.SubscriptionName)
			if err != nil && !errors.Is(err, cashier.ErrNotFound) {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
				return
			}

			if sub == nil || !sub.Valid() {
				if config.OnUnsubscribed != nil {
					config.OnUnsubscribed(w, r)
				} else {
					http.Error(w, "Payment Required", http.StatusPaymentRequired)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// FromHeader returns an OwnerIDExtractor that gets the owner id from a header.
func FromHeader(headerName string) OwnerIDExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns an OwnerIDExtractor that gets the owner id from a query
// parameter.
func FromQuery(queryName string) OwnerIDExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(queryName)
	}
}
