package cashier

import (
	"context"
	"fmt"
	"time"
)

// Gateway is the outbound FastSpring API surface the library consumes.
// pkg/cashier/fastspring implements it over HTTP; tests substitute fakes.
//
// FastSpring reports success per referenced entity, not per request: bulk
// subscription calls return one result entry per subscription id, and local
// state must only change for entities whose entry reports success.
type Gateway interface {
	// CreateAccount creates a FastSpring account and returns its id.
	CreateAccount(ctx context.Context, params AccountParams) (*AccountReply, error)

	// UpdateAccount updates an existing FastSpring account.
	UpdateAccount(ctx context.Context, fastspringID string, params AccountParams) (*AccountReply, error)

	// GetAccounts lists accounts matching the query, e.g. {"email": ...}.
	GetAccounts(ctx context.Context, query map[string]string) (*AccountsReply, error)

	// CreateSession creates a checkout session for a plan purchase.
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)

	// GetSubscriptionEntries returns the current billing period window for
	// each subscription id.
	GetSubscriptionEntries(ctx context.Context, subscriptionIDs []string) ([]SubscriptionEntry, error)

	// UpdateSubscriptions applies a bulk update; cancel/uncancel/swap are
	// parameterized updates on this endpoint.
	UpdateSubscriptions(ctx context.Context, updates []SubscriptionUpdate) (*SubscriptionsReply, error)

	// CancelSubscription cancels at the end of the billing period, or
	// immediately when immediately is true (billingPeriod=0).
	CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*SubscriptionsReply, error)

	// UncancelSubscription reverses a pending cancellation.
	UncancelSubscription(ctx context.Context, subscriptionID string) (*SubscriptionsReply, error)

	// SwapSubscription moves the subscription to another plan.
	SwapSubscription(ctx context.Context, subscriptionID, plan string, prorate bool, quantity int, coupons []string) (*SubscriptionsReply, error)

	// AccountManagementURI returns an authenticated URL to the FastSpring
	// account management panel.
	AccountManagementURI(ctx context.Context, accountID string) (string, error)
}

// Contact is the contact block of a FastSpring account.
type Contact struct {
	First   string `json:"first"`
	Last    string `json:"last"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// AccountParams is the payload for account create/update calls.
type AccountParams struct {
	Contact  Contact `json:"contact"`
	Language string  `json:"language,omitempty"`
	Country  string  `json:"country,omitempty"`
}

// AccountReply is the response of account create/update calls.
type AccountReply struct {
	Account string `json:"account"`
	Result  string `json:"result"`
}

// AccountSummary is one entry of an account list response.
type AccountSummary struct {
	ID      string  `json:"id"`
	Contact Contact `json:"contact"`
	URL     string  `json:"url"`
}

// AccountsReply is the response of the account list endpoint.
type AccountsReply struct {
	Accounts []AccountSummary `json:"accounts"`
}

// SessionItem is one product line of a checkout session.
type SessionItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// SessionParams is the payload for session creation.
type SessionParams struct {
	Account string            `json:"account"`
	Items   []SessionItem     `json:"items"`
	Tags    map[string]string `json:"tags,omitempty"`
	Coupon  string            `json:"coupon,omitempty"`
}

// Session is a created checkout session.
type Session struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Expires int64  `json:"expires"`
}

// SubscriptionEntry is the current billing period window of a subscription
// as reported by the subscription entries endpoint.
type SubscriptionEntry struct {
	Subscription    string
	BeginPeriodDate time.Time
	EndPeriodDate   time.Time
}

// SubscriptionUpdate is one element of a bulk subscription update.
type SubscriptionUpdate struct {
	Subscription string
	Product      string
	Quantity     int
	Coupons      []string
	Prorate      *bool

	// ClearDeactivation sends an explicit null deactivation date, which is
	// how FastSpring expresses "uncancel".
	ClearDeactivation bool
}

// SubscriptionResult is the per-entity outcome of a bulk subscription call.
type SubscriptionResult struct {
	Subscription string `json:"subscription"`
	Result       string `json:"result"`
}

// Success reports whether FastSpring accepted the change for this entity.
func (r SubscriptionResult) Success() bool {
	return r.Result == "success"
}

// SubscriptionsReply is the response of bulk subscription calls.
type SubscriptionsReply struct {
	Subscriptions []SubscriptionResult `json:"subscriptions"`
}

// SuccessFor reports whether the reply contains a success entry for the
// given subscription id.
func (r *SubscriptionsReply) SuccessFor(subscriptionID string) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Subscriptions {
		if s.Subscription == subscriptionID && s.Success() {
			return true
		}
	}
	return false
}

// APIError is returned by the fastspring client for non-2xx responses. The
// Fields map carries FastSpring's per-field error messages, e.g. a duplicate
// email on account creation shows up under "email".
type APIError struct {
	StatusCode int
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fastspring API error (status %d): %v", e.StatusCode, e.Fields)
}
