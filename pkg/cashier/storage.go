package cashier

import (
	"context"
	"time"
)

// Storage is the persistence surface the library needs. Implementations live
// under storage/ (memory, postgres, redis).
//
// Webhook delivery is at-least-once, so every write here must be an upsert or
// an idempotent create: replaying a batch must converge to the same stored
// state. Natural keys, not locks, provide that guarantee.
type Storage interface {
	// UpsertAccount stores an account, keyed by ID.
	UpsertAccount(ctx context.Context, account *Account) error

	// AccountByFastspringID looks an account up by its FastSpring account id.
	// Returns ErrNotFound when no such account exists.
	AccountByFastspringID(ctx context.Context, fastspringID string) (*Account, error)

	// UpsertSubscription stores a subscription, keyed by ID. Implementations
	// assign an ID when the subscription has none.
	UpsertSubscription(ctx context.Context, sub *Subscription) error

	// SubscriptionByFastspringID looks a subscription up by its FastSpring id.
	// Returns ErrNotFound when no such subscription exists.
	SubscriptionByFastspringID(ctx context.Context, fastspringID string) (*Subscription, error)

	// Subscription returns the most recently created subscription for
	// (ownerID, name), or ErrNotFound.
	Subscription(ctx context.Context, ownerID, name string) (*Subscription, error)

	// SubscriptionsByOwner returns all subscriptions of an owner, most
	// recently created first.
	SubscriptionsByOwner(ctx context.Context, ownerID string) ([]*Subscription, error)

	// FirstOrCreatePeriod creates the period under its natural key
	// (SubscriptionID, Type, StartDate, EndDate) unless an identical one
	// already exists, in which case the stored one is returned. Concurrent
	// calls with the same key must converge to a single row.
	FirstOrCreatePeriod(ctx context.Context, period *SubscriptionPeriod) (*SubscriptionPeriod, error)

	// PeriodCovering returns the period of the given type whose
	// [StartDate, EndDate] contains the given day, or ErrNotFound.
	PeriodCovering(ctx context.Context, subscriptionID string, typ PeriodType, on time.Time) (*SubscriptionPeriod, error)

	// LastPeriod returns the subscription's period with the latest end date,
	// or ErrNotFound when the subscription has no periods yet.
	LastPeriod(ctx context.Context, subscriptionID string) (*SubscriptionPeriod, error)

	// DeletePeriod removes a period by ID. Deleting a missing period is a
	// no-op.
	DeletePeriod(ctx context.Context, periodID string) error

	// UpsertInvoice stores an invoice under its natural key
	// (FastspringID, Type).
	UpsertInvoice(ctx context.Context, invoice *Invoice) error

	// InvoicesByOwner returns all invoices of an owner, most recently
	// created first.
	InvoicesByOwner(ctx context.Context, ownerID string) ([]*Invoice, error)
}
