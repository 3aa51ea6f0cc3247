package cashier

import (
	"context"
	"errors"
	"fmt"
)

// SubscriptionBuilder prepares a FastSpring checkout session for a plan
// purchase. The subscription itself is created by the
// subscription.activated webhook once the customer completes checkout.
type SubscriptionBuilder struct {
	manager  *Manager
	owner    *Account
	name     string
	plan     string
	quantity int
	coupon   string
}

// NewSubscription begins building a checkout session for the given owner,
// subscription name and plan.
func (m *Manager) NewSubscription(owner *Account, name, plan string) *SubscriptionBuilder {
	return &SubscriptionBuilder{
		manager:  m,
		owner:    owner,
		name:     name,
		plan:     plan,
		quantity: 1,
	}
}

// Quantity sets the product quantity.
func (b *SubscriptionBuilder) Quantity(quantity int) *SubscriptionBuilder {
	b.quantity = quantity
	return b
}

// WithCoupon applies a coupon to the session.
func (b *SubscriptionBuilder) WithCoupon(coupon string) *SubscriptionBuilder {
	b.coupon = coupon
	return b
}

// Create ensures the owner exists as a FastSpring account and creates the
// checkout session.
func (b *SubscriptionBuilder) Create(ctx context.Context) (*Session, error) {
	fastspringID, err := b.fastspringID(ctx)
	if err != nil {
		return nil, err
	}

	session, err := b.manager.gateway.CreateSession(ctx, SessionParams{
		Account: fastspringID,
		Items: []SessionItem{
			{Product: b.plan, Quantity: b.quantity},
		},
		Tags:   map[string]string{"name": b.name},
		Coupon: b.coupon,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// fastspringID returns the owner's FastSpring account id, creating the
// remote account on demand. When creation fails because an account with the
// same email already exists, that account is looked up and adopted instead.
func (b *SubscriptionBuilder) fastspringID(ctx context.Context) (string, error) {
	if b.owner.HasFastspringID() {
		return b.owner.FastspringID, nil
	}

	err := b.manager.CreateAsCustomer(ctx, b.owner)
	if err == nil {
		return b.owner.FastspringID, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", err
	}
	if _, ok := apiErr.Fields["email"]; !ok {
		// Not the duplicate-email case; nothing to recover from.
		return "", err
	}

	reply, err := b.manager.gateway.GetAccounts(ctx, map[string]string{"email": b.owner.Email})
	if err != nil {
		return "", fmt.Errorf("look up account by email: %w", err)
	}
	if len(reply.Accounts) == 0 {
		return "", fmt.Errorf("%w: account for %s", ErrNotFound, b.owner.Email)
	}

	b.owner.FastspringID = reply.Accounts[0].ID
	if err := b.manager.storage.UpsertAccount(ctx, b.owner); err != nil {
		return "", err
	}
	return b.owner.FastspringID, nil
}
