package cashier

import (
	"context"
	"errors"
	"fmt"
)

// CreateAsCustomer creates a FastSpring account for the given local account
// and stores the returned id.
func (m *Manager) CreateAsCustomer(ctx context.Context, account *Account) error {
	reply, err := m.gateway.CreateAccount(ctx, accountParams(account))
	if err != nil {
		return err
	}

	account.FastspringID = reply.Account
	return m.storage.UpsertAccount(ctx, account)
}

// UpdateCustomer pushes the local account's contact details to FastSpring.
func (m *Manager) UpdateCustomer(ctx context.Context, account *Account) error {
	if !account.HasFastspringID() {
		return fmt.Errorf("%w: account %s has no fastspring id", ErrInvalidConfiguration, account.ID)
	}

	_, err := m.gateway.UpdateAccount(ctx, account.FastspringID, accountParams(account))
	return err
}

// AccountManagementURI returns an authenticated URL to the FastSpring
// account management panel for the given account.
func (m *Manager) AccountManagementURI(ctx context.Context, account *Account) (string, error) {
	if !account.HasFastspringID() {
		return "", fmt.Errorf("%w: account %s has no fastspring id", ErrInvalidConfiguration, account.ID)
	}
	return m.gateway.AccountManagementURI(ctx, account.FastspringID)
}

// Subscription returns the owner's current subscription for the given name
// (most recently created wins). An empty name means "default".
func (m *Manager) Subscription(ctx context.Context, ownerID, name string) (*Subscription, error) {
	if name == "" {
		name = DefaultName
	}
	return m.storage.Subscription(ctx, ownerID, name)
}

// Subscribed reports whether the owner has a valid subscription under the
// given name, optionally restricted to a plan.
func (m *Manager) Subscribed(ctx context.Context, ownerID, name, plan string) (bool, error) {
	sub, err := m.Subscription(ctx, ownerID, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if plan == "" {
		return sub.Valid(), nil
	}
	return sub.Valid() && sub.Plan == plan, nil
}

// SubscribedToPlan reports whether the owner's subscription under the given
// name is valid and on one of the given plans.
func (m *Manager) SubscribedToPlan(ctx context.Context, ownerID, name string, plans ...string) (bool, error) {
	sub, err := m.Subscription(ctx, ownerID, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sub.Valid() {
		return false, nil
	}

	for _, plan := range plans {
		if sub.Plan == plan {
			return true, nil
		}
	}
	return false, nil
}

// OnPlan reports whether any of the owner's valid subscriptions is on the
// given plan, regardless of name.
func (m *Manager) OnPlan(ctx context.Context, ownerID, plan string) (bool, error) {
	subs, err := m.storage.SubscriptionsByOwner(ctx, ownerID)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Plan == plan && sub.Valid() {
			return true, nil
		}
	}
	return false, nil
}

// Invoices returns the owner's invoices, most recent first.
func (m *Manager) Invoices(ctx context.Context, ownerID string) ([]*Invoice, error) {
	return m.storage.InvoicesByOwner(ctx, ownerID)
}

func accountParams(account *Account) AccountParams {
	return AccountParams{
		Contact: Contact{
			First:   account.FirstName(),
			Last:    account.LastName(),
			Email:   account.Email,
			Company: account.Company,
			Phone:   account.Phone,
		},
		Language: account.Language,
		Country:  account.Country,
	}
}
