// Package memory provides an in-memory implementation of the cashier.Storage
// interface. This implementation is primarily intended for testing and
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Storage implements cashier.Storage using in-memory maps.
type Storage struct {
	mu            sync.RWMutex
	accounts      map[string]*cashier.Account
	subscriptions map[string]*cashier.Subscription
	periods       map[string]*cashier.SubscriptionPeriod
	invoices      map[string]*cashier.Invoice

	// periodKeys maps the period natural key to the period id so that
	// FirstOrCreatePeriod converges on replays.
	periodKeys map[string]string

	now func() time.Time
}

// New creates a new in-memory storage adapter.
func New() *Storage {
	return &Storage{
		accounts:      make(map[string]*cashier.Account),
		subscriptions: make(map[string]*cashier.Subscription),
		periods:       make(map[string]*cashier.SubscriptionPeriod),
		invoices:      make(map[string]*cashier.Invoice),
		periodKeys:    make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Storage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// UpsertAccount implements cashier.Storage.
func (s *Storage) UpsertAccount(_ context.Context, account *cashier.Account) error {
	if account == nil {
		return fmt.Errorf("invalid account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if existing, ok := s.accounts[account.ID]; ok {
		account.CreatedAt = existing.CreatedAt
	} else {
		account.CreatedAt = s.now()
	}
	account.UpdatedAt = s.now()

	// Store a copy to prevent external mutations
	accountCopy := *account
	s.accounts[account.ID] = &accountCopy
	return nil
}

// AccountByFastspringID implements cashier.Storage.
func (s *Storage) AccountByFastspringID(_ context.Context, fastspringID string) (*cashier.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.FastspringID != "" && account.FastspringID == fastspringID {
			accountCopy := *account
			return &accountCopy, nil
		}
	}
	return nil, cashier.ErrNotFound
}

// UpsertSubscription implements cashier.Storage.
func (s *Storage) UpsertSubscription(_ context.Context, sub *cashier.Subscription) error {
	if sub == nil || sub.OwnerID == "" {
		return fmt.Errorf("invalid subscription")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if existing, ok := s.subscriptions[sub.ID]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = s.now()
	}
	sub.UpdatedAt = s.now()

	subCopy := *sub
	s.subscriptions[sub.ID] = &subCopy
	return nil
}

// SubscriptionByFastspringID implements cashier.Storage.
func (s *Storage) SubscriptionByFastspringID(_ context.Context, fastspringID string) (*cashier.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subscriptions {
		if sub.FastspringID != "" && sub.FastspringID == fastspringID {
			subCopy := *sub
			return &subCopy, nil
		}
	}
	return nil, cashier.ErrNotFound
}

// Subscription implements cashier.Storage: the most recently created
// subscription for (ownerID, name) wins.
func (s *Storage) Subscription(_ context.Context, ownerID, name string) (*cashier.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *cashier.Subscription
	for _, sub := range s.subscriptions {
		if sub.OwnerID != ownerID || sub.Name != name {
			continue
		}
		if newest == nil || sub.CreatedAt.After(newest.CreatedAt) {
			newest = sub
		}
	}
	if newest == nil {
		return nil, cashier.ErrNotFound
	}
	subCopy := *newest
	return &subCopy, nil
}

// SubscriptionsByOwner implements cashier.Storage.
func (s *Storage) SubscriptionsByOwner(_ context.Context, ownerID string) ([]*cashier.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []*cashier.Subscription
	for _, sub := range s.subscriptions {
		if sub.OwnerID != ownerID {
			continue
		}
		subCopy := *sub
		subs = append(subs, &subCopy)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
	return subs, nil
}

// FirstOrCreatePeriod implements cashier.Storage.
func (s *Storage) FirstOrCreatePeriod(_ context.Context, period *cashier.SubscriptionPeriod) (*cashier.SubscriptionPeriod, error) {
	if period == nil || period.SubscriptionID == "" {
		return nil, fmt.Errorf("invalid period")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := periodKey(period)
	if id, ok := s.periodKeys[key]; ok {
		existing := *s.periods[id]
		return &existing, nil
	}

	stored := *period
	stored.ID = uuid.NewString()
	stored.StartDate = cashier.DateOf(stored.StartDate)
	stored.EndDate = cashier.DateOf(stored.EndDate)
	stored.CreatedAt = s.now()
	s.periods[stored.ID] = &stored
	s.periodKeys[key] = stored.ID

	created := stored
	return &created, nil
}

// PeriodCovering implements cashier.Storage.
func (s *Storage) PeriodCovering(_ context.Context, subscriptionID string, typ cashier.PeriodType, on time.Time) (*cashier.SubscriptionPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, period := range s.periods {
		if period.SubscriptionID != subscriptionID || period.Type != typ {
			continue
		}
		if period.Contains(on) {
			periodCopy := *period
			return &periodCopy, nil
		}
	}
	return nil, cashier.ErrNotFound
}

// LastPeriod implements cashier.Storage.
func (s *Storage) LastPeriod(_ context.Context, subscriptionID string) (*cashier.SubscriptionPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *cashier.SubscriptionPeriod
	for _, period := range s.periods {
		if period.SubscriptionID != subscriptionID {
			continue
		}
		if last == nil || period.EndDate.After(last.EndDate) {
			last = period
		}
	}
	if last == nil {
		return nil, cashier.ErrNotFound
	}
	periodCopy := *last
	return &periodCopy, nil
}

// DeletePeriod implements cashier.Storage.
func (s *Storage) DeletePeriod(_ context.Context, periodID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[periodID]
	if !ok {
		return nil
	}
	delete(s.periodKeys, periodKey(period))
	delete(s.periods, periodID)
	return nil
}

// UpsertInvoice implements cashier.Storage: the natural key is
// (FastspringID, Type).
func (s *Storage) UpsertInvoice(_ context.Context, invoice *cashier.Invoice) error {
	if invoice == nil || invoice.FastspringID == "" {
		return fmt.Errorf("invalid invoice")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := invoice.FastspringID + "|" + string(invoice.Type)
	if existing, ok := s.invoices[key]; ok {
		invoice.ID = existing.ID
		invoice.CreatedAt = existing.CreatedAt
	} else {
		invoice.ID = uuid.NewString()
		invoice.CreatedAt = s.now()
	}
	invoice.UpdatedAt = s.now()

	invoiceCopy := *invoice
	s.invoices[key] = &invoiceCopy
	return nil
}

// InvoicesByOwner implements cashier.Storage.
func (s *Storage) InvoicesByOwner(_ context.Context, ownerID string) ([]*cashier.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var invoices []*cashier.Invoice
	for _, invoice := range s.invoices {
		if invoice.OwnerID != ownerID {
			continue
		}
		invoiceCopy := *invoice
		invoices = append(invoices, &invoiceCopy)
	}
	sort.Slice(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return invoices, nil
}

func periodKey(p *cashier.SubscriptionPeriod) string {
	const day = "2006-01-02"
	return p.SubscriptionID + "|" + string(p.Type) + "|" +
		cashier.DateOf(p.StartDate).Format(day) + "|" + cashier.DateOf(p.EndDate).Format(day)
}

var _ cashier.Storage = (*Storage)(nil)
