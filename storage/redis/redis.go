// Package redis provides a Redis implementation of the cashier.Storage
// interface. Entities are stored as JSON values; secondary lookups go
// through index keys, and natural-key idempotency is enforced with SETNX so
// webhook replays converge on a single record.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Storage implements cashier.Storage using Redis.
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "cashier:")
	KeyPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "cashier:",
	}
}

// New creates a new Redis storage adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "cashier:"
	}
	return &Storage{client: client, config: config}, nil
}

func (s *Storage) key(parts ...string) string {
	key := s.config.KeyPrefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

func (s *Storage) getJSON(ctx context.Context, key string, out interface{}) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return cashier.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Storage) setJSON(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// UpsertAccount implements cashier.Storage.
func (s *Storage) UpsertAccount(ctx context.Context, account *cashier.Account) error {
	if account == nil {
		return fmt.Errorf("invalid account")
	}

	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = uuid.NewString()
		account.CreatedAt = now
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if err := s.setJSON(ctx, s.key("account", account.ID), account); err != nil {
		return err
	}
	if account.FastspringID != "" {
		if err := s.client.Set(ctx, s.key("account", "fs", account.FastspringID), account.ID, 0).Err(); err != nil {
			return fmt.Errorf("failed to index account: %w", err)
		}
	}
	return nil
}

// AccountByFastspringID implements cashier.Storage.
func (s *Storage) AccountByFastspringID(ctx context.Context, fastspringID string) (*cashier.Account, error) {
	if fastspringID == "" {
		return nil, cashier.ErrNotFound
	}

	id, err := s.client.Get(ctx, s.key("account", "fs", fastspringID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cashier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account index: %w", err)
	}

	var account cashier.Account
	if err := s.getJSON(ctx, s.key("account", id), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// UpsertSubscription implements cashier.Storage.
func (s *Storage) UpsertSubscription(ctx context.Context, sub *cashier.Subscription) error {
	if sub == nil || sub.OwnerID == "" {
		return fmt.Errorf("invalid subscription")
	}

	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
		sub.CreatedAt = now
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	if err := s.setJSON(ctx, s.key("subscription", sub.ID), sub); err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.key("subscriptions", "owner", sub.OwnerID), redis.Z{
		Score:  float64(sub.CreatedAt.UnixNano()),
		Member: sub.ID,
	})
	if sub.FastspringID != "" {
		pipe.Set(ctx, s.key("subscription", "fs", sub.FastspringID), sub.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index subscription: %w", err)
	}
	return nil
}

// SubscriptionByFastspringID implements cashier.Storage.
func (s *Storage) SubscriptionByFastspringID(ctx context.Context, fastspringID string) (*cashier.Subscription, error) {
	if fastspringID == "" {
		return nil, cashier.ErrNotFound
	}

	id, err := s.client.Get(ctx, s.key("subscription", "fs", fastspringID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, cashier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve subscription index: %w", err)
	}

	var sub cashier.Subscription
	if err := s.getJSON(ctx, s.key("subscription", id), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscription implements cashier.Storage: the most recently created
// subscription for (ownerID, name) wins.
func (s *Storage) Subscription(ctx context.Context, ownerID, name string) (*cashier.Subscription, error) {
	subs, err := s.SubscriptionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		if sub.Name == name {
			return sub, nil
		}
	}
	return nil, cashier.ErrNotFound
}

// SubscriptionsByOwner implements cashier.Storage.
func (s *Storage) SubscriptionsByOwner(ctx context.Context, ownerID string) ([]*cashier.Subscription, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("subscriptions", "owner", ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var subs []*cashier.Subscription
	for _, id := range ids {
		var sub cashier.Subscription
		err := s.getJSON(ctx, s.key("subscription", id), &sub)
		if errors.Is(err, cashier.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

// FirstOrCreatePeriod implements cashier.Storage. SETNX on the natural key
// decides which caller creates the record; everyone else reads the winner.
func (s *Storage) FirstOrCreatePeriod(ctx context.Context, period *cashier.SubscriptionPeriod) (*cashier.SubscriptionPeriod, error) {
	if period == nil || period.SubscriptionID == "" {
		return nil, fmt.Errorf("invalid period")
	}

	stored := *period
	stored.ID = uuid.NewString()
	stored.StartDate = cashier.DateOf(stored.StartDate)
	stored.EndDate = cashier.DateOf(stored.EndDate)
	stored.CreatedAt = time.Now().UTC()

	natural := s.key("periodkey", periodKey(&stored))
	created, err := s.client.SetNX(ctx, natural, stored.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim period key: %w", err)
	}

	if !created {
		id, err := s.client.Get(ctx, natural).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve period key: %w", err)
		}
		var existing cashier.SubscriptionPeriod
		if err := s.getJSON(ctx, s.key("period", id), &existing); err != nil {
			return nil, err
		}
		return &existing, nil
	}

	if err := s.setJSON(ctx, s.key("period", stored.ID), &stored); err != nil {
		return nil, err
	}
	err = s.client.ZAdd(ctx, s.key("periods", "sub", stored.SubscriptionID), redis.Z{
		Score:  float64(stored.EndDate.Unix()),
		Member: stored.ID,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to index period: %w", err)
	}

	result := stored
	return &result, nil
}

// PeriodCovering implements cashier.Storage.
func (s *Storage) PeriodCovering(ctx context.Context, subscriptionID string, typ cashier.PeriodType, on time.Time) (*cashier.SubscriptionPeriod, error) {
	periods, err := s.periodsOf(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	for _, period := range periods {
		if period.Type == typ && period.Contains(on) {
			return period, nil
		}
	}
	return nil, cashier.ErrNotFound
}

// LastPeriod implements cashier.Storage.
func (s *Storage) LastPeriod(ctx context.Context, subscriptionID string) (*cashier.SubscriptionPeriod, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("periods", "sub", subscriptionID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	if len(ids) == 0 {
		return nil, cashier.ErrNotFound
	}

	var period cashier.SubscriptionPeriod
	if err := s.getJSON(ctx, s.key("period", ids[0]), &period); err != nil {
		return nil, err
	}
	return &period, nil
}

// DeletePeriod implements cashier.Storage.
func (s *Storage) DeletePeriod(ctx context.Context, periodID string) error {
	var period cashier.SubscriptionPeriod
	err := s.getJSON(ctx, s.key("period", periodID), &period)
	if errors.Is(err, cashier.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key("period", periodID))
	pipe.Del(ctx, s.key("periodkey", periodKey(&period)))
	pipe.ZRem(ctx, s.key("periods", "sub", period.SubscriptionID), periodID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete period: %w", err)
	}
	return nil
}

// UpsertInvoice implements cashier.Storage: the natural key is
// (FastspringID, Type).
func (s *Storage) UpsertInvoice(ctx context.Context, invoice *cashier.Invoice) error {
	if invoice == nil || invoice.FastspringID == "" {
		return fmt.Errorf("invalid invoice")
	}

	now := time.Now().UTC()
	natural := s.key("invoicekey", invoice.FastspringID+"|"+string(invoice.Type))

	newID := uuid.NewString()
	created, err := s.client.SetNX(ctx, natural, newID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim invoice key: %w", err)
	}

	if created {
		invoice.ID = newID
		invoice.CreatedAt = now
	} else {
		id, err := s.client.Get(ctx, natural).Result()
		if err != nil {
			return fmt.Errorf("failed to resolve invoice key: %w", err)
		}
		var existing cashier.Invoice
		if err := s.getJSON(ctx, s.key("invoice", id), &existing); err == nil {
			invoice.CreatedAt = existing.CreatedAt
		} else {
			invoice.CreatedAt = now
		}
		invoice.ID = id
	}
	invoice.UpdatedAt = now

	if err := s.setJSON(ctx, s.key("invoice", invoice.ID), invoice); err != nil {
		return err
	}
	err = s.client.ZAdd(ctx, s.key("invoices", "owner", invoice.OwnerID), redis.Z{
		Score:  float64(invoice.CreatedAt.UnixNano()),
		Member: invoice.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index invoice: %w", err)
	}
	return nil
}

// InvoicesByOwner implements cashier.Storage.
func (s *Storage) InvoicesByOwner(ctx context.Context, ownerID string) ([]*cashier.Invoice, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("invoices", "owner", ownerID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	var invoices []*cashier.Invoice
	for _, id := range ids {
		var invoice cashier.Invoice
		err := s.getJSON(ctx, s.key("invoice", id), &invoice)
		if errors.Is(err, cashier.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, &invoice)
	}
	return invoices, nil
}

func (s *Storage) periodsOf(ctx context.Context, subscriptionID string) ([]*cashier.SubscriptionPeriod, error) {
	ids, err := s.client.ZRevRange(ctx, s.key("periods", "sub", subscriptionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}

	var periods []*cashier.SubscriptionPeriod
	for _, id := range ids {
		var period cashier.SubscriptionPeriod
		err := s.getJSON(ctx, s.key("period", id), &period)
		if errors.Is(err, cashier.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		periods = append(periods, &period)
	}
	return periods, nil
}

func periodKey(p *cashier.SubscriptionPeriod) string {
	const day = "2006-01-02"
	return p.SubscriptionID + "|" + string(p.Type) + "|" +
		p.StartDate.Format(day) + "|" + p.EndDate.Format(day)
}

var _ cashier.Storage = (*Storage)(nil)
