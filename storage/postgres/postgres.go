// Package postgres provides a PostgreSQL implementation of the
// cashier.Storage interface. Natural-key upserts (ON CONFLICT) make every
// write idempotent, which is what at-least-once webhook delivery requires.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Storage implements cashier.Storage using PostgreSQL.
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter.
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the cashier tables if they do not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cashier_accounts (
			id TEXT PRIMARY KEY,
			fastspring_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cashier_accounts_fastspring_id
			ON cashier_accounts (fastspring_id) WHERE fastspring_id <> ''`,
		`CREATE TABLE IF NOT EXISTS cashier_subscriptions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			fastspring_id TEXT NOT NULL DEFAULT '',
			plan TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			interval_unit TEXT NOT NULL DEFAULT '',
			interval_length INTEGER NOT NULL DEFAULT 0,
			swap_to TEXT NOT NULL DEFAULT '',
			swap_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS cashier_subscriptions_owner
			ON cashier_subscriptions (owner_id, name, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cashier_subscriptions_fastspring_id
			ON cashier_subscriptions (fastspring_id) WHERE fastspring_id <> ''`,
		`CREATE TABLE IF NOT EXISTS cashier_subscription_periods (
			id TEXT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			type TEXT NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (subscription_id, type, start_date, end_date)
		)`,
		`CREATE TABLE IF NOT EXISTS cashier_invoices (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			fastspring_id TEXT NOT NULL,
			type TEXT NOT NULL,
			subscription_sequence INTEGER NOT NULL DEFAULT 0,
			subscription_display TEXT NOT NULL DEFAULT '',
			subscription_product TEXT NOT NULL DEFAULT '',
			invoice_url TEXT NOT NULL DEFAULT '',
			total DOUBLE PRECISION NOT NULL DEFAULT 0,
			tax DOUBLE PRECISION NOT NULL DEFAULT 0,
			subtotal DOUBLE PRECISION NOT NULL DEFAULT 0,
			discount DOUBLE PRECISION NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT '',
			payment_type TEXT NOT NULL DEFAULT '',
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			period_start_date DATE,
			period_end_date DATE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (fastspring_id, type)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// UpsertAccount implements cashier.Storage.
func (s *Storage) UpsertAccount(ctx context.Context, account *cashier.Account) error {
	if account == nil {
		return fmt.Errorf("invalid account")
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cashier_accounts
			(id, fastspring_id, name, email, company, phone, language, country, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			ON CONFLICT (id) DO UPDATE SET
				fastspring_id = EXCLUDED.fastspring_id,
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				company = EXCLUDED.company,
				phone = EXCLUDED.phone,
				language = EXCLUDED.language,
				country = EXCLUDED.country,
				updated_at = EXCLUDED.updated_at`,
		account.ID, account.FastspringID, account.Name, account.Email,
		account.Company, account.Phone, account.Language, account.Country, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// AccountByFastspringID implements cashier.Storage.
func (s *Storage) AccountByFastspringID(ctx context.Context, fastspringID string) (*cashier.Account, error) {
	if fastspringID == "" {
		return nil, cashier.ErrNotFound
	}

	var account cashier.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, fastspring_id, name, email, company, phone, language, country, created_at, updated_at
			FROM cashier_accounts WHERE fastspring_id = $1`,
		fastspringID).Scan(
		&account.ID, &account.FastspringID, &account.Name, &account.Email,
		&account.Company, &account.Phone, &account.Language, &account.Country,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

const subscriptionColumns = `id, owner_id, name, fastspring_id, plan, state, quantity, currency,
	interval_unit, interval_length, swap_to, swap_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (*cashier.Subscription, error) {
	var sub cashier.Subscription
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.Name, &sub.FastspringID, &sub.Plan, &sub.State,
		&sub.Quantity, &sub.Currency, &sub.IntervalUnit, &sub.IntervalLength,
		&sub.SwapTo, &sub.SwapAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}

// UpsertSubscription implements cashier.Storage.
func (s *Storage) UpsertSubscription(ctx context.Context, sub *cashier.Subscription) error {
	if sub == nil || sub.OwnerID == "" {
		return fmt.Errorf("invalid subscription")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cashier_subscriptions
			(id, owner_id, name, fastspring_id, plan, state, quantity, currency,
			 interval_unit, interval_length, swap_to, swap_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			ON CONFLICT (id) DO UPDATE SET
				owner_id = EXCLUDED.owner_id,
				name = EXCLUDED.name,
				fastspring_id = EXCLUDED.fastspring_id,
				plan = EXCLUDED.plan,
				state = EXCLUDED.state,
				quantity = EXCLUDED.quantity,
				currency = EXCLUDED.currency,
				interval_unit = EXCLUDED.interval_unit,
				interval_length = EXCLUDED.interval_length,
				swap_to = EXCLUDED.swap_to,
				swap_at = EXCLUDED.swap_at,
				updated_at = EXCLUDED.updated_at`,
		sub.ID, sub.OwnerID, sub.Name, sub.FastspringID, sub.Plan, sub.State,
		sub.Quantity, sub.Currency, sub.IntervalUnit, sub.IntervalLength,
		sub.SwapTo, sub.SwapAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// SubscriptionByFastspringID implements cashier.Storage.
func (s *Storage) SubscriptionByFastspringID(ctx context.Context, fastspringID string) (*cashier.Subscription, error) {
	if fastspringID == "" {
		return nil, cashier.ErrNotFound
	}
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM cashier_subscriptions WHERE fastspring_id = $1`,
		fastspringID))
}

// Subscription implements cashier.Storage: the most recently created
// subscription for (ownerID, name) wins.
func (s *Storage) Subscription(ctx context.Context, ownerID, name string) (*cashier.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM cashier_subscriptions
			WHERE owner_id = $1 AND name = $2
			ORDER BY created_at DESC LIMIT 1`,
		ownerID, name))
}

// SubscriptionsByOwner implements cashier.Storage.
func (s *Storage) SubscriptionsByOwner(ctx context.Context, ownerID string) ([]*cashier.Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM cashier_subscriptions
			WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*cashier.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// FirstOrCreatePeriod implements cashier.Storage. The unique index on the
// natural key plus ON CONFLICT DO NOTHING makes concurrent replays converge
// on a single row.
func (s *Storage) FirstOrCreatePeriod(ctx context.Context, period *cashier.SubscriptionPeriod) (*cashier.SubscriptionPeriod, error) {
	if period == nil || period.SubscriptionID == "" {
		return nil, fmt.Errorf("invalid period")
	}

	start := cashier.DateOf(period.StartDate)
	end := cashier.DateOf(period.EndDate)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO cashier_subscription_periods
			(id, subscription_id, type, start_date, end_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (subscription_id, type, start_date, end_date) DO NOTHING`,
		uuid.NewString(), period.SubscriptionID, period.Type, start, end, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	return s.periodByKey(ctx, period.SubscriptionID, period.Type, start, end)
}

func (s *Storage) periodByKey(ctx context.Context, subscriptionID string, typ cashier.PeriodType, start, end time.Time) (*cashier.SubscriptionPeriod, error) {
	return scanPeriod(s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, type, start_date, end_date, created_at
			FROM cashier_subscription_periods
			WHERE subscription_id = $1 AND type = $2 AND start_date = $3 AND end_date = $4`,
		subscriptionID, typ, start, end))
}

func scanPeriod(row pgx.Row) (*cashier.SubscriptionPeriod, error) {
	var period cashier.SubscriptionPeriod
	err := row.Scan(
		&period.ID, &period.SubscriptionID, &period.Type,
		&period.StartDate, &period.EndDate, &period.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan period: %w", err)
	}
	period.StartDate = cashier.DateOf(period.StartDate)
	period.EndDate = cashier.DateOf(period.EndDate)
	return &period, nil
}

// PeriodCovering implements cashier.Storage.
func (s *Storage) PeriodCovering(ctx context.Context, subscriptionID string, typ cashier.PeriodType, on time.Time) (*cashier.SubscriptionPeriod, error) {
	return scanPeriod(s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, type, start_date, end_date, created_at
			FROM cashier_subscription_periods
			WHERE subscription_id = $1 AND type = $2 AND start_date <= $3 AND end_date >= $3
			ORDER BY start_date DESC LIMIT 1`,
		subscriptionID, typ, cashier.DateOf(on)))
}

// LastPeriod implements cashier.Storage.
func (s *Storage) LastPeriod(ctx context.Context, subscriptionID string) (*cashier.SubscriptionPeriod, error) {
	return scanPeriod(s.pool.QueryRow(ctx,
		`SELECT id, subscription_id, type, start_date, end_date, created_at
			FROM cashier_subscription_periods
			WHERE subscription_id = $1
			ORDER BY end_date DESC LIMIT 1`,
		subscriptionID))
}

// DeletePeriod implements cashier.Storage.
func (s *Storage) DeletePeriod(ctx context.Context, periodID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM cashier_subscription_periods WHERE id = $1`, periodID)
	if err != nil {
		return fmt.Errorf("failed to delete period: %w", err)
	}
	return nil
}

// UpsertInvoice implements cashier.Storage: the natural key is
// (fastspring_id, type), so webhook replays update in place.
func (s *Storage) UpsertInvoice(ctx context.Context, invoice *cashier.Invoice) error {
	if invoice == nil || invoice.FastspringID == "" {
		return fmt.Errorf("invalid invoice")
	}
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cashier_invoices
			(id, owner_id, fastspring_id, type, subscription_sequence, subscription_display,
			 subscription_product, invoice_url, total, tax, subtotal, discount, currency,
			 payment_type, completed, period_start_date, period_end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
			ON CONFLICT (fastspring_id, type) DO UPDATE SET
				owner_id = EXCLUDED.owner_id,
				subscription_sequence = EXCLUDED.subscription_sequence,
				subscription_display = EXCLUDED.subscription_display,
				subscription_product = EXCLUDED.subscription_product,
				invoice_url = EXCLUDED.invoice_url,
				total = EXCLUDED.total,
				tax = EXCLUDED.tax,
				subtotal = EXCLUDED.subtotal,
				discount = EXCLUDED.discount,
				currency = EXCLUDED.currency,
				payment_type = EXCLUDED.payment_type,
				completed = EXCLUDED.completed,
				period_start_date = EXCLUDED.period_start_date,
				period_end_date = EXCLUDED.period_end_date,
				updated_at = EXCLUDED.updated_at`,
		invoice.ID, invoice.OwnerID, invoice.FastspringID, invoice.Type,
		invoice.SubscriptionSequence, invoice.SubscriptionDisplay, invoice.SubscriptionProduct,
		invoice.InvoiceURL, invoice.Total, invoice.Tax, invoice.Subtotal, invoice.Discount,
		invoice.Currency, invoice.PaymentType, invoice.Completed,
		invoice.PeriodStartDate, invoice.PeriodEndDate, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert invoice: %w", err)
	}
	return nil
}

// InvoicesByOwner implements cashier.Storage.
func (s *Storage) InvoicesByOwner(ctx context.Context, ownerID string) ([]*cashier.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, fastspring_id, type, subscription_sequence, subscription_display,
			subscription_product, invoice_url, total, tax, subtotal, discount, currency,
			payment_type, completed, period_start_date, period_end_date, created_at, updated_at
			FROM cashier_invoices WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*cashier.Invoice
	for rows.Next() {
		var invoice cashier.Invoice
		err := rows.Scan(
			&invoice.ID, &invoice.OwnerID, &invoice.FastspringID, &invoice.Type,
			&invoice.SubscriptionSequence, &invoice.SubscriptionDisplay, &invoice.SubscriptionProduct,
			&invoice.InvoiceURL, &invoice.Total, &invoice.Tax, &invoice.Subtotal, &invoice.Discount,
			&invoice.Currency, &invoice.PaymentType, &invoice.Completed,
			&invoice.PeriodStartDate, &invoice.PeriodEndDate, &invoice.CreatedAt, &invoice.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, &invoice)
	}
	return invoices, rows.Err()
}

var _ cashier.Storage = (*Storage)(nil)
