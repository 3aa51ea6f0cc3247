package cashier

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds the collaborators a Manager needs.
type Config struct {
	// Storage is the persistence backend (required).
	Storage Storage

	// Gateway is the FastSpring API client (required).
	Gateway Gateway

	// Logger is an optional structured logger. Defaults to a no-op.
	Logger Logger

	// Metrics is an optional metrics collector. Defaults to a no-op.
	Metrics Metrics

	// Now returns the current time. Defaults to time.Now; tests override it
	// to pin "today".
	Now func() time.Time
}

// Manager owns subscription state transitions and billing period
// bookkeeping. All mutations go through Storage; all remote calls go through
// Gateway. A Manager is safe for concurrent use as long as its Storage is.
type Manager struct {
	storage Storage
	gateway Gateway
	logger  Logger
	metrics Metrics
	now     func() time.Time
}

// NewManager creates a Manager from the given configuration.
func NewManager(config Config) (*Manager, error) {
	if config.Storage == nil {
		return nil, errors.New("cashier: storage is required")
	}
	if config.Gateway == nil {
		return nil, errors.New("cashier: gateway is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		storage: config.Storage,
		gateway: config.Gateway,
		logger:  logger,
		metrics: metrics,
		now:     now,
	}, nil
}

// Storage returns the persistence backend the manager was built with.
func (m *Manager) Storage() Storage {
	return m.storage
}

// ActivePeriodOrCreate returns the billing period covering today, creating
// it (and any skipped periods) if needed.
//
// FastSpring subscriptions get their period window from the subscription
// entries endpoint. Local subscriptions advance by pure calendar arithmetic:
// when the subscription has gone un-synced for several cycles, every skipped
// period is materialized, not just the current one.
func (m *Manager) ActivePeriodOrCreate(ctx context.Context, sub *Subscription) (*SubscriptionPeriod, error) {
	if sub.IsFastspring() {
		return m.activeFastspringPeriodOrCreate(ctx, sub)
	}
	return m.activeLocalPeriodOrCreate(ctx, sub)
}

func (m *Manager) activeFastspringPeriodOrCreate(ctx context.Context, sub *Subscription) (*SubscriptionPeriod, error) {
	today := DateOf(m.now())

	period, err := m.storage.PeriodCovering(ctx, sub.ID, PeriodFastspring, today)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entries, err := m.gateway.GetSubscriptionEntries(ctx, []string{sub.FastspringID})
	if err != nil {
		return nil, fmt.Errorf("fetch subscription entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries for subscription %s", ErrGatewayFailure, sub.FastspringID)
	}

	// The entries endpoint carries no type information; periods created at
	// subscription creation (trial included) are assumed regular.
	return m.storage.FirstOrCreatePeriod(ctx, &SubscriptionPeriod{
		SubscriptionID: sub.ID,
		Type:           PeriodFastspring,
		StartDate:      DateOf(entries[0].BeginPeriodDate),
		EndDate:        DateOf(entries[0].EndPeriodDate),
	})
}

func (m *Manager) activeLocalPeriodOrCreate(ctx context.Context, sub *Subscription) (*SubscriptionPeriod, error) {
	today := DateOf(m.now())

	period, err := m.storage.PeriodCovering(ctx, sub.ID, PeriodLocal, today)
	if err == nil {
		return period, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	last, err := m.storage.LastPeriod(ctx, sub.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Periods may not have been created for longer than one interval. Fill
	// every blank until today's period exists, so the history stays complete.
	for {
		start := today
		if last != nil {
			start, err = AddInterval(DateOf(last.StartDate), sub.IntervalUnit, sub.IntervalLength)
			if err != nil {
				return nil, err
			}
		}

		next, err := AddInterval(start, sub.IntervalUnit, sub.IntervalLength)
		if err != nil {
			return nil, err
		}
		end := next.AddDate(0, 0, -1)

		last, err = m.storage.FirstOrCreatePeriod(ctx, &SubscriptionPeriod{
			SubscriptionID: sub.ID,
			Type:           PeriodLocal,
			StartDate:      start,
			EndDate:        end,
		})
		if err != nil {
			return nil, err
		}

		if last.Contains(today) {
			return last, nil
		}
		if DateOf(last.StartDate).After(today) {
			return nil, fmt.Errorf("period starting %s moved past today without covering it",
				DateOf(last.StartDate).Format("2006-01-02"))
		}
	}
}
