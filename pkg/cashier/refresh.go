package cashier

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RefreshPeriods materializes the current billing period for every given
// subscription, up to concurrency at a time. Period creation is idempotent
// under its natural key, so overlapping refreshes of the same subscription
// converge to the same stored rows.
//
// The first error cancels the remaining work and is returned.
func (m *Manager) RefreshPeriods(ctx context.Context, subs []*Subscription, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, sub := range subs {
		g.Go(func() error {
			if _, err := m.ActivePeriodOrCreate(ctx, sub); err != nil {
				m.logger.Error("refresh period failed",
					Field{Key: "subscription_id", Value: sub.ID},
					Field{Key: "error", Value: err.Error()},
				)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}
