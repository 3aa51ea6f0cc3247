package cashier

import (
	"context"
	"fmt"
)

// Swap moves the subscription to a new plan. With prorate the change applies
// immediately; otherwise it is scheduled for the end of the current period
// and recorded in SwapTo/SwapAt.
//
// Like every gateway-backed transition, this is two-phase: FastSpring is
// called first and local state only changes when the response reports
// success for this subscription.
func (m *Manager) Swap(ctx context.Context, sub *Subscription, plan string, prorate bool, quantity int, coupons []string) error {
	if !sub.IsFastspring() {
		return fmt.Errorf("%w: subscription %s has no fastspring id", ErrInvalidConfiguration, sub.ID)
	}

	reply, err := m.gateway.SwapSubscription(ctx, sub.FastspringID, plan, prorate, quantity, coupons)
	if err != nil {
		return fmt.Errorf("swap subscription: %w", err)
	}
	if !reply.SuccessFor(sub.FastspringID) {
		return fmt.Errorf("%w: swap rejected for subscription %s", ErrGatewayFailure, sub.FastspringID)
	}

	if prorate {
		// The plan changes immediately, so the swap columns stay empty. A
		// trial subscription's current period no longer matches the new plan
		// and would block the updated period from being created, so drop it.
		if sub.OnTrial() {
			period, err := m.ActivePeriodOrCreate(ctx, sub)
			if err != nil {
				return err
			}
			if err := m.storage.DeletePeriod(ctx, period.ID); err != nil {
				return err
			}
		}

		sub.Plan = plan
		return m.storage.UpsertSubscription(ctx, sub)
	}

	// Scheduled swap: the plan changes when the current period runs out.
	period, err := m.ActivePeriodOrCreate(ctx, sub)
	if err != nil {
		return err
	}

	sub.SwapTo = plan
	end := DateOf(period.EndDate)
	sub.SwapAt = &end
	return m.storage.UpsertSubscription(ctx, sub)
}

// Cancel cancels the subscription at the end of the billing period. The
// subscription keeps serving until then; SwapAt records the scheduled
// deactivation date.
func (m *Manager) Cancel(ctx context.Context, sub *Subscription) error {
	if !sub.IsFastspring() {
		return fmt.Errorf("%w: subscription %s has no fastspring id", ErrInvalidConfiguration, sub.ID)
	}

	reply, err := m.gateway.CancelSubscription(ctx, sub.FastspringID, false)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if !reply.SuccessFor(sub.FastspringID) {
		return fmt.Errorf("%w: cancel rejected for subscription %s", ErrGatewayFailure, sub.FastspringID)
	}

	period, err := m.ActivePeriodOrCreate(ctx, sub)
	if err != nil {
		return err
	}

	m.metrics.RecordStateChange(string(sub.State), string(StateCanceled))
	sub.State = StateCanceled
	end := DateOf(period.EndDate)
	sub.SwapAt = &end
	return m.storage.UpsertSubscription(ctx, sub)
}

// CancelNow cancels the subscription immediately (billingPeriod=0) and
// deactivates it locally.
func (m *Manager) CancelNow(ctx context.Context, sub *Subscription) error {
	if !sub.IsFastspring() {
		return fmt.Errorf("%w: subscription %s has no fastspring id", ErrInvalidConfiguration, sub.ID)
	}

	reply, err := m.gateway.CancelSubscription(ctx, sub.FastspringID, true)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if !reply.SuccessFor(sub.FastspringID) {
		return fmt.Errorf("%w: immediate cancel rejected for subscription %s", ErrGatewayFailure, sub.FastspringID)
	}

	m.metrics.RecordStateChange(string(sub.State), string(StateDeactivated))
	sub.State = StateDeactivated
	return m.storage.UpsertSubscription(ctx, sub)
}

// Resume reverses a pending cancellation. Only valid during the grace
// period (state canceled); calling it from any other state fails before any
// gateway call is made.
func (m *Manager) Resume(ctx context.Context, sub *Subscription) error {
	if !sub.OnGracePeriod() {
		return fmt.Errorf("%w: cannot resume subscription in state %q", ErrIllegalStateTransition, sub.State)
	}

	reply, err := m.gateway.UncancelSubscription(ctx, sub.FastspringID)
	if err != nil {
		return fmt.Errorf("uncancel subscription: %w", err)
	}
	if !reply.SuccessFor(sub.FastspringID) {
		return fmt.Errorf("%w: resume rejected for subscription %s", ErrGatewayFailure, sub.FastspringID)
	}

	m.metrics.RecordStateChange(string(sub.State), string(StateActive))
	sub.State = StateActive
	sub.SwapTo = ""
	sub.SwapAt = nil
	return m.storage.UpsertSubscription(ctx, sub)
}
