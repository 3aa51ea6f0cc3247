package cashier

import "time"

// State is the lifecycle state FastSpring reports for a subscription.
type State string

const (
	StateTrial       State = "trial"
	StateActive      State = "active"
	StateOverdue     State = "overdue"
	StateCanceled    State = "canceled"
	StateDeactivated State = "deactivated"
)

// IntervalUnit is the billing interval unit of a subscription.
type IntervalUnit string

const (
	IntervalMonth IntervalUnit = "month"
	IntervalWeek  IntervalUnit = "week"
	IntervalYear  IntervalUnit = "year"
)

// DefaultName is the subscription slot used when an order carries no
// name tag. At most one subscription per (owner, name) pair is current;
// the most recently created one wins on lookup.
const DefaultName = "default"

// Subscription is the local copy of a FastSpring subscription. A
// subscription without a FastspringID is "local": its billing periods are
// computed by calendar arithmetic instead of being fetched from FastSpring.
type Subscription struct {
	ID      string
	OwnerID string
	Name    string

	// FastspringID is empty for local subscriptions.
	FastspringID string

	Plan           string
	State          State
	Quantity       int
	Currency       string
	IntervalUnit   IntervalUnit
	IntervalLength int

	// SwapTo and SwapAt hold a scheduled plan change: the plan the
	// subscription swaps to, and when. SwapAt doubles as the scheduled
	// deactivation date after a graceful cancel.
	SwapTo string
	SwapAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the customer should still be served. Every state
// except deactivated counts: trial, active, overdue and canceled
// subscriptions all remain serviceable until FastSpring deactivates them.
func (s *Subscription) Valid() bool {
	return !s.Deactivated()
}

// Active reports whether the subscription state is active.
func (s *Subscription) Active() bool {
	return s.State == StateActive
}

// Deactivated reports whether the subscription state is deactivated.
func (s *Subscription) Deactivated() bool {
	return s.State == StateDeactivated
}

// Overdue reports whether the subscription payment is overdue.
func (s *Subscription) Overdue() bool {
	return s.State == StateOverdue
}

// OnTrial reports whether the subscription is in its trial period.
func (s *Subscription) OnTrial() bool {
	return s.State == StateTrial
}

// Canceled reports whether the subscription has been canceled. A canceled
// subscription keeps serving until the end of the paid period, when
// FastSpring converts it to deactivated.
func (s *Subscription) Canceled() bool {
	return s.State == StateCanceled
}

// OnGracePeriod is an alias for Canceled: the window between cancellation
// and deactivation.
func (s *Subscription) OnGracePeriod() bool {
	return s.Canceled()
}

// PeriodType returns the period type records of this subscription carry:
// PeriodFastspring when the subscription exists on FastSpring, PeriodLocal
// otherwise.
func (s *Subscription) PeriodType() PeriodType {
	if s.IsFastspring() {
		return PeriodFastspring
	}
	return PeriodLocal
}

// IsFastspring reports whether the subscription exists on FastSpring.
func (s *Subscription) IsFastspring() bool {
	return s.FastspringID != ""
}

// IsLocal reports whether the subscription is managed purely locally.
func (s *Subscription) IsLocal() bool {
	return !s.IsFastspring()
}
