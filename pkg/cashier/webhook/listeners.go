package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// knownCategories are the event categories FastSpring sends. A category
// handler must exist for an event to be dispatchable at all.
var knownCategories = []string{
	"account",
	"fulfillment",
	"mailingListEntry",
	"order",
	"payoutEntry",
	"return",
	"subscription",
}

// knownActivities are event types FastSpring sends that need no local
// bookkeeping. They are acknowledged so FastSpring stops redelivering them.
var knownActivities = []string{
	"account.created",
	"fulfillment.failed",
	"mailingListEntry.removed",
	"mailingListEntry.updated",
	"order.approval.pending",
	"order.canceled",
	"order.payment.pending",
	"order.failed",
	"payoutEntry.created",
	"return.created",
	"subscription.charge.failed",
	"subscription.payment.reminder",
	"subscription.trial.reminder",
	"subscription.updated",
}

// Listeners are the built-in event handlers that keep local subscription,
// period and invoice state in sync with FastSpring.
//
// Events carry no ordering guarantee; when they arrive out of causal order
// the result is last-write-wins on mutable fields.
type Listeners struct {
	manager *cashier.Manager
	storage cashier.Storage
	logger  cashier.Logger
}

// NewListeners creates the built-in listeners bound to a manager.
func NewListeners(manager *cashier.Manager, logger cashier.Logger) *Listeners {
	if logger == nil {
		logger = &cashier.NoopLogger{}
	}
	return &Listeners{
		manager: manager,
		storage: manager.Storage(),
		logger:  logger,
	}
}

// RegisterAll binds the built-in handlers into the registry: a global
// logging catch-all, a no-op handler per known category, no-op handlers for
// activities that need no bookkeeping, and the stateful listeners.
func (l *Listeners) RegisterAll(r *Registry) {
	r.Register("any", l.logEvent)

	for _, category := range knownCategories {
		r.Register(category+" any", nopHandler)
	}
	for _, activity := range knownActivities {
		r.RegisterActivity(activity, nopHandler)
	}

	r.RegisterActivity("subscription.activated", l.SubscriptionActivated)
	r.RegisterActivity("subscription.charge.completed", l.SubscriptionChargeCompleted)
	r.RegisterActivity("subscription.canceled", l.SubscriptionStateChanged)
	r.RegisterActivity("subscription.payment.overdue", l.SubscriptionStateChanged)
	r.RegisterActivity("subscription.deactivated", l.SubscriptionStateChanged)
	r.RegisterActivity("order.completed", l.OrderCompleted)
}

func (l *Listeners) logEvent(_ context.Context, event Event) error {
	l.logger.Debug("webhook event received",
		cashier.Field{Key: "event_id", Value: event.ID},
		cashier.Field{Key: "event_type", Value: event.Type},
		cashier.Field{Key: "live", Value: event.Live},
	)
	return nil
}

// SubscriptionActivated handles subscription.activated: it creates or
// updates the (owner, name) subscription from the payload and persists each
// billing instruction as a fastspring period. Instructions with a null
// period boundary are skipped.
func (l *Listeners) SubscriptionActivated(ctx context.Context, event Event) error {
	data := event.Data

	account, err := l.accountFor(ctx, data)
	if err != nil {
		return err
	}

	name := stringAt(data, "tags", "name")
	if name == "" {
		name = cashier.DefaultName
	}

	sub, err := l.storage.Subscription(ctx, account.ID, name)
	if errors.Is(err, cashier.ErrNotFound) {
		sub = &cashier.Subscription{OwnerID: account.ID, Name: name}
	} else if err != nil {
		return err
	}

	sub.FastspringID = stringAt(data, "id")
	sub.Plan = stringAt(data, "product", "product")
	sub.State = cashier.State(stringAt(data, "state"))
	sub.Currency = stringAt(data, "currency")
	sub.Quantity = intAt(data, "quantity")
	sub.IntervalUnit = cashier.IntervalUnit(stringAt(data, "intervalUnit"))
	sub.IntervalLength = intAt(data, "intervalLength")

	if err := l.storage.UpsertSubscription(ctx, sub); err != nil {
		return err
	}

	for _, raw := range sliceAt(data, "instructions") {
		instruction, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		startSec, startOK := instruction["periodStartDateInSeconds"].(float64)
		endSec, endOK := instruction["periodEndDateInSeconds"].(float64)
		if !startOK || !endOK {
			continue
		}

		_, err := l.storage.FirstOrCreatePeriod(ctx, &cashier.SubscriptionPeriod{
			SubscriptionID: sub.ID,
			Type:           cashier.PeriodFastspring,
			StartDate:      cashier.DateOf(time.Unix(int64(startSec), 0)),
			EndDate:        cashier.DateOf(time.Unix(int64(endSec), 0)),
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// SubscriptionChargeCompleted handles subscription.charge.completed: it
// upserts the order as an invoice and marks the subscription active.
//
// FastSpring does not include the period dates in this event despite what
// its documentation says, so they are derived from the next charge date:
// the period ends the day before the next charge and starts one interval
// before that boundary.
func (l *Listeners) SubscriptionChargeCompleted(ctx context.Context, event Event) error {
	data := event.Data

	sub, err := l.storage.SubscriptionByFastspringID(ctx, stringAt(data, "subscription", "id"))
	if err != nil {
		return err
	}

	account, err := l.accountFor(ctx, data)
	if err != nil {
		return err
	}

	next := cashier.DateOf(time.Unix(int64At(data, "subscription", "nextInSeconds"), 0))
	periodEnd := next.AddDate(0, 0, -1)
	boundary, err := cashier.SubInterval(periodEnd, sub.IntervalUnit, sub.IntervalLength)
	if err != nil {
		return err
	}
	periodStart := boundary.AddDate(0, 0, 1)

	invoice := &cashier.Invoice{
		OwnerID:              account.ID,
		FastspringID:         stringAt(data, "order", "id"),
		Type:                 cashier.InvoiceSubscription,
		SubscriptionSequence: intAt(data, "subscription", "sequence"),
		SubscriptionDisplay:  stringAt(data, "subscription", "display"),
		SubscriptionProduct:  stringAt(data, "subscription", "product"),
		InvoiceURL:           stringAt(data, "order", "invoiceUrl"),
		Total:                floatAt(data, "order", "total"),
		Tax:                  floatAt(data, "order", "tax"),
		Subtotal:             floatAt(data, "order", "subtotal"),
		Discount:             floatAt(data, "order", "discount"),
		Currency:             stringAt(data, "order", "currency"),
		PaymentType:          stringAt(data, "order", "payment", "type"),
		Completed:            boolAt(data, "order", "completed"),
		PeriodStartDate:      &periodStart,
		PeriodEndDate:        &periodEnd,
	}
	if err := l.storage.UpsertInvoice(ctx, invoice); err != nil {
		return err
	}

	sub.State = cashier.StateActive
	return l.storage.UpsertSubscription(ctx, sub)
}

// SubscriptionStateChanged handles subscription.canceled,
// subscription.payment.overdue and subscription.deactivated: it overwrites
// the subscription's plan, state, currency and quantity from the payload.
// The subscription must already exist by FastSpring id.
func (l *Listeners) SubscriptionStateChanged(ctx context.Context, event Event) error {
	data := event.Data

	sub, err := l.storage.SubscriptionByFastspringID(ctx, stringAt(data, "id"))
	if err != nil {
		return err
	}

	account, err := l.accountFor(ctx, data)
	if err != nil {
		return err
	}

	sub.OwnerID = account.ID
	sub.Plan = stringAt(data, "product", "product")
	sub.State = cashier.State(stringAt(data, "state"))
	sub.Currency = stringAt(data, "currency")
	sub.Quantity = intAt(data, "quantity")

	return l.storage.UpsertSubscription(ctx, sub)
}

// OrderCompleted handles order.completed, which fires at subscription
// creation: it upserts the order as an invoice so payment details can be
// shown to the customer.
func (l *Listeners) OrderCompleted(ctx context.Context, event Event) error {
	data := event.Data

	items := sliceAt(data, "items")
	if len(items) == 0 {
		return fmt.Errorf("order %s has no items", stringAt(data, "id"))
	}
	item, ok := items[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("order %s has a malformed item", stringAt(data, "id"))
	}

	account, err := l.accountFor(ctx, data)
	if err != nil {
		return err
	}

	invoice := &cashier.Invoice{
		OwnerID:              account.ID,
		FastspringID:         stringAt(data, "id"),
		Type:                 cashier.InvoiceSubscription,
		SubscriptionSequence: intAt(item, "subscription", "sequence"),
		SubscriptionDisplay:  stringAt(item, "subscription", "display"),
		SubscriptionProduct:  stringAt(item, "subscription", "product"),
		InvoiceURL:           stringAt(data, "invoiceUrl"),
		Total:                floatAt(data, "total"),
		Tax:                  floatAt(data, "tax"),
		Subtotal:             floatAt(data, "subtotal"),
		Discount:             floatAt(data, "discount"),
		Currency:             stringAt(data, "currency"),
		PaymentType:          stringAt(data, "payment", "type"),
		Completed:            boolAt(data, "completed"),
	}

	if begin := int64At(item, "subscription", "beginInSeconds"); begin > 0 {
		start := cashier.DateOf(time.Unix(begin, 0))
		invoice.PeriodStartDate = &start
	}
	if next := int64At(item, "subscription", "nextInSeconds"); next > 0 {
		end := cashier.DateOf(time.Unix(next, 0))
		invoice.PeriodEndDate = &end
	}

	return l.storage.UpsertInvoice(ctx, invoice)
}

// accountFor resolves the billable account referenced by the event payload.
// The lookup must succeed: an event for an unknown account fails that event.
func (l *Listeners) accountFor(ctx context.Context, data map[string]interface{}) (*cashier.Account, error) {
	accountID := stringAt(data, "account", "id")
	if accountID == "" {
		return nil, fmt.Errorf("%w: event payload carries no account id", cashier.ErrNotFound)
	}
	return l.storage.AccountByFastspringID(ctx, accountID)
}
