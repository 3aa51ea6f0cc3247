package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/bgultekin/gocashier/pkg/cashier"
)

// Failure records why a single event was not acknowledged.
type Failure struct {
	EventID   string
	EventType string
	Err       error
}

// Report is the outcome of dispatching a batch. Acknowledged holds event
// ids in the order the events were supplied, excluding failures; ids not in
// it will be redelivered by FastSpring.
type Report struct {
	Acknowledged []string
	Failed       []Failure
}

// Dispatcher resolves handlers for each event of a batch and invokes them,
// isolating failures per event: a malformed or unhandled event never blocks
// the rest of the batch.
type Dispatcher struct {
	registry *Registry
	logger   cashier.Logger
	metrics  cashier.Metrics
}

// NewDispatcher creates a dispatcher over the given registry. Logger and
// metrics may be nil.
func NewDispatcher(registry *Registry, logger cashier.Logger, metrics cashier.Metrics) *Dispatcher {
	if logger == nil {
		logger = &cashier.NoopLogger{}
	}
	if metrics == nil {
		metrics = &cashier.NoopMetrics{}
	}
	return &Dispatcher{registry: registry, logger: logger, metrics: metrics}
}

// Dispatch processes the events in order and returns the per-event outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) Report {
	var report Report

	for _, event := range events {
		if err := d.dispatchOne(ctx, event); err != nil {
			d.logger.Error("webhook event failed",
				cashier.Field{Key: "event_id", Value: event.ID},
				cashier.Field{Key: "event_type", Value: event.Type},
				cashier.Field{Key: "error", Value: err.Error()},
			)
			status := "error"
			if errors.Is(err, cashier.ErrUnknownEvent) {
				status = "unknown"
			}
			d.metrics.RecordWebhookEvent(event.Type, status)
			report.Failed = append(report.Failed, Failure{
				EventID:   event.ID,
				EventType: event.Type,
				Err:       err,
			})
			continue
		}

		d.metrics.RecordWebhookEvent(event.Type, "success")
		report.Acknowledged = append(report.Acknowledged, event.ID)
	}

	return report
}

// dispatchOne resolves the three handler targets and invokes them. The
// category and activity handlers must both be registered; the global
// catch-all is optional. Invocation order is fixed (global, category,
// activity) so a run is deterministic.
func (d *Dispatcher) dispatchOne(ctx context.Context, event Event) error {
	categoryHandler, categoryOK := d.registry.handler(event.Category() + " any")
	activityHandler, activityOK := d.registry.handler(event.Activity())
	if !categoryOK || !activityOK {
		return fmt.Errorf("%w: %s", cashier.ErrUnknownEvent, event.Type)
	}

	if global, ok := d.registry.handler("any"); ok {
		if err := global(ctx, event); err != nil {
			return err
		}
	}
	if err := categoryHandler(ctx, event); err != nil {
		return err
	}
	return activityHandler(ctx, event)
}
