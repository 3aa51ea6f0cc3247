// Package webhook parses, verifies and dispatches FastSpring webhook
// batches, and carries the built-in listeners that drive subscription state
// from inbound events.
package webhook

import "strings"

// Event is a single record of a FastSpring webhook batch. Events are
// transient: constructed from the request payload, consumed once by
// dispatch, then discarded.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Live      bool                   `json:"live"`
	Processed bool                   `json:"processed"`
	Created   int64                  `json:"created"`
	Data      map[string]interface{} `json:"data"`
}

// Category returns the first dot-delimited segment of the event type:
// "subscription.charge.completed" has category "subscription".
func (e Event) Category() string {
	category, _, _ := strings.Cut(e.Type, ".")
	return category
}

// Activity returns the event type with dots replaced by spaces:
// "subscription.charge.completed" has activity
// "subscription charge completed". Activity names key the handler registry.
func (e Event) Activity() string {
	return strings.ReplaceAll(e.Type, ".", " ")
}
