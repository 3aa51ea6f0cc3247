package webhook

import "context"

// HandlerFunc processes a single webhook event. Handlers must be idempotent:
// FastSpring redelivers events whose ids were not acknowledged, so a handler
// may see the same event more than once.
type HandlerFunc func(ctx context.Context, event Event) error

// Registry maps handler names to handler functions. Names are the global
// catch-all ("any"), category handlers ("subscription any") and activity
// handlers ("subscription activated"). The mapping is built at startup;
// dispatch only looks names up.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a name, replacing any previous binding.
func (r *Registry) Register(name string, handler HandlerFunc) {
	r.handlers[name] = handler
}

// RegisterActivity binds a handler to an event type's activity name, e.g.
// Register("subscription activated", ...) for "subscription.activated".
func (r *Registry) RegisterActivity(eventType string, handler HandlerFunc) {
	r.Register(Event{Type: eventType}.Activity(), handler)
}

func (r *Registry) handler(name string) (HandlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// nopHandler accepts an event without doing anything. Registered for known
// activities that need no local bookkeeping, so they are acknowledged
// instead of being reported as unknown.
func nopHandler(context.Context, Event) error {
	return nil
}
