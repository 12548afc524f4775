package processor

import (
	"context"
	"log/slog"

	"github.com/cornjacket/member-legacy-processor/internal/domain/events"
)

// HandlerFunc processes one validated-envelope event.
type HandlerFunc func(ctx context.Context, env *events.Envelope) error

// Router dispatches events to handlers by exact bus-topic match.
type Router struct {
	routes map[string]HandlerFunc
	logger *slog.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		routes: make(map[string]HandlerFunc),
		logger: logger.With("component", "router"),
	}
}

// Register adds a handler for the given topic. Registering the same topic
// twice replaces the earlier handler.
func (r *Router) Register(topic string, fn HandlerFunc) {
	r.routes[topic] = fn
	r.logger.Info("registered handler", "topic", topic)
}

// Dispatch routes an event to the handler registered for its topic.
// An unmatched topic is logged and skipped, not an error.
func (r *Router) Dispatch(ctx context.Context, topic string, env *events.Envelope) error {
	fn, ok := r.routes[topic]
	if !ok {
		r.logger.Error("no handler for topic", "topic", topic)
		return nil
	}
	return fn(ctx, env)
}

// Handles reports whether a handler is registered for the topic.
func (r *Router) Handles(topic string) bool {
	_, ok := r.routes[topic]
	return ok
}
