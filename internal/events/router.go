package events

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var eventsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notification_events_routed_total",
	Help: "Domain events routed by type and outcome.",
}, []string{"type", "outcome"})

// Failure is what the dead-letter sink receives for a failed event.
type Failure struct {
	Event    Envelope  `json:"event"`
	Handler  string    `json:"handler"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

// DeadLetter stores failed events for inspection and replay.
type DeadLetter interface {
	Publish(ctx context.Context, f Failure) error
}

// LogDeadLetter only logs. Used when no bus-backed sink is available.
type LogDeadLetter struct{}

func (LogDeadLetter) Publish(_ context.Context, f Failure) error {
	payload, _ := json.Marshal(f)
	log.Error().
		Str("event_type", f.Event.Type).
		Str("event_id", f.Event.ID).
		RawJSON("dead_letter", payload).
		Msg("event dead-lettered")
	return nil
}

// Router is the single entry point driven by the event bus.
type Router struct {
	registry   *Registry
	deadLetter DeadLetter
	now        func() time.Time
}

// NewRouter creates a Router. A nil sink falls back to LogDeadLetter.
func NewRouter(registry *Registry, deadLetter DeadLetter) *Router {
	if deadLetter == nil {
		deadLetter = LogDeadLetter{}
	}
	return &Router{registry: registry, deadLetter: deadLetter, now: time.Now}
}

// Route hands the event to its handler. Unknown types are dropped with a
// warning. Handler errors and panics go to the dead-letter sink; the event is
// considered consumed either way.
func (r *Router) Route(ctx context.Context, env Envelope) {
	h, ok := r.registry.Lookup(env.Type)
	if !ok {
		eventsRouted.WithLabelValues("unknown", "dropped").Inc()
		log.Warn().Str("event_type", env.Type).Str("event_id", env.ID).Msg("no handler for event type, dropped")
		return
	}

	if err := r.invoke(ctx, h, env); err != nil {
		eventsRouted.WithLabelValues(env.Type, "failed").Inc()
		log.Error().Err(err).Str("event_type", env.Type).Str("event_id", env.ID).Msg("event handler failed")

		f := Failure{Event: env, Handler: env.Type, Error: err.Error(), FailedAt: r.now().UTC()}
		if dlqErr := r.deadLetter.Publish(ctx, f); dlqErr != nil {
			log.Error().Err(dlqErr).Str("event_type", env.Type).Str("event_id", env.ID).
				Msg("dead-letter publish failed, event lost")
		}
		return
	}
	eventsRouted.WithLabelValues(env.Type, "handled").Inc()
}

func (r *Router) invoke(ctx context.Context, h Handler, env Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
			log.Error().Str("event_type", env.Type).Bytes("stack", debug.Stack()).Msg("recovered handler panic")
		}
	}()
	return h(ctx, env)
}
