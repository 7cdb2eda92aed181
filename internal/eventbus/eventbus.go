// Package eventbus subscribes to the marketplace event bus (Kafka or NATS)
// and feeds every message to the event router through a bounded worker pool.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/events"
)

// Router is the event entry point. It never fails back to the bus.
type Router interface {
	Route(ctx context.Context, env events.Envelope)
}

var (
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_bus_messages_total",
		Help: "Messages taken off the event bus by driver and outcome.",
	}, []string{"driver", "outcome"})

	deadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dead_letters_total",
		Help: "Failed events handed to a dead-letter sink by sink and outcome.",
	}, []string{"sink", "outcome"})
)

// undecodable hands a message that is not a valid envelope straight to the
// dead-letter sink, keeping the raw bytes.
func undecodable(ctx context.Context, dlq events.DeadLetter, id, source string, raw []byte, err error) {
	payload := json.RawMessage(raw)
	if !json.Valid(raw) {
		payload, _ = json.Marshal(string(raw))
	}
	f := events.Failure{
		Event:    events.Envelope{ID: id, Type: source, Payload: payload},
		Handler:  "decode",
		Error:    err.Error(),
		FailedAt: time.Now().UTC(),
	}
	log.Warn().Err(err).Str("event_id", id).Str("source", source).Msg("undecodable event")
	if dlqErr := dlq.Publish(ctx, f); dlqErr != nil {
		log.Error().Err(dlqErr).Str("event_id", id).Msg("dead-letter publish failed, event lost")
	}
}

func encodeFailure(f events.Failure) ([]byte, error) {
	return json.Marshal(f)
}
