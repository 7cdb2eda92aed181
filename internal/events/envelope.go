// Package events holds the domain-event envelope, the event-type dispatch
// table and the router that isolates handler failures from the bus.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"vn.io.arda/marketplace-notification/internal/domain"
)

// Envelope is the wire shape shared by every producer on the bus.
type Envelope struct {
	ID         string          `json:"id,omitempty"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt *time.Time      `json:"occurredAt,omitempty"`
}

// Decode parses an envelope. Producers that still emit the older
// eventId/eventType field names are accepted as well.
func Decode(data []byte) (Envelope, error) {
	var raw struct {
		Envelope
		EventID   string `json:"eventId"`
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	env := raw.Envelope
	if env.ID == "" {
		env.ID = raw.EventID
	}
	if env.Type == "" {
		env.Type = raw.EventType
	}
	return env, nil
}

// Bind decodes the payload into v.
func (e Envelope) Bind(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return fmt.Errorf("%s: empty payload: %w", e.Type, domain.ErrInvalidInput)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %v: %w", e.Type, err, domain.ErrInvalidInput)
	}
	return nil
}
