package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/events"
)

type shipmentPayload struct {
	ShipmentID     string `json:"shipmentId"`
	OrderID        string `json:"orderId"`
	TrackingNumber string `json:"trackingNumber"`
}

// Shipment events carry no user. The owner comes from the order directory;
// when it cannot be resolved the event is logged and consumed.

func (h *handlers) shipmentShipped(ctx context.Context, env events.Envelope) error {
	notice, ok, err := h.shipmentNotice(ctx, env)
	if !ok || err != nil {
		return err
	}
	_, err = h.notifier.SendOrderShipped(ctx, notice)
	return err
}

func (h *handlers) shipmentDelivered(ctx context.Context, env events.Envelope) error {
	notice, ok, err := h.shipmentNotice(ctx, env)
	if !ok || err != nil {
		return err
	}
	_, err = h.notifier.SendOrderDelivered(ctx, notice)
	return err
}

func (h *handlers) shipmentNotice(ctx context.Context, env events.Envelope) (domain.ShipmentNotice, bool, error) {
	var p shipmentPayload
	if err := env.Bind(&p); err != nil {
		return domain.ShipmentNotice{}, false, err
	}
	if p.OrderID == "" {
		return domain.ShipmentNotice{}, false, fmt.Errorf("%s: missing orderId: %w", env.Type, domain.ErrInvalidInput)
	}

	logger := log.With().
		Str("event_type", env.Type).
		Str("event_id", env.ID).
		Str("order_id", p.OrderID).
		Str("shipment_id", p.ShipmentID).
		Str("tracking_number", p.TrackingNumber).
		Logger()

	if h.dir == nil {
		logger.Info().Msg("shipment event received, order owner unknown, no notification sent")
		return domain.ShipmentNotice{}, false, nil
	}
	owner, err := h.dir.OrderOwner(ctx, p.OrderID)
	switch {
	case errors.Is(err, domain.ErrUnavailable):
		logger.Info().Msg("shipment event received, order owner unknown, no notification sent")
		return domain.ShipmentNotice{}, false, nil
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn().Err(err).Msg("order owner not found, no notification sent")
		return domain.ShipmentNotice{}, false, nil
	case err != nil:
		return domain.ShipmentNotice{}, false, fmt.Errorf("%s: resolve order owner: %w", env.Type, err)
	}

	return domain.ShipmentNotice{
		UserID:         owner.UserID,
		OrderID:        p.OrderID,
		OrderNumber:    owner.OrderNumber,
		ShipmentID:     p.ShipmentID,
		TrackingNumber: p.TrackingNumber,
		Email:          h.emailFor(ctx, owner.UserID, owner.Email),
		EventID:        env.ID,
	}, true, nil
}
