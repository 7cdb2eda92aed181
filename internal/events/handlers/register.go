// Package handlers turns marketplace domain events into dispatcher calls.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/events"
)

// Event types consumed from the bus.
const (
	OrderCreated      = "order.created"
	OrderCancelled    = "order.cancelled"
	PaymentCompleted  = "payment.completed"
	PaymentFailed     = "payment.failed"
	ShipmentShipped   = "shipment.shipped"
	ShipmentDelivered = "shipment.delivered"
	SellerApproved    = "seller.approved"
	UserRegistered    = "auth.user.registered"
)

// Notifier is the dispatcher surface the handlers drive.
type Notifier interface {
	SendToUser(ctx context.Context, in domain.SendToUserInput) (*domain.Notification, error)
	SendOrderConfirmation(ctx context.Context, o domain.OrderConfirmation) (*domain.Notification, error)
	SendOrderShipped(ctx context.Context, s domain.ShipmentNotice) (*domain.Notification, error)
	SendOrderDelivered(ctx context.Context, s domain.ShipmentNotice) (*domain.Notification, error)
}

// Deps are the collaborators shared by all handlers. Directory may be nil.
type Deps struct {
	Notifier  Notifier
	Directory domain.Directory
}

type handlers struct {
	notifier Notifier
	dir      domain.Directory
}

// Register binds the eight marketplace handlers into reg.
func Register(reg *events.Registry, deps Deps) {
	h := &handlers{notifier: deps.Notifier, dir: deps.Directory}

	reg.Register(OrderCreated, h.orderCreated)
	reg.Register(OrderCancelled, h.orderCancelled)
	reg.Register(PaymentCompleted, h.paymentCompleted)
	reg.Register(PaymentFailed, h.paymentFailed)
	reg.Register(ShipmentShipped, h.shipmentShipped)
	reg.Register(ShipmentDelivered, h.shipmentDelivered)
	reg.Register(SellerApproved, h.sellerApproved)
	reg.Register(UserRegistered, h.userRegistered)
}

// emailFor prefers the address carried by the event and falls back to the
// directory. An empty result is tolerated by every dispatcher flow.
func (h *handlers) emailFor(ctx context.Context, userID, given string) string {
	if given != "" || h.dir == nil {
		return given
	}
	email, err := h.dir.UserEmail(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUnavailable) {
			log.Warn().Err(err).Str("user_id", userID).Msg("user email lookup failed")
		}
		return ""
	}
	return email
}

func requireUser(eventType, userID string) error {
	if userID == "" {
		return fmt.Errorf("%s: missing userId: %w", eventType, domain.ErrInvalidInput)
	}
	return nil
}
