package handlers

import (
	"context"

	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/events"
	"vn.io.arda/marketplace-notification/internal/messages"
)

type orderCreatedPayload struct {
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	UserID      string             `json:"userId"`
	Email       string             `json:"email"`
	Items       []domain.OrderItem `json:"items"`
	Total       float64            `json:"total"`
}

func (h *handlers) orderCreated(ctx context.Context, env events.Envelope) error {
	var p orderCreatedPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	_, err := h.notifier.SendOrderConfirmation(ctx, domain.OrderConfirmation{
		UserID:      p.UserID,
		OrderID:     p.OrderID,
		OrderNumber: p.OrderNumber,
		Email:       h.emailFor(ctx, p.UserID, p.Email),
		Items:       p.Items,
		Total:       p.Total,
		EventID:     env.ID,
	})
	return err
}

type orderCancelledPayload struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Reason      string `json:"reason"`
}

// orderCancelled records an in-app notification only; no email is sent.
func (h *handlers) orderCancelled(ctx context.Context, env events.Envelope) error {
	var p orderCancelledPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	number := p.OrderNumber
	if number == "" {
		number = p.OrderID
	}
	subject, content := messages.OrderCancelled(number, p.Reason)
	_, err := h.notifier.SendToUser(ctx, domain.SendToUserInput{
		UserID:   p.UserID,
		Kind:     domain.KindOrderCancelled,
		Subject:  subject,
		Content:  content,
		Metadata: map[string]any{"orderId": p.OrderID, "orderNumber": p.OrderNumber, "reason": p.Reason},
		EventID:  env.ID,
	})
	return err
}
