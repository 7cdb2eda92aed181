package handlers

import (
	"context"

	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/events"
	"vn.io.arda/marketplace-notification/internal/messages"
)

type paymentPayload struct {
	PaymentID string  `json:"paymentId"`
	UserID    string  `json:"userId"`
	Email     string  `json:"email"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reason    string  `json:"reason"`
}

func (p paymentPayload) metadata() map[string]any {
	m := map[string]any{"paymentId": p.PaymentID, "amount": p.Amount, "currency": p.Currency}
	if p.Reason != "" {
		m["reason"] = p.Reason
	}
	return m
}

func (h *handlers) paymentCompleted(ctx context.Context, env events.Envelope) error {
	var p paymentPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	subject, content := messages.PaymentReceived(p.PaymentID, p.Amount, p.Currency)
	_, err := h.notifier.SendToUser(ctx, domain.SendToUserInput{
		UserID:   p.UserID,
		Kind:     domain.KindPaymentReceived,
		Subject:  subject,
		Content:  content,
		Email:    h.emailFor(ctx, p.UserID, p.Email),
		Metadata: p.metadata(),
		EventID:  env.ID,
	})
	return err
}

func (h *handlers) paymentFailed(ctx context.Context, env events.Envelope) error {
	var p paymentPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	subject, content := messages.PaymentFailed(p.PaymentID, p.Amount, p.Currency, p.Reason)
	_, err := h.notifier.SendToUser(ctx, domain.SendToUserInput{
		UserID:   p.UserID,
		Kind:     domain.KindPaymentFailed,
		Subject:  subject,
		Content:  content,
		Email:    h.emailFor(ctx, p.UserID, p.Email),
		Metadata: p.metadata(),
		EventID:  env.ID,
	})
	return err
}
