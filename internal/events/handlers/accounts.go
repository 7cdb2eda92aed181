package handlers

import (
	"context"

	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/events"
	"vn.io.arda/marketplace-notification/internal/messages"
)

type sellerApprovedPayload struct {
	SellerID  string `json:"sellerId"`
	UserID    string `json:"userId"`
	StoreName string `json:"storeName"`
	Email     string `json:"email"`
}

func (h *handlers) sellerApproved(ctx context.Context, env events.Envelope) error {
	var p sellerApprovedPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	subject, content := messages.SellerApproved(p.StoreName)
	_, err := h.notifier.SendToUser(ctx, domain.SendToUserInput{
		UserID:   p.UserID,
		Kind:     domain.KindSellerApproved,
		Subject:  subject,
		Content:  content,
		Email:    h.emailFor(ctx, p.UserID, p.Email),
		Metadata: map[string]any{"sellerId": p.SellerID, "storeName": p.StoreName},
		EventID:  env.ID,
	})
	return err
}

type userRegisteredPayload struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
}

func (h *handlers) userRegistered(ctx context.Context, env events.Envelope) error {
	var p userRegisteredPayload
	if err := env.Bind(&p); err != nil {
		return err
	}
	if err := requireUser(env.Type, p.UserID); err != nil {
		return err
	}
	subject, content := messages.Welcome(p.FirstName)
	_, err := h.notifier.SendToUser(ctx, domain.SendToUserInput{
		UserID:  p.UserID,
		Kind:    domain.KindWelcome,
		Subject: subject,
		Content: content,
		Email:   p.Email,
		EventID: env.ID,
	})
	return err
}
