package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/application"
	"vn.io.arda/marketplace-notification/internal/channel"
	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/transport/mw"
)

// NotificationService is the part of the dispatcher exposed over HTTP.
type NotificationService interface {
	List(ctx context.Context, userID string) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error)
}

// ConversationService is the WhatsApp conversation manager exposed over HTTP.
type ConversationService interface {
	Send(ctx context.Context, in application.SendWhatsAppInput) (*domain.Message, error)
	HandleWebhook(ctx context.Context, in application.InboundWhatsApp) (*domain.Message, error)
	SendTemplateMessage(ctx context.Context, to, name string, vars map[string]string) (*domain.Message, error)
	CreateTemplate(ctx context.Context, in application.CreateTemplateInput) (*domain.Template, error)
	ListTemplates(ctx context.Context) ([]*domain.Template, error)
	ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

// Handler holds all HTTP handler methods.
type Handler struct {
	notifications NotificationService
	conversations ConversationService
	verifier      channel.SignatureVerifier
	webhookURL    string
	hub           *Hub
}

// NewHandler creates a new Handler. webhookURL is the public URL the provider
// signs; when empty it is rebuilt from the request.
func NewHandler(notifications NotificationService, conversations ConversationService, verifier channel.SignatureVerifier, webhookURL string, hub *Hub) *Handler {
	return &Handler{
		notifications: notifications,
		conversations: conversations,
		verifier:      verifier,
		webhookURL:    webhookURL,
		hub:           hub,
	}
}

// --- Notifications ---

// ListNotifications GET /notifications
func (h *Handler) ListNotifications(c echo.Context) error {
	userID := mustUser(c)

	notifications, err := h.notifications.List(c.Request().Context(), userID)
	if err != nil {
		return toHTTPError(err)
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  notifications,
		"limit": application.MaxListed,
	})
}

// GetUnreadCount GET /notifications/unread-count
func (h *Handler) GetUnreadCount(c echo.Context) error {
	count, err := h.notifications.CountUnread(c.Request().Context(), mustUser(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"count": count})
}

// MarkRead PATCH /notifications/:id/read
func (h *Handler) MarkRead(c echo.Context) error {
	n, err := h.notifications.MarkRead(c.Request().Context(), c.Param("id"), mustUser(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, n)
}

// --- SSE Handler ---

// Stream GET /notifications/stream
func (h *Handler) Stream(c echo.Context) error {
	userID := mustUser(c)

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable proxy buffering

	sendCh := make(chan []byte, 32)
	client := h.hub.Register(userID, sendCh)
	defer h.hub.Unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
	w.Flush()

	log.Info().Str("user_id", userID).Msg("SSE stream opened")

	ctx := c.Request().Context()
	for {
		select {
		case msg, ok := <-sendCh:
			if !ok {
				return nil
			}
			if _, err := w.Write(msg); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			log.Info().Str("user_id", userID).Msg("SSE stream closed by client")
			return nil
		}
	}
}

// --- Healthcheck ---

// Health GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"sse_clients": h.hub.ConnectedCount(),
	})
}

// --- Helpers ---

func mustUser(c echo.Context) string {
	userID, _ := c.Get(mw.UserIDKey).(string)
	return userID
}

func parseIntQuery(c echo.Context, key string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// buildSSEMessage formats a notification as an SSE data frame.
func buildSSEMessage(n any) []byte {
	b, _ := json.Marshal(n)
	return []byte("event: notification\ndata: " + string(b) + "\n\n")
}
