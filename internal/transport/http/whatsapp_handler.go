package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/application"
	"vn.io.arda/marketplace-notification/internal/channel"
	"vn.io.arda/marketplace-notification/internal/domain"
)

type sendWhatsAppRequest struct {
	To       string `json:"to" validate:"required"`
	Message  string `json:"message" validate:"required_without=MediaURL"`
	MediaURL string `json:"mediaUrl" validate:"omitempty,url"`
	UserID   string `json:"userId"`
	SellerID string `json:"sellerId"`
	TicketID string `json:"ticketId"`
}

type createTemplateRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	Category   string   `json:"category" validate:"max=50"`
	Content    string   `json:"content" validate:"required"`
	Variables  []string `json:"variables" validate:"dive,required"`
	IsActive   *bool    `json:"isActive"`
	ApprovedBy string   `json:"approvedBy"`
}

type sendTemplateRequest struct {
	To           string            `json:"to" validate:"required"`
	TemplateName string            `json:"templateName" validate:"required"`
	Variables    map[string]string `json:"variables"`
}

// SendWhatsApp POST /whatsapp/send
func (h *Handler) SendWhatsApp(c echo.Context) error {
	var req sendWhatsAppRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.conversations.Send(c.Request().Context(), application.SendWhatsAppInput{
		To:       req.To,
		Message:  req.Message,
		MediaURL: req.MediaURL,
		Correlation: domain.Correlation{
			UserID:   req.UserID,
			SellerID: req.SellerID,
			TicketID: req.TicketID,
		},
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Webhook POST /whatsapp/webhook
//
// The provider posts form-encoded fields and signs the URL plus the sorted
// form parameters. Unsigned or mis-signed requests are rejected before any
// field is trusted.
func (h *Handler) Webhook(c echo.Context) error {
	req := c.Request()
	if err := req.ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}

	params := make(map[string]string, len(req.PostForm))
	for k, v := range req.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	if !h.verifier.Verify(h.signedURL(c), params, req.Header.Get(channel.SignatureHeader)) {
		log.Warn().Str("remote_ip", c.RealIP()).Msg("whatsapp webhook signature rejected")
		return echo.NewHTTPError(http.StatusForbidden, "invalid signature")
	}

	_, err := h.conversations.HandleWebhook(req.Context(), application.InboundWhatsApp{
		From:              params["From"],
		To:                params["To"],
		Body:              params["Body"],
		ProviderMessageID: params["MessageSid"],
		MediaURL:          params["MediaUrl0"],
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) signedURL(c echo.Context) string {
	if h.webhookURL != "" {
		return h.webhookURL
	}
	return c.Scheme() + "://" + c.Request().Host + c.Request().RequestURI
}

// ListConversations GET /whatsapp/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	limit, offset := application.ConversationPage(
		parseIntQuery(c, "limit", application.DefaultConversationPage),
		parseIntQuery(c, "offset", 0),
	)

	convs, err := h.conversations.ListConversations(c.Request().Context(), limit, offset)
	if err != nil {
		return toHTTPError(err)
	}
	if convs == nil {
		convs = []*domain.Conversation{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":   convs,
		"limit":  limit,
		"offset": offset,
	})
}

// ListMessages GET /whatsapp/conversations/:id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	msgs, err := h.conversations.ListMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": msgs})
}

// CreateTemplate POST /whatsapp/templates
func (h *Handler) CreateTemplate(c echo.Context) error {
	var req createTemplateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	t, err := h.conversations.CreateTemplate(c.Request().Context(), application.CreateTemplateInput{
		Name:       strings.TrimSpace(req.Name),
		Category:   req.Category,
		Content:    req.Content,
		Variables:  req.Variables,
		IsActive:   req.IsActive,
		ApprovedBy: req.ApprovedBy,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, t)
}

// ListTemplates GET /whatsapp/templates
func (h *Handler) ListTemplates(c echo.Context) error {
	ts, err := h.conversations.ListTemplates(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	if ts == nil {
		ts = []*domain.Template{}
	}
	return c.JSON(http.StatusOK, map[string]any{"data": ts})
}

// SendTemplate POST /whatsapp/send-template
func (h *Handler) SendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	m, err := h.conversations.SendTemplateMessage(c.Request().Context(), req.To, req.TemplateName, req.Variables)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, m)
}
