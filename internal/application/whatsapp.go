package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/channel"
	"vn.io.arda/marketplace-notification/internal/domain"
)

// SendWhatsAppInput is an outbound message request.
type SendWhatsAppInput struct {
	To          string
	Message     string
	MediaURL    string
	Correlation domain.Correlation
}

// InboundWhatsApp is the part of a provider webhook this service stores.
type InboundWhatsApp struct {
	From              string
	To                string
	Body              string
	ProviderMessageID string
	MediaURL          string
}

// CreateTemplateInput is an admin request to register a template.
type CreateTemplateInput struct {
	Name       string
	Category   string
	Content    string
	Variables  []string
	IsActive   *bool
	ApprovedBy string
}

// Conversations manages WhatsApp conversations for both ingress paths.
type Conversations struct {
	repo     domain.ConversationRepository
	provider channel.WhatsApp
	now      func() time.Time
}

func NewConversations(repo domain.ConversationRepository, provider channel.WhatsApp) *Conversations {
	return &Conversations{repo: repo, provider: provider, now: time.Now}
}

// Send delivers an outbound message. A provider failure is not an error: the
// message is stored as FAILED under a synthesized id and the conversation is
// still touched.
func (s *Conversations) Send(ctx context.Context, in SendWhatsAppInput) (*domain.Message, error) {
	phone := domain.NormalizePhone(in.To)
	if !domain.ValidPhone(phone) {
		return nil, fmt.Errorf("recipient %q: %w", in.To, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Message) == "" && in.MediaURL == "" {
		return nil, fmt.Errorf("empty message: %w", domain.ErrInvalidInput)
	}

	conv, err := s.repo.GetOrCreateActive(ctx, phone, in.Correlation)
	if err != nil {
		return nil, err
	}

	status := domain.MessageSent
	providerID, err := s.provider.Send(ctx, phone, in.Message, in.MediaURL)
	if err != nil {
		status = domain.MessageFailed
		providerID = "failed_" + uuid.NewString()
		log.Error().Err(err).Str("phone", phone).Str("conversation_id", conv.ID.String()).
			Msg("whatsapp provider send failed")
	}

	m, err := s.repo.AppendMessage(ctx, domain.AppendMessageInput{
		ConversationID:    conv.ID,
		ProviderMessageID: providerID,
		Direction:         domain.DirectionOutbound,
		Content:           in.Message,
		MediaURL:          in.MediaURL,
		Status:            status,
	})
	if err != nil {
		return nil, fmt.Errorf("store outbound message: %w", err)
	}

	whatsappMessages.WithLabelValues(string(domain.DirectionOutbound), string(status)).Inc()
	log.Info().
		Str("conversation_id", conv.ID.String()).
		Str("phone", phone).
		Str("provider_message_id", providerID).
		Str("status", string(status)).
		Bool("mock", !s.provider.Configured()).
		Msg("whatsapp message sent")
	return m, nil
}

// HandleWebhook stores an inbound message. The caller must have verified the
// provider signature already.
func (s *Conversations) HandleWebhook(ctx context.Context, in InboundWhatsApp) (*domain.Message, error) {
	phone := domain.NormalizePhone(in.From)
	if !domain.ValidPhone(phone) {
		return nil, fmt.Errorf("sender %q: %w", in.From, domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.Body) == "" && in.MediaURL == "" {
		return nil, fmt.Errorf("inbound message without body or media: %w", domain.ErrInvalidInput)
	}

	conv, err := s.repo.GetOrCreateActive(ctx, phone, domain.Correlation{})
	if err != nil {
		return nil, err
	}

	providerID := in.ProviderMessageID
	if providerID == "" {
		providerID = "inbound_" + uuid.NewString()
	}
	now := s.now().UTC()
	m, err := s.repo.AppendMessage(ctx, domain.AppendMessageInput{
		ConversationID:    conv.ID,
		ProviderMessageID: providerID,
		Direction:         domain.DirectionInbound,
		Content:           in.Body,
		MediaURL:          in.MediaURL,
		Status:            domain.MessageDelivered,
		DeliveredAt:       &now,
	})
	if err != nil {
		return nil, fmt.Errorf("store inbound message: %w", err)
	}

	whatsappMessages.WithLabelValues(string(domain.DirectionInbound), string(domain.MessageDelivered)).Inc()
	log.Info().Str("conversation_id", conv.ID.String()).Str("phone", phone).Msg("whatsapp message received")
	return m, nil
}

// SendTemplateMessage renders an active template and sends it.
func (s *Conversations) SendTemplateMessage(ctx context.Context, to, name string, vars map[string]string) (*domain.Message, error) {
	t, err := s.repo.TemplateByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, fmt.Errorf("template %q: %w", name, domain.ErrTemplateInactive)
	}
	return s.Send(ctx, SendWhatsAppInput{To: to, Message: t.Render(vars)})
}

func (s *Conversations) CreateTemplate(ctx context.Context, in CreateTemplateInput) (*domain.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("template name and content are required: %w", domain.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(in.Variables))
	for _, v := range in.Variables {
		if !domain.ValidVariableName(v) || seen[v] {
			return nil, fmt.Errorf("template variable %q: %w", v, domain.ErrInvalidInput)
		}
		seen[v] = true
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return s.repo.CreateTemplate(ctx, &domain.Template{
		Name:       name,
		Category:   in.Category,
		Content:    in.Content,
		Variables:  in.Variables,
		IsActive:   active,
		ApprovedBy: optional(in.ApprovedBy),
	})
}

func (s *Conversations) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	return s.repo.ListTemplates(ctx)
}

const (
	DefaultConversationPage = 20
	MaxConversationPage     = 100
)

// ConversationPage returns the limit and offset ListConversations actually applies.
func ConversationPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxConversationPage {
		limit = DefaultConversationPage
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Conversations) ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	limit, offset = ConversationPage(limit, offset)
	return s.repo.ListConversations(ctx, limit, offset)
}

func (s *Conversations) ListMessages(ctx context.Context, idStr string) ([]*domain.Message, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("conversation id %q: %w", idStr, domain.ErrInvalidInput)
	}
	return s.repo.ListMessages(ctx, id)
}
