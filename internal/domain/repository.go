package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationRepository defines the port for notification persistence.
// Implementations live in infrastructure/postgres.
type NotificationRepository interface {
	// Create stores a new notification. It returns (nil, nil) when a row with the
	// same SourceEventID already exists.
	Create(ctx context.Context, input CreateNotificationInput) (*Notification, error)

	// UpdateStatus moves a PENDING notification to a terminal status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status NotificationStatus, sentAt *time.Time) error

	// ListByUser returns the newest notifications of a user first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)

	// CountUnread returns the number of unread notifications for a user.
	CountUnread(ctx context.Context, userID string) (int64, error)

	// MarkRead sets readAt on a notification owned by userID.
	MarkRead(ctx context.Context, id uuid.UUID, userID string) (*Notification, error)

	// PurgeReadOlderThan deletes read notifications older than the given number of days.
	PurgeReadOlderThan(ctx context.Context, days int) (int64, error)
}

// ConversationRepository owns WhatsApp conversations, messages and templates.
type ConversationRepository interface {
	// GetOrCreateActive atomically returns the ACTIVE conversation for phone,
	// creating it when none exists.
	GetOrCreateActive(ctx context.Context, phone string, corr Correlation) (*Conversation, error)

	// AppendMessage stores a message and bumps the conversation's lastMessageAt.
	AppendMessage(ctx context.Context, input AppendMessageInput) (*Message, error)

	ListConversations(ctx context.Context, limit, offset int) ([]*Conversation, error)

	// ListMessages returns the conversation's messages in createdAt ascending order.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*Message, error)

	// CreateTemplate returns ErrDuplicate when the name is taken.
	CreateTemplate(ctx context.Context, t *Template) (*Template, error)

	// TemplateByName returns ErrNotFound when absent.
	TemplateByName(ctx context.Context, name string) (*Template, error)

	ListTemplates(ctx context.Context) ([]*Template, error)
}

// Directory enriches event payloads with data owned by other services.
type Directory interface {
	UserEmail(ctx context.Context, userID string) (string, error)
	OrderOwner(ctx context.Context, orderID string) (*OrderOwner, error)
}
