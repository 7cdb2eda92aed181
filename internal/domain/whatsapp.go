package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	ConversationActive ConversationStatus = "ACTIVE"
	ConversationClosed ConversationStatus = "CLOSED"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageFailed    MessageStatus = "FAILED"
)

// Conversation groups messages to and from one phone number.
type Conversation struct {
	ID            uuid.UUID          `json:"id"`
	PhoneNumber   string             `json:"phone_number"`
	UserID        *string            `json:"user_id,omitempty"`
	SellerID      *string            `json:"seller_id,omitempty"`
	TicketID      *string            `json:"ticket_id,omitempty"`
	Status        ConversationStatus `json:"status"`
	LastMessageAt time.Time          `json:"last_message_at"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Correlation links a conversation to records owned by other services.
type Correlation struct {
	UserID   string `json:"userId,omitempty"`
	SellerID string `json:"sellerId,omitempty"`
	TicketID string `json:"ticketId,omitempty"`
}

// Message is one WhatsApp message within a conversation.
type Message struct {
	ID                uuid.UUID        `json:"id"`
	ConversationID    uuid.UUID        `json:"conversation_id"`
	ProviderMessageID string           `json:"provider_message_id"`
	Direction         MessageDirection `json:"direction"`
	Content           string           `json:"content"`
	MediaURL          *string          `json:"media_url,omitempty"`
	Status            MessageStatus    `json:"status"`
	DeliveredAt       *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// AppendMessageInput is persisted together with the conversation's lastMessageAt bump.
type AppendMessageInput struct {
	ConversationID    uuid.UUID
	ProviderMessageID string
	Direction         MessageDirection
	Content           string
	MediaURL          string
	Status            MessageStatus
	DeliveredAt       *time.Time
}

// Template is a reusable parametric WhatsApp message.
type Template struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Variables  []string  `json:"variables"`
	IsActive   bool      `json:"is_active"`
	ApprovedBy *string   `json:"approved_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Render substitutes the declared variables only, in a single pass. Any other
// {{...}} token, including one carried inside a value, stays literal.
func (t *Template) Render(values map[string]string) string {
	pairs := make([]string, 0, 2*len(t.Variables))
	for _, name := range t.Variables {
		if v, ok := values[name]; ok {
			pairs = append(pairs, "{{"+name+"}}", v)
		}
	}
	if len(pairs) == 0 {
		return t.Content
	}
	return strings.NewReplacer(pairs...).Replace(t.Content)
}

var variableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidVariableName reports whether name can be used as a template placeholder.
func ValidVariableName(name string) bool {
	return variableName.MatchString(name)
}

// WhatsAppPrefix is the channel prefix Twilio puts in front of phone numbers.
const WhatsAppPrefix = "whatsapp:"

// NormalizePhone strips the channel prefix and surrounding whitespace.
func NormalizePhone(addr string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(addr), WhatsAppPrefix))
}

var e164 = regexp.MustCompile(`^\+?[1-9][0-9]{6,14}$`)

// ValidPhone reports whether phone looks like an E.164 number.
func ValidPhone(phone string) bool {
	return e164.MatchString(phone)
}
