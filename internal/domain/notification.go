package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies what a notification is about.
type NotificationKind string

const (
	KindOrderConfirmation NotificationKind = "ORDER_CONFIRMATION"
	KindOrderShipped      NotificationKind = "ORDER_SHIPPED"
	KindOrderDelivered    NotificationKind = "ORDER_DELIVERED"
	KindOrderCancelled    NotificationKind = "ORDER_CANCELLED"
	KindPaymentReceived   NotificationKind = "PAYMENT_RECEIVED"
	KindPaymentFailed     NotificationKind = "PAYMENT_FAILED"
	KindSellerApproved    NotificationKind = "SELLER_APPROVED"
	KindWelcome           NotificationKind = "WELCOME"
	KindGeneric           NotificationKind = "GENERIC"
)

// NotificationStatus is the delivery status of a notification.
// PENDING is the only non-terminal value.
type NotificationStatus string

const (
	StatusPending NotificationStatus = "PENDING"
	StatusSent    NotificationStatus = "SENT"
	StatusFailed  NotificationStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s NotificationStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Notification is one attempted user-facing notification.
type Notification struct {
	ID            uuid.UUID          `json:"id"`
	UserID        string             `json:"user_id"`
	Kind          NotificationKind   `json:"kind"`
	Subject       string             `json:"subject"`
	Content       string             `json:"content"`
	Email         *string            `json:"email,omitempty"`
	Status        NotificationStatus `json:"status"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	ReadAt        *time.Time         `json:"read_at,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
	SourceEventID string             `json:"source_event_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// CreateNotificationInput is what the dispatcher persists before calling a channel.
// A non-empty SourceEventID makes the insert idempotent.
type CreateNotificationInput struct {
	UserID        string
	Kind          NotificationKind
	Subject       string
	Content       string
	Email         *string
	Status        NotificationStatus
	Metadata      map[string]any
	SourceEventID string
}

// SendToUserInput is the generic "send" intent.
type SendToUserInput struct {
	UserID   string
	Kind     NotificationKind
	Subject  string
	Content  string
	Email    string
	Metadata map[string]any
	EventID  string
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderConfirmation carries what the order confirmation email needs.
type OrderConfirmation struct {
	UserID      string
	OrderID     string
	OrderNumber string
	Email       string
	Items       []OrderItem
	Total       float64
	EventID     string
}

// ShipmentNotice carries what the shipped/delivered emails need.
type ShipmentNotice struct {
	UserID         string
	OrderID        string
	OrderNumber    string
	ShipmentID     string
	TrackingNumber string
	Email          string
	EventID        string
}

// OrderOwner is the enrichment result for an order id.
type OrderOwner struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	UserID      string `json:"userId"`
	Email       string `json:"email"`
}
