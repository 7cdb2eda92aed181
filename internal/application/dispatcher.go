package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"vn.io.arda/marketplace-notification/internal/channel"
	"vn.io.arda/marketplace-notification/internal/domain"
	"vn.io.arda/marketplace-notification/internal/messages"
	"vn.io.arda/marketplace-notification/internal/templates"
)

// MaxListed caps GET /notifications.
const MaxListed = 50

// Broadcaster pushes a freshly stored notification to live clients.
// Implementation lives in transport/http/sse_hub.go.
type Broadcaster interface {
	Broadcast(userID string, n *domain.Notification)
}

// DispatcherOptions tweaks the status contract of SendToUser.
type DispatcherOptions struct {
	// StrictStatus records the real email outcome in SendToUser instead of SENT.
	StrictStatus bool
}

// Dispatcher renders, sends and records notifications.
type Dispatcher struct {
	repo  domain.NotificationRepository
	email channel.Email
	hub   Broadcaster
	opts  DispatcherOptions
	now   func() time.Time
}

// NewDispatcher creates a Dispatcher. hub may be nil.
func NewDispatcher(repo domain.NotificationRepository, email channel.Email, hub Broadcaster, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{repo: repo, email: email, hub: hub, opts: opts, now: time.Now}
}

// SendToUser always stores one notification row. When an email address is
// given, the generic template is sent. Unless StrictStatus is set, the row ends
// up SENT whatever the email outcome.
func (d *Dispatcher) SendToUser(ctx context.Context, in domain.SendToUserInput) (*domain.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("send to user: missing user id: %w", domain.ErrInvalidInput)
	}
	if in.Kind == "" {
		in.Kind = domain.KindGeneric
	}

	n, err := d.create(ctx, domain.CreateNotificationInput{
		UserID:        in.UserID,
		Kind:          in.Kind,
		Subject:       in.Subject,
		Content:       in.Content,
		Email:         optional(in.Email),
		Metadata:      in.Metadata,
		SourceEventID: in.EventID,
	})
	if n == nil || err != nil {
		return nil, err
	}

	delivered := true
	if in.Email != "" {
		delivered = d.sendGeneric(ctx, in.Email, in.Subject, in.Content)
	}

	status := domain.StatusSent
	if d.opts.StrictStatus && !delivered {
		status = domain.StatusFailed
	}
	return d.finish(ctx, n, status)
}

func (d *Dispatcher) sendGeneric(ctx context.Context, to, subject, content string) bool {
	email, err := templates.Generic(subject, content)
	if err != nil {
		log.Error().Err(err).Msg("render generic email")
		return false
	}
	return d.email.Send(ctx, to, email.Subject, email.HTML)
}

// SendOrderConfirmation emails the order summary. Without a destination the
// channel is skipped and the row stays PENDING with a null email.
func (d *Dispatcher) SendOrderConfirmation(ctx context.Context, o domain.OrderConfirmation) (*domain.Notification, error) {
	email, err := templates.OrderConfirmation(o)
	if err != nil {
		return nil, err
	}
	return d.sendSpecialized(ctx, o.Email, email, domain.CreateNotificationInput{
		UserID:        o.UserID,
		Kind:          domain.KindOrderConfirmation,
		Subject:       email.Subject,
		Content:       messages.OrderConfirmed(label(o.OrderNumber, o.OrderID), o.Total),
		Metadata:      map[string]any{"orderId": o.OrderID, "orderNumber": o.OrderNumber},
		SourceEventID: o.EventID,
	})
}

func (d *Dispatcher) SendOrderShipped(ctx context.Context, s domain.ShipmentNotice) (*domain.Notification, error) {
	email, err := templates.OrderShipped(s)
	if err != nil {
		return nil, err
	}
	return d.sendSpecialized(ctx, s.Email, email, domain.CreateNotificationInput{
		UserID:        s.UserID,
		Kind:          domain.KindOrderShipped,
		Subject:       email.Subject,
		Content:       messages.OrderShipped(label(s.OrderNumber, s.OrderID), s.TrackingNumber),
		Metadata:      map[string]any{"orderId": s.OrderID, "shipmentId": s.ShipmentID, "trackingNumber": s.TrackingNumber},
		SourceEventID: s.EventID,
	})
}

func (d *Dispatcher) SendOrderDelivered(ctx context.Context, s domain.ShipmentNotice) (*domain.Notification, error) {
	email, err := templates.OrderDelivered(s)
	if err != nil {
		return nil, err
	}
	return d.sendSpecialized(ctx, s.Email, email, domain.CreateNotificationInput{
		UserID:        s.UserID,
		Kind:          domain.KindOrderDelivered,
		Subject:       email.Subject,
		Content:       messages.OrderDelivered(label(s.OrderNumber, s.OrderID)),
		Metadata:      map[string]any{"orderId": s.OrderID, "shipmentId": s.ShipmentID},
		SourceEventID: s.EventID,
	})
}

// sendSpecialized moves the row to SENT only on a confirmed channel success.
// Any other outcome leaves it PENDING.
func (d *Dispatcher) sendSpecialized(ctx context.Context, to string, email templates.Email, in domain.CreateNotificationInput) (*domain.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%s: missing user id: %w", in.Kind, domain.ErrInvalidInput)
	}
	if to == "" {
		log.Warn().Str("user_id", in.UserID).Str("kind", string(in.Kind)).
			Msg("no destination email, notification left pending")
	}
	in.Email = optional(to)

	n, err := d.create(ctx, in)
	if n == nil || err != nil {
		return nil, err
	}
	if to == "" || !d.email.Send(ctx, to, email.Subject, email.HTML) {
		return d.finish(ctx, n, domain.StatusPending)
	}
	return d.finish(ctx, n, domain.StatusSent)
}

// create stores the PENDING row. A nil notification with a nil error means the
// source event was already handled.
func (d *Dispatcher) create(ctx context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	in.Status = domain.StatusPending
	n, err := d.repo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if n == nil {
		notificationsDuplicate.Inc()
		log.Info().Str("event_id", in.SourceEventID).Str("kind", string(in.Kind)).
			Msg("duplicate event, notification already dispatched")
	}
	return n, nil
}

func (d *Dispatcher) finish(ctx context.Context, n *domain.Notification, status domain.NotificationStatus) (*domain.Notification, error) {
	if status != domain.StatusPending {
		sentAt := d.now().UTC()
		if err := d.repo.UpdateStatus(ctx, n.ID, status, &sentAt); err != nil {
			return n, fmt.Errorf("record status %s: %w", status, err)
		}
		n.Status = status
		n.SentAt = &sentAt
	}

	notificationsDispatched.WithLabelValues(string(n.Kind), string(n.Status)).Inc()
	if d.hub != nil {
		// Non-blocking SSE broadcast
		go d.hub.Broadcast(n.UserID, n)
	}

	log.Info().
		Str("notification_id", n.ID.String()).
		Str("user_id", n.UserID).
		Str("kind", string(n.Kind)).
		Str("status", string(n.Status)).
		Msg("notification dispatched")
	return n, nil
}

// List returns the newest notifications of a user, at most MaxListed.
func (d *Dispatcher) List(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return d.repo.ListByUser(ctx, userID, MaxListed)
}

// CountUnread returns the unread badge count for a user.
func (d *Dispatcher) CountUnread(ctx context.Context, userID string) (int64, error) {
	return d.repo.CountUnread(ctx, userID)
}

// MarkRead sets readAt. Delivery status is not affected.
func (d *Dispatcher) MarkRead(ctx context.Context, idStr, userID string) (*domain.Notification, error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("notification id %q: %w", idStr, domain.ErrInvalidInput)
	}
	return d.repo.MarkRead(ctx, id, userID)
}

// PurgeRead deletes old read notifications. Called by a background scheduler.
func (d *Dispatcher) PurgeRead(ctx context.Context, days int) {
	count, err := d.repo.PurgeReadOlderThan(ctx, days)
	if err != nil {
		log.Error().Err(err).Msg("notification retention purge failed")
		return
	}
	log.Info().Int64("deleted", count).Int("older_than_days", days).Msg("notification retention purge completed")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func label(number, id string) string {
	if number != "" {
		return number
	}
	return id
}
