package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"vn.io.arda/marketplace-notification/internal/domain"
)

type memNotifications struct {
	mu   sync.Mutex
	rows []*domain.Notification
}

func (m *memNotifications) Create(_ context.Context, in domain.CreateNotificationInput) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.SourceEventID != "" {
		for _, r := range m.rows {
			if r.SourceEventID == in.SourceEventID {
				return nil, nil
			}
		}
	}
	n := &domain.Notification{
		ID: uuid.New(), UserID: in.UserID, Kind: in.Kind, Subject: in.Subject, Content: in.Content,
		Email: in.Email, Status: in.Status, Metadata: in.Metadata, SourceEventID: in.SourceEventID,
		CreatedAt: time.Now(),
	}
	m.rows = append(m.rows, n)
	cp := *n
	return &cp, nil
}

func (m *memNotifications) UpdateStatus(_ context.Context, id uuid.UUID, status domain.NotificationStatus, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.Status == domain.StatusPending {
			r.Status = status
			r.SentAt = sentAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memNotifications) ListByUser(_ context.Context, userID string, limit int) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for _, r := range m.rows {
		if r.UserID == userID && r.ReadAt == nil {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id uuid.UUID, userID string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			if r.ReadAt == nil {
				now := time.Now()
				r.ReadAt = &now
			}
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memNotifications) PurgeReadOlderThan(context.Context, int) (int64, error) { return 0, nil }

func (m *memNotifications) all() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Notification(nil), m.rows...)
}

type sentEmail struct{ To, Subject, HTML string }

type fakeEmail struct {
	mu     sync.Mutex
	result bool
	sent   []sentEmail
}

func (f *fakeEmail) Enabled() bool { return true }

func (f *fakeEmail) Send(_ context.Context, to, subject, html string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to, subject, html})
	return f.result
}

func (f *fakeEmail) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memConversations struct {
	mu        sync.Mutex
	convs     []*domain.Conversation
	msgs      []*domain.Message
	templates map[string]*domain.Template
}

func newMemConversations() *memConversations {
	return &memConversations{templates: map[string]*domain.Template{}}
}

func (m *memConversations) GetOrCreateActive(_ context.Context, phone string, corr domain.Correlation) (*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.PhoneNumber == phone && c.Status == domain.ConversationActive {
			return c, nil
		}
	}
	c := &domain.Conversation{
		ID: uuid.New(), PhoneNumber: phone, Status: domain.ConversationActive,
		UserID: optional(corr.UserID), CreatedAt: time.Now(), LastMessageAt: time.Now(),
	}
	m.convs = append(m.convs, c)
	return c, nil
}

func (m *memConversations) AppendMessage(_ context.Context, in domain.AppendMessageInput) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.ID == in.ConversationID {
			msg := &domain.Message{
				ID: uuid.New(), ConversationID: in.ConversationID, ProviderMessageID: in.ProviderMessageID,
				Direction: in.Direction, Content: in.Content, MediaURL: optional(in.MediaURL),
				Status: in.Status, DeliveredAt: in.DeliveredAt, CreatedAt: time.Now(),
			}
			m.msgs = append(m.msgs, msg)
			c.LastMessageAt = msg.CreatedAt
			return msg, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memConversations) ListConversations(context.Context, int, int) ([]*domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Conversation(nil), m.convs...), nil
}

func (m *memConversations) ListMessages(_ context.Context, id uuid.UUID) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == id {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memConversations) CreateTemplate(_ context.Context, t *domain.Template) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.Name]; ok {
		return nil, domain.ErrDuplicate
	}
	t.ID = uuid.New()
	m.templates[t.Name] = t
	return t, nil
}

func (m *memConversations) TemplateByName(_ context.Context, name string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *memConversations) ListTemplates(context.Context) ([]*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Template
	for _, t := range m.templates {
		out = append(out, t)
	}
	return out, nil
}

type fakeWhatsApp struct {
	mu         sync.Mutex
	err        error
	configured bool
	sent       []string
}

func (f *fakeWhatsApp) Configured() bool { return f.configured }

func (f *fakeWhatsApp) Send(_ context.Context, to, body, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, body)
	if f.err != nil {
		return "", f.err
	}
	return "SM" + uuid.NewString()[:8], nil
}

var errProvider = errors.New("provider rejected message")
