package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vn.io.arda/marketplace-notification/internal/domain"
)

const (
	conversationColumns = `id, phone_number, user_id, seller_id, ticket_id, status, last_message_at, created_at`
	messageColumns      = `id, conversation_id, provider_message_id, direction, content, media_url, status, delivered_at, created_at`
	templateColumns     = `id, name, category, content, variables, is_active, approved_by, created_at`

	uniqueViolation = "23505"
)

// ConversationRepository is the PostgreSQL implementation of domain.ConversationRepository.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// GetOrCreateActive relies on the partial unique index on (phone_number) WHERE status = 'ACTIVE',
// so concurrent callers for a new number converge on one row. Missing correlation ids are
// filled in on the existing row, present ones are never overwritten.
func (r *ConversationRepository) GetOrCreateActive(ctx context.Context, phone string, corr domain.Correlation) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO whatsapp_conversations (phone_number, user_id, seller_id, ticket_id, status)
		VALUES ($1, $2, $3, $4, 'ACTIVE')
		ON CONFLICT (phone_number) WHERE status = 'ACTIVE' DO UPDATE SET
			user_id   = COALESCE(whatsapp_conversations.user_id, EXCLUDED.user_id),
			seller_id = COALESCE(whatsapp_conversations.seller_id, EXCLUDED.seller_id),
			ticket_id = COALESCE(whatsapp_conversations.ticket_id, EXCLUDED.ticket_id)
		RETURNING `+conversationColumns,
		phone, nullable(corr.UserID), nullable(corr.SellerID), nullable(corr.TicketID))

	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return c, nil
}

// AppendMessage inserts the message and bumps last_message_at in one transaction.
func (r *ConversationRepository) AppendMessage(ctx context.Context, in domain.AppendMessageInput) (*domain.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	m, err := scanMessage(tx.QueryRow(ctx, `
		INSERT INTO whatsapp_messages (conversation_id, provider_message_id, direction, content, media_url, status, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+messageColumns,
		in.ConversationID, in.ProviderMessageID, string(in.Direction), in.Content,
		nullable(in.MediaURL), string(in.Status), in.DeliveredAt))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE whatsapp_conversations SET last_message_at = $1 WHERE id = $2
	`, m.CreatedAt, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("conversation %s: %w", in.ConversationID, domain.ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func (r *ConversationRepository) ListConversations(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM whatsapp_conversations
		ORDER BY last_message_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]*domain.Message, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM whatsapp_conversations WHERE id = $1)`, conversationID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM whatsapp_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) CreateTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	vars := t.Variables
	if vars == nil {
		vars = []string{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO whatsapp_templates (name, category, content, variables, is_active, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+templateColumns,
		t.Name, t.Category, t.Content, vars, t.IsActive, t.ApprovedBy)

	out, err := scanTemplate(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("template %q: %w", t.Name, domain.ErrDuplicate)
		}
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return out, nil
}

func (r *ConversationRepository) TemplateByName(ctx context.Context, name string) (*domain.Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM whatsapp_templates WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("template %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (r *ConversationRepository) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM whatsapp_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanConversation(row scannable) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ID, &c.PhoneNumber, &c.UserID, &c.SellerID, &c.TicketID,
		&c.Status, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanMessage(row scannable) (*domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.ProviderMessageID, &m.Direction, &m.Content,
		&m.MediaURL, &m.Status, &m.DeliveredAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanTemplate(row scannable) (*domain.Template, error) {
	var t domain.Template
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Content, &t.Variables,
		&t.IsActive, &t.ApprovedBy, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
