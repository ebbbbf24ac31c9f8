package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Conversation Repository ===========

type conversationRepoPG struct{ pool *pgxpool.Pool }

func NewConversationRepoPG(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{pool: pool}
}

const conversationCols = `key, participants, last_message_text, last_message_sender_id,
	last_message_sent_at, last_message_seen, typing, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		c         Conversation
		text      *string
		senderID  *string
		sentAt    *time.Time
		seen      bool
		rawTyping []byte
	)
	err := row.Scan(&c.Key, &c.Participants, &text, &senderID, &sentAt, &seen, &rawTyping, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if senderID != nil && sentAt != nil {
		c.LastMessage = &LastMessage{
			SenderID: *senderID,
			SentAt:   *sentAt,
			Seen:     seen,
		}
		if text != nil {
			c.LastMessage.Text = *text
		}
	}
	if len(rawTyping) > 0 {
		if err := json.Unmarshal(rawTyping, &c.Typing); err != nil {
			return nil, fmt.Errorf("decode typing map: %w", err)
		}
	}
	return &c, nil
}

func (r *conversationRepoPG) GetByKey(ctx context.Context, key string) (*Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversation WHERE key = $1`, key))
}

func (r *conversationRepoPG) ListByParticipant(ctx context.Context, userID string) ([]*Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationCols+` FROM conversation
		WHERE $1 = ANY(participants)
		ORDER BY updated_at DESC NULLS LAST`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *conversationRepoPG) UpdateLastMessage(ctx context.Context, key string, participants []string, last LastMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation (key, participants, last_message_text, last_message_sender_id,
			last_message_sent_at, last_message_seen, updated_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $5)
		ON CONFLICT (key) DO UPDATE SET
			participants = EXCLUDED.participants,
			last_message_text = EXCLUDED.last_message_text,
			last_message_sender_id = EXCLUDED.last_message_sender_id,
			last_message_sent_at = EXCLUDED.last_message_sent_at,
			last_message_seen = FALSE,
			updated_at = EXCLUDED.updated_at`,
		key, participants, last.Text, last.SenderID, last.SentAt)
	return err
}

func (r *conversationRepoPG) MarkRead(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversation SET last_message_seen = TRUE WHERE key = $1`, key)
	return err
}

func (r *conversationRepoPG) SetTyping(ctx context.Context, key string, participants []string, userID string, isTyping bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversation (key, participants, typing)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::boolean))
		ON CONFLICT (key) DO UPDATE SET
			typing = conversation.typing || jsonb_build_object($3::text, $4::boolean)`,
		key, participants, userID, isTyping)
	return err
}

func (r *conversationRepoPG) GetTyping(ctx context.Context, key string) (map[string]bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT typing FROM conversation WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		return nil, err
	}
	typing := make(map[string]bool)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &typing); err != nil {
			return nil, fmt.Errorf("decode typing map: %w", err)
		}
	}
	return typing, nil
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

const messageCols = `id, conversation_key, sender_id, text, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationKey, &m.SenderID, &m.Text, &m.CreatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	// created_at comes from the database clock; client time is never used
	// for ordering.
	return r.pool.QueryRow(ctx, `
		INSERT INTO conversation_message (id, conversation_key, sender_id, text)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		m.ID, m.ConversationKey, m.SenderID, m.Text).Scan(&m.CreatedAt)
}

func (r *messageRepoPG) ListByKey(ctx context.Context, key string) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM conversation_message
		WHERE conversation_key = $1
		ORDER BY created_at ASC, id ASC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *messageRepoPG) ListByKeyPage(ctx context.Context, key string, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM conversation_message WHERE conversation_key = $1`, key).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM conversation_message
		WHERE conversation_key = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`, key, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
