package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"oedx-chat/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) Create(ctx context.Context, title string) (*models.Chat, error) {
	chat := &models.Chat{
		ID:    uuid.New(),
		Title: title,
	}

	query := `INSERT INTO chats (id, title) VALUES ($1, $2) RETURNING created_at`

	if err := r.pool.QueryRow(ctx, query, chat.ID, chat.Title).Scan(&chat.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// GetByID loads a chat together with its messages in insertion order.
func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat := &models.Chat{}
	query := `SELECT id, title, created_at FROM chats WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&chat.ID, &chat.Title, &chat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to get chat %s: %w", id, err)
	}

	messages, err := r.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages

	return chat, nil
}

// List returns all chats, newest first, without their messages.
func (r *ChatRepo) List(ctx context.Context) ([]*models.Chat, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, created_at FROM chats ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		chat := &models.Chat{}
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// AppendMessage adds one message to the end of a chat's sequence. Ordering
// is carried by the seq column, assigned by the database on insert.
func (r *ChatRepo) AppendMessage(ctx context.Context, chatID uuid.UUID, role, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:      uuid.New(),
		ChatID:  chatID,
		Role:    role,
		Content: content,
	}

	query := `INSERT INTO messages (id, chat_id, role, content)
		VALUES ($1, $2, $3, $4) RETURNING seq, created_at`

	err := r.pool.QueryRow(ctx, query, msg.ID, msg.ChatID, msg.Role, msg.Content).
		Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message to chat %s: %w", chatID, err)
	}
	return msg, nil
}

func (r *ChatRepo) Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	query := `SELECT id, chat_id, seq, role, content, created_at
		FROM messages WHERE chat_id = $1 ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// Delete removes a chat; messages go with it via ON DELETE CASCADE.
func (r *ChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM chats WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}
