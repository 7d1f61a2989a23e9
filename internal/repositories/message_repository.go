package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// MessageRepository reads direct-conversation message logs. Appends go
// through ChatRepository.RecordMessage so the summary update stays atomic
// with the log write.
type MessageRepository interface {
	ListChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// ListChatMessages returns the full ordered log of a direct conversation.
func (r *MessageRepo) ListChatMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, chat_id, sender_id, sender_email, text, created_at
         FROM chat_messages WHERE chat_id=$1 ORDER BY created_at ASC`, chatID)
	return msgs, err
}
