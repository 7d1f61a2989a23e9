package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

// GroupMessageRepository reads group message logs. Appends go through
// GroupRepository.RecordMessage.
type GroupMessageRepository interface {
	ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error)
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// ListGroupMessages returns the full ordered log of a group conversation.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	var msgs []models.GroupMessage
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, group_id, sender_id, text, created_at
         FROM group_messages WHERE group_id=$1 ORDER BY created_at ASC`, groupID)
	return msgs, err
}
