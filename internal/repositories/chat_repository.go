package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"conversation-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts direct-conversation persistence: the summary row,
// the per-participant unread counters and the append-only message log.
type ChatRepository interface {
	EnsureChat(ctx context.Context, userID, otherID string) (models.DirectConversation, error)
	GetChat(ctx context.Context, chatID string) (models.DirectConversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.DirectSnapshot, error)
	RecordMessage(ctx context.Context, chat models.DirectConversation, senderID, senderEmail, text string) (models.ChatMessage, error)
	ResetUnread(ctx context.Context, chatID, userID string) error
	UnreadCounts(ctx context.Context, chatID string) (map[string]int, error)
	TogglePin(ctx context.Context, chatID string) (bool, error)
	Delete(ctx context.Context, chatID string) error
	ReconcileSummary(ctx context.Context, chatID string) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, user1_id, user2_id, last_message, last_time, last_sender, pinned, created_at`

// EnsureChat creates the conversation under its canonical sorted-pair id if
// it does not exist yet, together with zeroed unread rows for both
// participants, and returns it.
func (r *ChatRepo) EnsureChat(ctx context.Context, userID, otherID string) (models.DirectConversation, error) {
	if userID == otherID {
		return models.DirectConversation{}, errors.New("cannot create chat with self")
	}
	id := models.DirectID(userID, otherID)
	user1, user2 := userID, otherID
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	var chat models.DirectConversation
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, id)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.DirectConversation{}, fmt.Errorf("chatRepo.EnsureChat: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.DirectConversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (id, user1_id, user2_id) VALUES ($1, $2, $3)
         ON CONFLICT (id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING `+chatColumns, id, user1, user2).StructScan(&chat)
	if err != nil {
		return models.DirectConversation{}, fmt.Errorf("chatRepo.EnsureChat insert: %w", err)
	}

	for _, participant := range []string{user1, user2} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 0) ON CONFLICT DO NOTHING`,
			id, participant); err != nil {
			return models.DirectConversation{}, fmt.Errorf("chatRepo.EnsureChat unread: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.DirectConversation{}, err
	}
	return chat, nil
}

// GetChat fetches a conversation by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.DirectConversation, error) {
	var chat models.DirectConversation
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DirectConversation{}, ErrChatNotFound
	}
	return chat, err
}

// ListForUser returns every direct conversation the user participates in,
// with the user's unread count, ordered by last activity.
func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]models.DirectSnapshot, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT c.id, c.user1_id, c.user2_id, c.last_message, c.last_time, c.last_sender, c.pinned, c.created_at,
                COALESCE(u.count, 0) AS unread
         FROM chats c
         LEFT JOIN chat_unread u ON u.chat_id = c.id AND u.user_id = $1
         WHERE c.user1_id = $1 OR c.user2_id = $1
         ORDER BY c.last_time DESC NULLS LAST`, userID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListForUser: %w", err)
	}
	defer rows.Close()

	var snaps []models.DirectSnapshot
	for rows.Next() {
		var row struct {
			models.DirectConversation
			Unread int `db:"unread"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("chatRepo.ListForUser scan: %w", err)
		}
		snaps = append(snaps, models.DirectSnapshot{Chat: row.DirectConversation, Unread: row.Unread})
	}
	return snaps, rows.Err()
}

// RecordMessage appends to the message log and updates the denormalized
// summary in one transaction: last message fields, the sender's unread reset
// and an atomic increment for the other participant.
func (r *ChatRepo) RecordMessage(ctx context.Context, chat models.DirectConversation, senderID, senderEmail, text string) (models.ChatMessage, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.ChatMessage
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chat_messages (id, chat_id, sender_id, sender_email, text)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, chat_id, sender_id, sender_email, text, created_at`,
		uuid.NewString(), chat.ID, senderID, senderEmail, text).StructScan(&msg)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chatRepo.RecordMessage append: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chats SET last_message=$1, last_time=$2, last_sender=$3 WHERE id=$4`,
		text, msg.CreatedAt, senderID, chat.ID)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chatRepo.RecordMessage summary: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 0)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET count = 0`,
		chat.ID, senderID)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chatRepo.RecordMessage reset: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 1)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET count = chat_unread.count + 1`,
		chat.ID, chat.OtherParticipant(senderID))
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("chatRepo.RecordMessage increment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.ChatMessage{}, err
	}
	return msg, nil
}

// ResetUnread zeroes the user's own unread counter. Other participants'
// rows are untouched by construction.
func (r *ChatRepo) ResetUnread(ctx context.Context, chatID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_unread (chat_id, user_id, count) VALUES ($1, $2, 0)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET count = 0`,
		chatID, userID)
	if err != nil {
		return fmt.Errorf("chatRepo.ResetUnread: %w", err)
	}
	return nil
}

// UnreadCounts returns the whole unread mapping of a conversation.
func (r *ChatRepo) UnreadCounts(ctx context.Context, chatID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, count FROM chat_unread WHERE chat_id=$1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.UnreadCounts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var userID string
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

// TogglePin flips the pinned flag and returns the new value.
func (r *ChatRepo) TogglePin(ctx context.Context, chatID string) (bool, error) {
	var pinned bool
	err := r.db.QueryRowxContext(ctx, `UPDATE chats SET pinned = NOT pinned WHERE id=$1 RETURNING pinned`, chatID).Scan(&pinned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrChatNotFound
	}
	return pinned, err
}

// Delete removes the summary row and unread counters. The message log is
// left in place.
func (r *ChatRepo) Delete(ctx context.Context, chatID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return fmt.Errorf("chatRepo.Delete: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrChatNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM chat_unread WHERE chat_id=$1`, chatID); err != nil {
		return fmt.Errorf("chatRepo.Delete unread: %w", err)
	}
	return tx.Commit()
}

// ReconcileSummary recomputes the summary fields from the most recent log
// entry, for the case where a summary write was lost. A conversation with an
// empty log is left untouched.
func (r *ChatRepo) ReconcileSummary(ctx context.Context, chatID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET last_message = m.text, last_time = m.created_at, last_sender = m.sender_id
         FROM (SELECT text, sender_id, created_at FROM chat_messages WHERE chat_id=$1 ORDER BY created_at DESC LIMIT 1) m
         WHERE chats.id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("chatRepo.ReconcileSummary: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return err
	}
	return nil
}
