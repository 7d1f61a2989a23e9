package models

import (
	"database/sql"
	"time"
)

// DirectConversation is the summary document of a two-participant thread.
// The row id is the canonical sorted-pair key of the participants.
type DirectConversation struct {
	ID         string       `db:"id" json:"id"`
	User1ID    string       `db:"user1_id" json:"user1_id"`
	User2ID    string       `db:"user2_id" json:"user2_id"`
	LastMsg    string       `db:"last_message" json:"last_message,omitempty"`
	LastTime   sql.NullTime `db:"last_time" json:"-"`
	LastSender string       `db:"last_sender" json:"last_sender,omitempty"`
	Pinned     bool         `db:"pinned" json:"pinned"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the participant that is not the given user.
func (c DirectConversation) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether the user belongs to the conversation.
func (c DirectConversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// DirectSnapshot is one document of a direct-stream emission: the summary
// row plus the viewer's unread count.
type DirectSnapshot struct {
	Chat   DirectConversation
	Unread int
}
