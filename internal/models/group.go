package models

import (
	"database/sql"
	"time"
)

// GroupConversation is the summary document of a multi-member thread.
// Members is the current member id list in join order.
type GroupConversation struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	Avatar         string       `db:"avatar" json:"avatar,omitempty"`
	CreatedBy      string       `db:"created_by" json:"created_by"`
	LastMsg        string       `db:"last_message" json:"last_message,omitempty"`
	LastSenderID   string       `db:"last_sender_id" json:"last_sender_id,omitempty"`
	LastSenderName string       `db:"last_sender_name" json:"last_sender_name,omitempty"`
	LastTime       sql.NullTime `db:"last_time" json:"-"`
	Pinned         bool         `db:"pinned" json:"pinned"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`

	Members []string `db:"-" json:"members"`
}

// IsMember reports whether the user is currently in the member list.
func (g GroupConversation) IsMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// GroupSnapshot is one document of a group-stream emission: the summary row
// with members, plus the viewer's unread count.
type GroupSnapshot struct {
	Group  GroupConversation
	Unread int
}
