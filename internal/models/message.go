package models

import "time"

// ChatMessage is one entry of a direct conversation's append-only log.
type ChatMessage struct {
	ID          string    `db:"id" json:"id"`
	ChatID      string    `db:"chat_id" json:"chat_id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	SenderEmail string    `db:"sender_email" json:"sender_email,omitempty"`
	Text        string    `db:"text" json:"text"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// GroupMessage is one entry of a group conversation's append-only log.
type GroupMessage struct {
	ID        string    `db:"id" json:"id"`
	GroupID   string    `db:"group_id" json:"group_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ConversationEvent is broadcast through websockets to conversation rooms.
type ConversationEvent struct {
	Type         string        `json:"type"`
	Conversation string        `json:"conversation"`
	Direct       *ChatMessage  `json:"direct,omitempty"`
	Group        *GroupMessage `json:"group,omitempty"`
}

// ListEvent carries a full merged-list snapshot to a list feed client.
type ListEvent struct {
	Type  string                 `json:"type"`
	Items []ConversationListItem `json:"items"`
}
