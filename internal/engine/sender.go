package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/stream"
)

// SendStatus is the advisory delivery state of a send attempt.
type SendStatus string

const (
	StatusSending   SendStatus = "sending"
	StatusDelivered SendStatus = "delivered"
	StatusFailed    SendStatus = "failed"
)

// Receipt reports the outcome of one send: the local attempt id, its final
// status, the recorded message for the delivered case and the advisory
// per-participant unread mapping after the send.
type Receipt struct {
	LocalID string               `json:"local_id"`
	Status  SendStatus           `json:"status"`
	Direct  *models.ChatMessage  `json:"direct,omitempty"`
	Group   *models.GroupMessage `json:"group,omitempty"`
	Unread  map[string]int       `json:"unread,omitempty"`
}

// Outbox tracks per-attempt send status. The statuses are advisory: the
// message log is the source of truth, the outbox only feeds pending-state UI.
type Outbox struct {
	mu       sync.Mutex
	statuses map[string]SendStatus
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{statuses: make(map[string]SendStatus)}
}

func (o *Outbox) set(localID string, status SendStatus) {
	o.mu.Lock()
	o.statuses[localID] = status
	o.mu.Unlock()
}

// Status returns the recorded status of a send attempt.
func (o *Outbox) Status(localID string) (SendStatus, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.statuses[localID]
	return s, ok
}

// Sender runs the send protocol for both conversation kinds: validate,
// record message and summary in one transaction, then signal the streams.
type Sender struct {
	chats    repositories.ChatRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	notifier stream.Notifier
	outbox   *Outbox
}

// NewSender wires a Sender.
func NewSender(chats repositories.ChatRepository, groups repositories.GroupRepository, users repositories.UserRepository, notifier stream.Notifier, outbox *Outbox) *Sender {
	return &Sender{chats: chats, groups: groups, users: users, notifier: notifier, outbox: outbox}
}

// Send appends text to the conversation on behalf of senderID. Messages that
// are empty after trimming are rejected before any write. The returned
// Receipt carries the recorded message on success and StatusFailed on any
// storage error.
func (s *Sender) Send(ctx context.Context, ref models.ConversationID, senderID, text string) (Receipt, error) {
	receipt := Receipt{LocalID: uuid.NewString(), Status: StatusSending}

	if strings.TrimSpace(text) == "" {
		return Receipt{}, fmt.Errorf("%w: empty message", ErrValidation)
	}
	s.outbox.set(receipt.LocalID, StatusSending)

	var err error
	switch ref.Kind {
	case models.KindDirect:
		receipt.Direct, receipt.Unread, err = s.sendDirect(ctx, ref, senderID, text)
	case models.KindGroup:
		receipt.Group, receipt.Unread, err = s.sendGroup(ctx, ref.Key, senderID, text)
	default:
		err = fmt.Errorf("%w: kind %q", models.ErrDecode, ref.Kind)
	}

	if err != nil {
		receipt.Status = StatusFailed
		s.outbox.set(receipt.LocalID, StatusFailed)
		observability.IncMessageSent(string(ref.Kind), "failed")
		return receipt, err
	}

	receipt.Status = StatusDelivered
	s.outbox.set(receipt.LocalID, StatusDelivered)
	observability.IncMessageSent(string(ref.Kind), "delivered")
	return receipt, nil
}

func (s *Sender) sendDirect(ctx context.Context, ref models.ConversationID, senderID, text string) (*models.ChatMessage, map[string]int, error) {
	a, b, err := ref.DirectParticipants()
	if err != nil {
		return nil, nil, err
	}
	if senderID != a && senderID != b {
		return nil, nil, ErrNotParticipant
	}
	other := a
	if other == senderID {
		other = b
	}

	// First message creates the conversation.
	chat, err := s.chats.EnsureChat(ctx, senderID, other)
	if err != nil {
		return nil, nil, err
	}

	counts, err := s.chats.UnreadCounts(ctx, chat.ID)
	if err != nil {
		return nil, nil, err
	}

	senderEmail := ""
	profile, err := s.users.GetUser(ctx, senderID)
	switch {
	case err == nil:
		senderEmail = profile.Email
	case !errors.Is(err, repositories.ErrUserNotFound):
		return nil, nil, err
	}

	msg, err := s.chats.RecordMessage(ctx, chat, senderID, senderEmail, text)
	if err != nil {
		return nil, nil, err
	}
	s.notifier.Notify(ctx, stream.TopicChats)
	return &msg, ApplySend(counts, senderID, []string{a, b}), nil
}

func (s *Sender) sendGroup(ctx context.Context, groupID, senderID, text string) (*models.GroupMessage, map[string]int, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	if !group.IsMember(senderID) {
		return nil, nil, ErrNotParticipant
	}

	counts, err := s.groups.UnreadCounts(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}

	senderName := senderID
	profile, err := s.users.GetUser(ctx, senderID)
	switch {
	case err == nil:
		senderName = profile.DisplayName()
	case !errors.Is(err, repositories.ErrUserNotFound):
		return nil, nil, err
	}

	msg, err := s.groups.RecordMessage(ctx, group, senderID, senderName, text)
	if err != nil {
		return nil, nil, err
	}
	s.notifier.Notify(ctx, stream.TopicGroups)
	return &msg, ApplySend(counts, senderID, group.Members), nil
}
